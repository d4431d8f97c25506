package cache

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry lifetimes.
const (
	UserProjectsTTL  = 300 * time.Second
	ProjectDetailTTL = 120 * time.Second
)

// Key identifies either one cache entry or, when it contains '*', every
// entry matching the glob.
type Key string

// IsPattern reports whether k is a glob rather than an exact key.
func (k Key) IsPattern() bool {
	return strings.Contains(string(k), "*")
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return string(k)
}

// UserProjectsKey is the key of a user's project list.
func UserProjectsKey(userID uuid.UUID) Key {
	return Key("projects:user:" + userID.String())
}

// ProjectDetailKey is the key of a project with its tasks.
func ProjectDetailKey(projectID uuid.UUID) Key {
	return Key("project:" + projectID.String())
}

// AllUserProjectsPattern matches every user's project list.
const AllUserProjectsPattern Key = "projects:user:*"
