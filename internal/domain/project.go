package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Project validation errors
var (
	ErrEmptyProjectID    = errors.New("project ID cannot be empty")
	ErrEmptyProjectOwner = errors.New("project owner ID cannot be empty")
	ErrEmptyProjectName  = errors.New("project name is required")
)

// Project is a named container of tasks owned by exactly one user.
type Project struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"ownerId"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewProject creates a new Project owned by ownerID.
func NewProject(ownerID uuid.UUID, name string, description *string) (*Project, error) {
	now := time.Now().UTC()
	p := &Project{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks if the Project has valid data.
func (p *Project) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyProjectID
	}
	if p.OwnerID == uuid.Nil {
		return ErrEmptyProjectOwner
	}
	if p.Name == "" {
		return ErrEmptyProjectName
	}
	return nil
}

// IsOwnedBy reports whether userID owns the project.
func (p *Project) IsOwnedBy(userID uuid.UUID) bool {
	return p.OwnerID == userID
}

// ProjectListItem is a project as it appears in its owner's project list,
// carrying the derived number of tasks.
type ProjectListItem struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	OwnerID     uuid.UUID `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	TaskCount   int       `json:"taskCount"`
}

// ProjectDetail is a project together with its tasks, newest first.
// It is the value cached under the project detail key, so it must carry
// OwnerID for the ownership check on cache hits.
type ProjectDetail struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	OwnerID     uuid.UUID `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	Tasks       []Task    `json:"tasks"`
}

// ProjectUpdate carries the optional fields of a partial project update.
type ProjectUpdate struct {
	Name        *string
	Description *string
}

// Apply copies the set fields of u onto p and validates the result.
func (u ProjectUpdate) Apply(p *Project) error {
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		p.Description = u.Description
	}
	p.UpdatedAt = time.Now().UTC()
	return p.Validate()
}
