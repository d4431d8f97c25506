package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common validation errors
var (
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrEmptyUserName       = errors.New("name cannot be empty")
	ErrUserNameTooShort    = errors.New("name must be at least 2 characters")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrEmptyEmail          = errors.New("email cannot be empty")
	ErrPasswordTooShort    = errors.New("password must be at least 6 characters long")
	ErrPasswordTooLong     = errors.New("password must be at most 72 characters long")
	ErrEmptyPassword       = errors.New("password cannot be empty")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
)

// Password length limits. The upper bound is bcrypt's input limit.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// User represents a registered user who owns projects and can be assigned tasks.
type User struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Password       string    `json:"-"` // Plaintext, only held between registration and hashing
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewUser creates a new User with the given name, email and plaintext password.
// The caller is responsible for hashing the password before storing the user.
func NewUser(name, email, password string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     NormalizeEmail(email),
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// NormalizeEmail returns email in the canonical form used for storage and
// lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if u.Name == "" {
		return ErrEmptyUserName
	}
	if len([]rune(u.Name)) < 2 {
		return ErrUserNameTooShort
	}

	if u.Email == "" {
		return ErrEmptyEmail
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidEmail
	}

	if u.Password != "" {
		if len(u.Password) < MinPasswordLength {
			return ErrPasswordTooShort
		}
		if len(u.Password) > MaxPasswordLength {
			return ErrPasswordTooLong
		}
		return nil
	}

	// Persisted users carry only the hash.
	if u.HashedPassword == "" {
		return ErrEmptyPassword
	}

	return nil
}

// UserRef is the public projection of a user embedded in other resources.
type UserRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}
