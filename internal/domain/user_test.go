package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Parallel()

	user, err := NewUser("  Ada  ", "Ada@Example.com ", "secret123")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "secret123", user.Password)
	assert.False(t, user.CreatedAt.IsZero())

	tests := []struct {
		name, userName, email, password string
		want                            error
	}{
		{"empty name", "", "a@b.co", "secret123", ErrEmptyUserName},
		{"short name", "A", "a@b.co", "secret123", ErrUserNameTooShort},
		{"empty email", "Ada", "", "secret123", ErrEmptyEmail},
		{"bad email", "Ada", "not-an-email", "secret123", ErrInvalidEmail},
		{"short password", "Ada", "a@b.co", "12345", ErrPasswordTooShort},
		{"long password", "Ada", "a@b.co", strings.Repeat("x", 73), ErrPasswordTooLong},
		{"no password", "Ada", "a@b.co", "", ErrEmptyPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUser(tt.userName, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUserValidateWithHashOnly(t *testing.T) {
	t.Parallel()

	u := &User{ID: uuid.New(), Name: "Ada", Email: "ada@example.com", HashedPassword: "$2a$10$hash"}
	assert.NoError(t, u.Validate())
}
