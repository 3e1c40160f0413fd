package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("user: not found")

type Role string

const (
	RoleGuest   Role = "GUEST"
	RoleOwner   Role = "OWNER"
	RoleAdmin   Role = "ADMIN"
	RoleMachine Role = "MACHINE"
)

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Repository interface {
	ByID(ctx context.Context, id string) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, u *User) error
}

func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NormalizeEmail lowercases and trims a contact address so external channel
// payloads resolve to one guest record.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
