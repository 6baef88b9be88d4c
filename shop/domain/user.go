package domain

import (
	"context"
	"time"
)

// User is an account allowed to manage the catalog
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type UserRepository interface {
	// CreateUser returns ConflictError when the email is already registered
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}
