package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
)

var ErrNotFound = errors.New("auth: identity not found")

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Identity is a registered platform account. Role changes only happen through
// privileged administration, never through self-service.
type Identity struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	PasswordHash   string    `json:"-"`
	Role           perm.Role `json:"role"`
	Sector         string    `json:"sector,omitempty"`
	Establishments []string  `json:"establishments,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Actor projects the identity into the permission layer.
func (i Identity) Actor() perm.Actor {
	return perm.Actor{
		ID:                      i.ID,
		Role:                    i.Role,
		Sector:                  i.Sector,
		ManagedEstablishmentIDs: i.Establishments,
	}
}

// IdentityStore is the persistence contract for accounts.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (Identity, error)
	Find(ctx context.Context, id string) (Identity, error)
}

// Login checks credentials against the store and returns the matching
// identity. Every failure mode collapses into ErrInvalidCredentials so the
// response does not reveal whether the account exists.
func Login(ctx context.Context, store IdentityStore, email, password string) (Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}
	identity, err := store.FindByEmail(ctx, email)
	if err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	if identity.Status != StatusActive {
		return Identity{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(identity.PasswordHash, password); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return identity, nil
}
