package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/auth"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
)

// ErrEmailTaken marks a registration against an already-used email.
var ErrEmailTaken = errors.New("pg: email already registered")

const actorColumns = `
	id, email, full_name, password_hash, role, sector, establishments, status, created_at`

func scanIdentity(row rowScanner) (auth.Identity, error) {
	var (
		id             auth.Identity
		role           string
		sector         sql.NullString
		establishments []byte
	)
	err := row.Scan(&id.ID, &id.Email, &id.FullName, &id.PasswordHash,
		&role, &sector, &establishments, &id.Status, &id.CreatedAt)
	if err != nil {
		return auth.Identity{}, err
	}
	id.Role = perm.Role(role)
	if sector.Valid {
		id.Sector = sector.String
	}
	if len(establishments) > 0 {
		if err := json.Unmarshal(establishments, &id.Establishments); err != nil {
			return auth.Identity{}, fmt.Errorf("decode establishments: %w", err)
		}
	}
	return id, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (auth.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select`+actorColumns+` from actors where email = $1`, email)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, err
	}
	return identity, nil
}

func (s *Store) Find(ctx context.Context, id string) (auth.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select`+actorColumns+` from actors where id = $1`, id)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, err
	}
	return identity, nil
}

// CreateIdentity registers a new account. Used by the migration seeds and the
// user administration surface.
func (s *Store) CreateIdentity(ctx context.Context, identity auth.Identity) (auth.Identity, error) {
	establishments := []byte("[]")
	if len(identity.Establishments) > 0 {
		bytes, err := json.Marshal(identity.Establishments)
		if err != nil {
			return auth.Identity{}, fmt.Errorf("marshal establishments: %w", err)
		}
		establishments = bytes
	}
	row := s.db.QueryRowContext(ctx, `
		insert into actors (id, email, full_name, password_hash, role, sector, establishments, status)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
		returning`+actorColumns+`
	`, identity.ID, identity.Email, identity.FullName, identity.PasswordHash,
		string(identity.Role), nullIfEmpty(identity.Sector), establishments, identity.Status)
	created, err := scanIdentity(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Identity{}, ErrEmailTaken
		}
		return auth.Identity{}, err
	}
	return created, nil
}

// UpdateIdentityStatus suspends or reactivates an account.
func (s *Store) UpdateIdentityStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `update actors set status = $2 where id = $1`, id, status)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}
