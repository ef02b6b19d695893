package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
)

// OverridesFor returns the per-actor permission overrides. The resolver calls
// this on every decision; the (actor_id, code) primary key keeps the lookup an
// index scan.
func (s *Store) OverridesFor(ctx context.Context, actorID string) ([]perm.Override, error) {
	rows, err := s.db.QueryContext(ctx, `
		select code, effect
		from permission_overrides
		where actor_id = $1
		order by code
	`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []perm.Override
	for rows.Next() {
		var code, effect string
		if err := rows.Scan(&code, &effect); err != nil {
			return nil, err
		}
		parsed, ok := perm.ParseEffect(effect)
		if !ok {
			return nil, fmt.Errorf("stored override %s/%s has invalid effect %q", actorID, code, effect)
		}
		out = append(out, perm.Override{ActorID: actorID, Code: code, Effect: parsed})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetOverrides replaces the full override set of one actor. Replace-all keeps
// the administration surface declarative: what you PUT is what resolves.
func (s *Store) SetOverrides(ctx context.Context, actorID string, overrides []perm.Override) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from actors where id = $1`, actorID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", perm.ErrUnknownActor, actorID)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `delete from permission_overrides where actor_id = $1`, actorID); err != nil {
		return err
	}
	for _, ov := range overrides {
		if _, err := tx.ExecContext(ctx, `
			insert into permission_overrides (actor_id, code, effect)
			values ($1, $2, $3)
		`, actorID, ov.Code, string(ov.Effect)); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return fmt.Errorf("duplicate override for code %s", ov.Code)
			}
			return err
		}
	}
	return tx.Commit()
}
