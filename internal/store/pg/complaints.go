package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/audit"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/complaint"
)

const complaintColumns = `
	id, title, description, category, sector, created_by, commune_id,
	establishment_id, lat, lon, status, assigned_authority_id,
	rejection_reason, resolved_at, archived, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplaint(row rowScanner) (complaint.Complaint, error) {
	var (
		c             complaint.Complaint
		establishment sql.NullString
		lat, lon      sql.NullFloat64
		assigned      sql.NullString
		reason        sql.NullString
		resolvedAt    sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Category, &c.Sector, &c.CreatedBy,
		&c.CommuneID, &establishment, &lat, &lon, &c.Status, &assigned,
		&reason, &resolvedAt, &c.Archived, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return complaint.Complaint{}, err
	}
	if establishment.Valid {
		c.EstablishmentID = establishment.String
	}
	if lat.Valid && lon.Valid {
		c.Location = &complaint.Geo{Lat: lat.Float64, Lon: lon.Float64}
	}
	if assigned.Valid {
		c.AssignedAuthorityID = assigned.String
	}
	if reason.Valid {
		c.RejectionReason = reason.String
	}
	if resolvedAt.Valid {
		ts := resolvedAt.Time
		c.ResolvedAt = &ts
	}
	return c, nil
}

func (s *Store) Create(ctx context.Context, c complaint.Complaint, entry audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var lat, lon sql.NullFloat64
	if c.Location != nil {
		lat = sql.NullFloat64{Float64: c.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: c.Location.Lon, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		insert into complaints (
			id, title, description, category, sector, created_by, commune_id,
			establishment_id, lat, lon, status, archived, created_at, updated_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false,$12,$13)
	`, c.ID, c.Title, c.Description, c.Category, c.Sector, c.CreatedBy, c.CommuneID,
		nullIfEmpty(c.EstablishmentID), lat, lon, c.Status, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return complaint.ErrConflict
		}
		return err
	}
	if err := insertEntry(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, id string) (complaint.Complaint, error) {
	row := s.db.QueryRowContext(ctx,
		`select`+complaintColumns+` from complaints where id = $1`, id)
	c, err := scanComplaint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return complaint.Complaint{}, complaint.ErrNotFound
	}
	if err != nil {
		return complaint.Complaint{}, err
	}
	return c, nil
}

// List pushes the visibility scope and the caller filters into the query. The
// WHERE clause must agree with Scope.Allows and Filters.Match exactly.
func (s *Store) List(ctx context.Context, scope complaint.Scope, f complaint.Filters) ([]complaint.Complaint, error) {
	if scope.Empty() {
		return []complaint.Complaint{}, nil
	}
	f = f.Normalize()

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case scope.All:
		// unrestricted
	case scope.CreatedBy != "":
		where = append(where, "created_by = "+arg(scope.CreatedBy))
	case scope.AssignedAuthorityID != "":
		where = append(where, "assigned_authority_id = "+arg(scope.AssignedAuthorityID))
	case scope.Sector != "":
		where = append(where, "sector = "+arg(scope.Sector))
	default:
		return []complaint.Complaint{}, nil
	}

	if f.Status != nil {
		where = append(where, "status = "+arg(string(*f.Status)))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(f.Category))
	}
	if f.CommuneID != "" {
		where = append(where, "commune_id = "+arg(f.CommuneID))
	}
	if !f.IncludeArchived {
		where = append(where, "archived = false")
	}

	query := `select` + complaintColumns + ` from complaints`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	query += " order by id desc limit " + arg(f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]complaint.Complaint, 0)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update locks the row, runs the mutation against the current state and
// persists the result with the audit entry in the same transaction. The row
// lock serializes concurrent transitions: the loser re-reads the winner's
// state and its precondition check fails.
func (s *Store) Update(ctx context.Context, id string, mutate func(*complaint.Complaint) error, entry audit.Entry) (complaint.Complaint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return complaint.Complaint{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`select`+complaintColumns+` from complaints where id = $1 for update`, id)
	c, err := scanComplaint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return complaint.Complaint{}, complaint.ErrNotFound
	}
	if err != nil {
		return complaint.Complaint{}, err
	}

	if err := mutate(&c); err != nil {
		return complaint.Complaint{}, err
	}

	var resolvedAt sql.NullTime
	if c.ResolvedAt != nil {
		resolvedAt = sql.NullTime{Time: *c.ResolvedAt, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		update complaints set
			title = $2, description = $3, status = $4,
			assigned_authority_id = $5, rejection_reason = $6,
			resolved_at = $7, archived = $8, updated_at = $9
		where id = $1
	`, c.ID, c.Title, c.Description, c.Status,
		nullIfEmpty(c.AssignedAuthorityID), nullIfEmpty(c.RejectionReason),
		resolvedAt, c.Archived, c.UpdatedAt,
	); err != nil {
		return complaint.Complaint{}, err
	}
	if err := insertEntry(ctx, tx, entry); err != nil {
		return complaint.Complaint{}, err
	}
	if err := tx.Commit(); err != nil {
		return complaint.Complaint{}, err
	}
	return c, nil
}

// Delete removes the row after the check passes. The audit entry is written
// in the same transaction and has no foreign key on the complaint, so the
// trail outlives the record.
func (s *Store) Delete(ctx context.Context, id string, check func(complaint.Complaint) error, entry audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`select`+complaintColumns+` from complaints where id = $1 for update`, id)
	c, err := scanComplaint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return complaint.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := check(c); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `delete from complaints where id = $1`, id); err != nil {
		return err
	}
	if err := insertEntry(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Trail(ctx context.Context, complaintID string) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, complaint_id, actor_id, action, detail, ip, occurred_at
		from audit_entries
		where complaint_id = $1
		order by id asc
	`, complaintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *Store) RecentTrail(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, complaint_id, actor_id, action, detail, ip, occurred_at
		from audit_entries
		order by id desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// DeleteForComplaint cascades media removal after a withdraw.
func (s *Store) DeleteForComplaint(ctx context.Context, complaintID string) error {
	_, err := s.db.ExecContext(ctx, `delete from media where complaint_id = $1`, complaintID)
	return err
}

func insertEntry(ctx context.Context, tx *sql.Tx, entry audit.Entry) error {
	detail := []byte("{}")
	if len(entry.Detail) > 0 {
		bytes, err := json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
		detail = bytes
	}
	_, err := tx.ExecContext(ctx, `
		insert into audit_entries (id, complaint_id, actor_id, action, detail, ip, occurred_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.ComplaintID, entry.ActorID, entry.Action, detail,
		nullIfEmpty(entry.IP), entry.OccurredAt)
	return err
}

func collectEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var out []audit.Entry
	for rows.Next() {
		var (
			e      audit.Entry
			detail []byte
			ip     sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ComplaintID, &e.ActorID, &e.Action, &detail, &ip, &e.OccurredAt); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		if ip.Valid {
			e.IP = ip.String
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
