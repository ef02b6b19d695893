package complaint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/audit"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/ids"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/notify"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/obs"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 5000
)

// Store is the persistence contract. Update and Delete run their closure
// while holding the record lock and write the audit entry in the same
// transaction: if the audit write fails, the transition fails with it.
type Store interface {
	Create(ctx context.Context, c Complaint, entry audit.Entry) error
	Get(ctx context.Context, id string) (Complaint, error)
	List(ctx context.Context, scope Scope, f Filters) ([]Complaint, error)
	Update(ctx context.Context, id string, mutate func(*Complaint) error, entry audit.Entry) (Complaint, error)
	Delete(ctx context.Context, id string, check func(Complaint) error, entry audit.Entry) error
	Trail(ctx context.Context, complaintID string) ([]audit.Entry, error)
	RecentTrail(ctx context.Context, limit int) ([]audit.Entry, error)
}

// MediaStore removes stored media attached to a complaint. Cascade-deleted on
// withdraw, otherwise opaque to this service.
type MediaStore interface {
	DeleteForComplaint(ctx context.Context, complaintID string) error
}

// Service orchestrates permission resolution, visibility scoping, the state
// machine and the audit trail for every complaint operation.
type Service struct {
	store    Store
	resolver *perm.Resolver
	notifier notify.Notifier
	media    MediaStore
	now      func() time.Time
}

// Option configures Service behaviour.
type Option func(*Service)

// WithNotifier attaches the fire-and-forget notification collaborator.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMediaStore attaches the media collaborator used by Withdraw.
func WithMediaStore(m MediaStore) Option {
	return func(s *Service) { s.media = m }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the orchestration service.
func NewService(store Store, resolver *perm.Resolver, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("complaint store is required")
	}
	if resolver == nil {
		return nil, errors.New("permission resolver is required")
	}
	s := &Service{store: store, resolver: resolver, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SubmitRequest carries the citizen-provided fields of a new complaint.
type SubmitRequest struct {
	Title           string
	Description     string
	Category        string
	Sector          string
	CommuneID       string
	EstablishmentID string
	Location        *Geo
}

// Submit files a new complaint in pending status.
func (s *Service) Submit(ctx context.Context, actor perm.Actor, req SubmitRequest) (Complaint, error) {
	if actor.Anonymous() {
		return Complaint{}, ErrUnauthenticated
	}
	if !s.resolver.Has(ctx, actor, perm.PermReclamationsCreate) {
		return Complaint{}, ErrForbidden
	}
	c := Complaint{
		ID:              ids.New(),
		Title:           strings.TrimSpace(req.Title),
		Description:     strings.TrimSpace(req.Description),
		Category:        strings.TrimSpace(strings.ToLower(req.Category)),
		Sector:          strings.TrimSpace(strings.ToUpper(req.Sector)),
		CreatedBy:       actor.ID,
		CommuneID:       strings.TrimSpace(req.CommuneID),
		EstablishmentID: strings.TrimSpace(req.EstablishmentID),
		Location:        req.Location,
		Status:          StatusPending,
		CreatedAt:       s.now().UTC(),
		UpdatedAt:       s.now().UTC(),
	}
	if err := validateContent(c.Title, c.Description); err != nil {
		return Complaint{}, err
	}
	if c.Category == "" {
		return Complaint{}, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if c.Sector == "" {
		return Complaint{}, fmt.Errorf("%w: sector is required", ErrInvalidInput)
	}
	if c.CommuneID == "" {
		return Complaint{}, fmt.Errorf("%w: commune_id is required", ErrInvalidInput)
	}

	entry := s.entry(ctx, c.ID, actor, audit.ActionSubmit, map[string]string{
		"title":  c.Title,
		"sector": c.Sector,
	})
	if err := s.store.Create(ctx, c, entry); err != nil {
		return Complaint{}, err
	}
	s.notify(ctx, nil, notify.KindSubmitted, "Nouvelle réclamation: "+c.Title, "/reclamations/"+c.ID)
	return c, nil
}

// List enumerates complaints, visibility scope first, caller filters second.
func (s *Service) List(ctx context.Context, actor perm.Actor, f Filters) ([]Complaint, error) {
	if actor.Anonymous() {
		return nil, ErrUnauthenticated
	}
	if !s.resolver.Has(ctx, actor, perm.PermReclamationsRead) {
		return nil, ErrForbidden
	}
	scope := ScopeFor(actor)
	if scope.Empty() {
		return []Complaint{}, nil
	}
	return s.store.List(ctx, scope, f.Normalize())
}

// Get fetches one complaint, enforcing the same scope predicate that filters
// listings. Records outside the actor's scope read as absent so their
// existence does not leak.
func (s *Service) Get(ctx context.Context, actor perm.Actor, id string) (Complaint, error) {
	if actor.Anonymous() {
		return Complaint{}, ErrUnauthenticated
	}
	if !s.resolver.Has(ctx, actor, perm.PermReclamationsRead) {
		return Complaint{}, ErrForbidden
	}
	return s.visible(ctx, actor, id)
}

// Accept applies the positive triage decision to a pending complaint.
func (s *Service) Accept(ctx context.Context, actor perm.Actor, id string) (Complaint, error) {
	c, err := s.guarded(ctx, actor, id, perm.PermReclamationsValidate)
	if err != nil {
		return Complaint{}, err
	}
	entry := s.entry(ctx, c.ID, actor, audit.ActionAccept, nil)
	updated, err := s.store.Update(ctx, c.ID, func(cur *Complaint) error {
		return accept(cur, s.now().UTC())
	}, entry)
	if err != nil {
		return Complaint{}, err
	}
	s.notify(ctx, []string{updated.CreatedBy}, notify.KindAccepted,
		"Votre réclamation a été acceptée", "/reclamations/"+updated.ID)
	return updated, nil
}

// Reject applies the negative triage decision, with an optional reason.
func (s *Service) Reject(ctx context.Context, actor perm.Actor, id, reason string) (Complaint, error) {
	c, err := s.guarded(ctx, actor, id, perm.PermReclamationsValidate)
	if err != nil {
		return Complaint{}, err
	}
	detail := map[string]string{}
	if strings.TrimSpace(reason) != "" {
		detail["reason"] = strings.TrimSpace(reason)
	}
	entry := s.entry(ctx, c.ID, actor, audit.ActionReject, detail)
	updated, err := s.store.Update(ctx, c.ID, func(cur *Complaint) error {
		return reject(cur, reason, s.now().UTC())
	}, entry)
	if err != nil {
		return Complaint{}, err
	}
	s.notify(ctx, []string{updated.CreatedBy}, notify.KindRejected,
		"Votre réclamation a été rejetée", "/reclamations/"+updated.ID)
	return updated, nil
}

// Assign dispatches an accepted complaint to a responsible authority. Two
// concurrent assigns are serialized by the store; the loser observes the
// winner's assignment and fails with ErrInvalidTransition.
func (s *Service) Assign(ctx context.Context, actor perm.Actor, id, authorityID string) (Complaint, error) {
	authorityID = strings.TrimSpace(authorityID)
	if authorityID == "" {
		return Complaint{}, fmt.Errorf("%w: authority_id is required", ErrInvalidInput)
	}
	c, err := s.guarded(ctx, actor, id, perm.PermReclamationsAssign)
	if err != nil {
		return Complaint{}, err
	}
	entry := s.entry(ctx, c.ID, actor, audit.ActionAssign, map[string]string{
		"authority_id": authorityID,
	})
	updated, err := s.store.Update(ctx, c.ID, func(cur *Complaint) error {
		return assign(cur, authorityID, s.now().UTC())
	}, entry)
	if err != nil {
		return Complaint{}, err
	}
	s.notify(ctx, []string{authorityID, updated.CreatedBy}, notify.KindAssigned,
		"Réclamation affectée pour traitement", "/reclamations/"+updated.ID)
	return updated, nil
}

// Resolve marks an assigned complaint as handled. The assigned authority may
// resolve its own dispatches; unrestricted roles may resolve any.
func (s *Service) Resolve(ctx context.Context, actor perm.Actor, id string) (Complaint, error) {
	if actor.Anonymous() {
		return Complaint{}, ErrUnauthenticated
	}
	if !s.resolver.Has(ctx, actor, perm.PermReclamationsResolve) {
		return Complaint{}, ErrForbidden
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Complaint{}, err
	}
	scope := ScopeFor(actor)
	if !scope.Allows(c) && c.AssignedAuthorityID != actor.ID {
		s.logScopeViolation(ctx, actor, id, "resolve")
		return Complaint{}, ErrNotFound
	}
	entry := s.entry(ctx, c.ID, actor, audit.ActionResolve, nil)
	updated, err := s.store.Update(ctx, c.ID, func(cur *Complaint) error {
		return resolve(cur, s.now().UTC())
	}, entry)
	if err != nil {
		return Complaint{}, err
	}
	s.notify(ctx, []string{updated.CreatedBy}, notify.KindResolved,
		"Votre réclamation a été traitée", "/reclamations/"+updated.ID)
	return updated, nil
}

// Reserved field names a content edit must never carry. Attempting to smuggle
// one is a security event, not a validation slip.
var reservedContentFields = map[string]struct{}{
	"status":                {},
	"assignment":            {},
	"assigned_authority_id": {},
	"resolved_at":           {},
	"rejection_reason":      {},
	"archived":              {},
	"created_by":            {},
}

// EditContent mutates title/description of a pending complaint, owner only.
// The payload arrives as raw fields so that any attempt to flip lifecycle
// state through this operation is detected, logged as a security event, and
// rejected as forbidden. State changes only happen through the dedicated
// transitions and their permissions.
func (s *Service) EditContent(ctx context.Context, actor perm.Actor, id string, fields map[string]json.RawMessage) (Complaint, error) {
	if actor.Anonymous() {
		return Complaint{}, ErrUnauthenticated
	}
	for name := range fields {
		if _, reserved := reservedContentFields[name]; reserved {
			_ = audit.LogSecurityEvent(ctx, "reclamation.status_smuggling", map[string]any{
				"actor_id":     actor.ID,
				"complaint_id": id,
				"field":        name,
			})
			return Complaint{}, fmt.Errorf("%w: field %q cannot be set through content edit", ErrForbidden, name)
		}
	}

	var title, description *string
	for name, raw := range fields {
		switch name {
		case "title":
			title = new(string)
			if err := json.Unmarshal(raw, title); err != nil {
				return Complaint{}, fmt.Errorf("%w: title must be a string", ErrInvalidInput)
			}
		case "description":
			description = new(string)
			if err := json.Unmarshal(raw, description); err != nil {
				return Complaint{}, fmt.Errorf("%w: description must be a string", ErrInvalidInput)
			}
		default:
			return Complaint{}, fmt.Errorf("%w: unknown field %q", ErrInvalidInput, name)
		}
	}
	if title == nil && description == nil {
		return Complaint{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	if !s.resolver.Has(ctx, actor, perm.PermReclamationsEdit) {
		return Complaint{}, ErrForbidden
	}
	c, err := s.visible(ctx, actor, id)
	if err != nil {
		return Complaint{}, err
	}
	if c.CreatedBy != actor.ID {
		return Complaint{}, ErrForbidden
	}

	nextTitle := c.Title
	if title != nil {
		nextTitle = strings.TrimSpace(*title)
	}
	nextDescription := c.Description
	if description != nil {
		nextDescription = strings.TrimSpace(*description)
	}
	if err := validateContent(nextTitle, nextDescription); err != nil {
		return Complaint{}, err
	}

	entry := s.entry(ctx, c.ID, actor, audit.ActionEditContent, nil)
	return s.store.Update(ctx, c.ID, func(cur *Complaint) error {
		if cur.CreatedBy != actor.ID {
			return ErrForbidden
		}
		return editContent(cur, title, description, s.now().UTC())
	}, entry)
}

// Withdraw hard-deletes a complaint and cascades its media. Owners may
// withdraw pending or rejected complaints; unrestricted roles with the delete
// permission may remove anything.
func (s *Service) Withdraw(ctx context.Context, actor perm.Actor, id string) error {
	if actor.Anonymous() {
		return ErrUnauthenticated
	}
	if !s.resolver.Has(ctx, actor, perm.PermReclamationsDelete) {
		return ErrForbidden
	}
	scope := ScopeFor(actor)
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !scope.Allows(c) {
		s.logScopeViolation(ctx, actor, id, "withdraw")
		return ErrNotFound
	}
	privileged := scope.All

	entry := s.entry(ctx, c.ID, actor, audit.ActionWithdraw, map[string]string{
		"status": string(c.Status),
	})
	if err := s.store.Delete(ctx, id, func(cur Complaint) error {
		return withdrawCheck(cur, actor.ID, privileged)
	}, entry); err != nil {
		return err
	}
	if s.media != nil {
		if err := s.media.DeleteForComplaint(ctx, id); err != nil {
			obs.LogRequest(map[string]any{
				"level":        "warn",
				"msg":          "media cascade failed",
				"complaint_id": id,
				"error":        err.Error(),
			})
		}
	}
	if privileged && c.CreatedBy != actor.ID {
		s.notify(ctx, []string{c.CreatedBy}, notify.KindWithdrawn,
			"Votre réclamation a été supprimée", "")
	}
	return nil
}

// Archive hides a processed complaint from default listings.
func (s *Service) Archive(ctx context.Context, actor perm.Actor, id string) (Complaint, error) {
	c, err := s.guarded(ctx, actor, id, perm.PermReclamationsArchive)
	if err != nil {
		return Complaint{}, err
	}
	entry := s.entry(ctx, c.ID, actor, audit.ActionArchive, nil)
	return s.store.Update(ctx, c.ID, func(cur *Complaint) error {
		return archive(cur, s.now().UTC())
	}, entry)
}

// Unarchive restores an archived complaint into default listings.
func (s *Service) Unarchive(ctx context.Context, actor perm.Actor, id string) (Complaint, error) {
	c, err := s.guarded(ctx, actor, id, perm.PermReclamationsArchive)
	if err != nil {
		return Complaint{}, err
	}
	entry := s.entry(ctx, c.ID, actor, audit.ActionUnarchive, nil)
	return s.store.Update(ctx, c.ID, func(cur *Complaint) error {
		return unarchive(cur, s.now().UTC())
	}, entry)
}

// Trail returns the audit entries of one complaint. Access follows the same
// visibility scope as the parent record.
func (s *Service) Trail(ctx context.Context, actor perm.Actor, id string) ([]audit.Entry, error) {
	if actor.Anonymous() {
		return nil, ErrUnauthenticated
	}
	if !s.resolver.Has(ctx, actor, perm.PermReclamationsRead) {
		return nil, ErrForbidden
	}
	if _, err := s.visible(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.Trail(ctx, id)
}

// RecentAudit lists the newest audit entries across all complaints, for
// supervisory roles only.
func (s *Service) RecentAudit(ctx context.Context, actor perm.Actor, limit int) ([]audit.Entry, error) {
	if actor.Anonymous() {
		return nil, ErrUnauthenticated
	}
	if !s.resolver.Has(ctx, actor, perm.PermAuditRead) {
		return nil, ErrForbidden
	}
	if !ScopeFor(actor).All {
		return nil, ErrForbidden
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.RecentTrail(ctx, limit)
}

// guarded performs the shared authenticate → permission → scope prologue of
// the triage/dispatch/archive transitions.
func (s *Service) guarded(ctx context.Context, actor perm.Actor, id, permission string) (Complaint, error) {
	if actor.Anonymous() {
		return Complaint{}, ErrUnauthenticated
	}
	if !s.resolver.Has(ctx, actor, permission) {
		return Complaint{}, ErrForbidden
	}
	return s.visible(ctx, actor, id)
}

// visible fetches a record and applies the scope predicate post-fetch.
func (s *Service) visible(ctx context.Context, actor perm.Actor, id string) (Complaint, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Complaint{}, err
	}
	if !ScopeFor(actor).Allows(c) {
		s.logScopeViolation(ctx, actor, id, "read")
		return Complaint{}, ErrNotFound
	}
	return c, nil
}

func (s *Service) logScopeViolation(ctx context.Context, actor perm.Actor, id, op string) {
	_ = audit.LogSecurityEvent(ctx, "reclamation.scope_violation", map[string]any{
		"actor_id":     actor.ID,
		"role":         string(actor.Role),
		"complaint_id": id,
		"operation":    op,
	})
}

func (s *Service) entry(ctx context.Context, complaintID string, actor perm.Actor, action string, detail map[string]string) audit.Entry {
	return audit.Entry{
		ID:          ids.New(),
		ComplaintID: complaintID,
		ActorID:     actor.ID,
		Action:      action,
		Detail:      detail,
		IP:          audit.ClientIPFromContext(ctx),
		OccurredAt:  s.now().UTC(),
	}
}

func (s *Service) notify(ctx context.Context, userIDs []string, kind, body, link string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, userIDs, kind, body, link)
}

func validateContent(title, description string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(title) > maxTitleLen {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, maxTitleLen)
	}
	if description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if len(description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidInput, maxDescriptionLen)
	}
	return nil
}
