package complaint

import (
	"errors"
	"strings"
	"time"
)

// Status is the triage axis of a complaint. A freshly submitted complaint is
// pending until a delegation or admin accepts or rejects it; the state is a
// real three-way enumeration, never a nullable string.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// ParseStatus normalises a raw status value.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.TrimSpace(strings.ToLower(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusAccepted:
		return StatusAccepted, true
	case StatusRejected:
		return StatusRejected, true
	default:
		return "", false
	}
}

// Geo is an optional complaint geolocation.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Complaint is the central record. The dispatch axis is carried by
// AssignedAuthorityID: empty means unassigned, and assignment is only
// meaningful once the triage axis is accepted.
type Complaint struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Sector          string `json:"sector"`
	CreatedBy       string `json:"created_by"`
	CommuneID       string `json:"commune_id"`
	EstablishmentID string `json:"establishment_id,omitempty"`
	Location        *Geo   `json:"location,omitempty"`

	Status              Status     `json:"status"`
	AssignedAuthorityID string     `json:"assigned_authority_id,omitempty"`
	RejectionReason     string     `json:"rejection_reason,omitempty"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
	Archived            bool       `json:"archived"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assigned reports the dispatch axis.
func (c Complaint) Assigned() bool { return c.AssignedAuthorityID != "" }

// Resolved reports whether the resolution timestamp has been set.
func (c Complaint) Resolved() bool { return c.ResolvedAt != nil }

// InProgress reports whether the complaint entered processing: accepted and
// assigned, or already resolved. In-progress complaints are never
// owner-deletable. A rejected complaint is not in progress and stays
// deletable by its owner.
func (c Complaint) InProgress() bool {
	return (c.Status == StatusAccepted && c.Assigned()) || c.Resolved()
}

// CheckInvariants verifies the structural invariants that must hold at every
// point in a complaint's lifetime, not just at creation.
func (c Complaint) CheckInvariants() error {
	if c.Assigned() && c.Status != StatusAccepted {
		return errors.New("assigned complaint must be accepted")
	}
	if c.Resolved() && !c.Assigned() {
		return errors.New("resolved complaint must be assigned")
	}
	return nil
}

// Error taxonomy. All expected outcomes are typed values returned to the
// calling boundary; exceptions are never used for control flow.
var (
	ErrUnauthenticated   = errors.New("reclamation: unauthenticated")
	ErrForbidden         = errors.New("reclamation: forbidden")
	ErrNotFound          = errors.New("reclamation: not found")
	ErrInvalidInput      = errors.New("reclamation: invalid input")
	ErrInvalidTransition = errors.New("reclamation: invalid transition")
	ErrConflict          = errors.New("reclamation: conflict")
)

// Filters narrows a listing after the visibility scope has been applied.
type Filters struct {
	Status          *Status
	Category        string
	CommuneID       string
	IncludeArchived bool
	Limit           int
}

// Normalize clamps the limit the same way for every store implementation.
func (f Filters) Normalize() Filters {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return f
}

// Match applies the filter predicate to one complaint. Store implementations
// that push filters into SQL must agree with this function exactly.
func (f Filters) Match(c Complaint) bool {
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.CommuneID != "" && c.CommuneID != f.CommuneID {
		return false
	}
	if !f.IncludeArchived && c.Archived {
		return false
	}
	return true
}
