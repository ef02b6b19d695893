package audit

import "time"

// Action kinds recorded in the trail, one per state transition.
const (
	ActionSubmit      = "reclamation.submit"
	ActionAccept      = "reclamation.accept"
	ActionReject      = "reclamation.reject"
	ActionAssign      = "reclamation.assign"
	ActionResolve     = "reclamation.resolve"
	ActionEditContent = "reclamation.edit_content"
	ActionWithdraw    = "reclamation.withdraw"
	ActionArchive     = "reclamation.archive"
	ActionUnarchive   = "reclamation.unarchive"
)

// Entry is an immutable record of one complaint transition. Entries are
// written in the same transaction as the transition they describe and are
// never mutated or deleted afterwards; they survive the hard deletion of the
// parent complaint.
type Entry struct {
	ID          string            `json:"id"`
	ComplaintID string            `json:"complaint_id"`
	ActorID     string            `json:"actor_id"`
	Action      string            `json:"action"`
	Detail      map[string]string `json:"detail,omitempty"`
	IP          string            `json:"ip,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}
