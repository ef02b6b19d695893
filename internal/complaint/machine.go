package complaint

import (
	"fmt"
	"strings"
	"time"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/perm"
)

// The state machine is expressed as pure mutation functions over a Complaint.
// Stores run them while holding the row lock, so a precondition check and the
// mutation it guards are atomic with respect to concurrent transitions: the
// loser of an Assign race observes the winner's state and fails with
// ErrInvalidTransition instead of silently overwriting.

// Transition names used for permission lookup and audit detail.
const (
	TransitionSubmit      = "submit"
	TransitionAccept      = "accept"
	TransitionReject      = "reject"
	TransitionAssign      = "assign"
	TransitionResolve     = "resolve"
	TransitionEditContent = "edit_content"
	TransitionWithdraw    = "withdraw"
	TransitionArchive     = "archive"
	TransitionUnarchive   = "unarchive"
)

// transitionPermissions maps each transition to the single permission code it
// requires. Ownership and scope conditions are checked by the service on top.
var transitionPermissions = map[string]string{
	TransitionSubmit:      perm.PermReclamationsCreate,
	TransitionAccept:      perm.PermReclamationsValidate,
	TransitionReject:      perm.PermReclamationsValidate,
	TransitionAssign:      perm.PermReclamationsAssign,
	TransitionResolve:     perm.PermReclamationsResolve,
	TransitionEditContent: perm.PermReclamationsEdit,
	TransitionWithdraw:    perm.PermReclamationsDelete,
	TransitionArchive:     perm.PermReclamationsArchive,
	TransitionUnarchive:   perm.PermReclamationsArchive,
}

// RequiredPermission returns the permission code gating a transition.
func RequiredPermission(transition string) (string, bool) {
	code, ok := transitionPermissions[transition]
	return code, ok
}

// accept moves a pending complaint onto the accepted branch of the triage
// axis. Re-applying to a non-pending complaint is an invalid transition, not
// a no-op: Accept and Reject are mutually exclusive and applied exactly once.
func accept(c *Complaint, now time.Time) error {
	if c.Status != StatusPending {
		return fmt.Errorf("%w: cannot accept a %s complaint", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusAccepted
	c.UpdatedAt = now
	return nil
}

func reject(c *Complaint, reason string, now time.Time) error {
	if c.Status != StatusPending {
		return fmt.Errorf("%w: cannot reject a %s complaint", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusRejected
	c.RejectionReason = strings.TrimSpace(reason)
	c.UpdatedAt = now
	return nil
}

// assign binds an accepted, unassigned complaint to a responsible authority.
func assign(c *Complaint, authorityID string, now time.Time) error {
	if c.Status != StatusAccepted {
		return fmt.Errorf("%w: only accepted complaints can be assigned", ErrInvalidTransition)
	}
	if c.Assigned() {
		return fmt.Errorf("%w: complaint already assigned to %s", ErrInvalidTransition, c.AssignedAuthorityID)
	}
	c.AssignedAuthorityID = authorityID
	c.UpdatedAt = now
	return nil
}

// resolve sets the resolution timestamp exactly once, strictly after assignment.
func resolve(c *Complaint, now time.Time) error {
	if !c.Assigned() {
		return fmt.Errorf("%w: only assigned complaints can be resolved", ErrInvalidTransition)
	}
	if c.Resolved() {
		return fmt.Errorf("%w: complaint already resolved", ErrInvalidTransition)
	}
	ts := now
	c.ResolvedAt = &ts
	c.UpdatedAt = now
	return nil
}

// editContent mutates title/description only, and only while the triage
// decision is still pending. Status, assignment and resolution fields are
// outside its reach by construction.
func editContent(c *Complaint, title, description *string, now time.Time) error {
	if c.Status != StatusPending {
		// Owners lose edit rights as soon as triage happens; surfaced as a
		// permission failure, not a transition failure.
		return fmt.Errorf("%w: content is frozen once the complaint is %s", ErrForbidden, c.Status)
	}
	if title != nil {
		c.Title = strings.TrimSpace(*title)
	}
	if description != nil {
		c.Description = strings.TrimSpace(*description)
	}
	c.UpdatedAt = now
	return nil
}

func archive(c *Complaint, now time.Time) error {
	if c.Archived {
		return fmt.Errorf("%w: complaint already archived", ErrInvalidTransition)
	}
	if !c.Resolved() && c.Status != StatusRejected {
		return fmt.Errorf("%w: only resolved or rejected complaints can be archived", ErrInvalidTransition)
	}
	c.Archived = true
	c.UpdatedAt = now
	return nil
}

func unarchive(c *Complaint, now time.Time) error {
	if !c.Archived {
		return fmt.Errorf("%w: complaint is not archived", ErrInvalidTransition)
	}
	c.Archived = false
	c.UpdatedAt = now
	return nil
}

// withdrawCheck validates the hard-delete precondition. Owners can withdraw
// complaints that are still pending, or that were rejected at triage;
// anything accepted has entered processing and stays. Privileged actors can
// delete unconditionally.
func withdrawCheck(c Complaint, actorID string, privileged bool) error {
	if privileged {
		return nil
	}
	if c.CreatedBy != actorID {
		return ErrForbidden
	}
	if c.Status == StatusAccepted || c.Resolved() {
		return fmt.Errorf("%w: complaint is being processed", ErrInvalidTransition)
	}
	return nil
}
