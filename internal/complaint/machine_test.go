package complaint

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func pendingComplaint() Complaint {
	return Complaint{
		ID:          "01TEST",
		Title:       "Lampadaire cassé",
		Description: "Le lampadaire de la rue principale ne fonctionne plus.",
		Category:    "infrastructure",
		Sector:      "EQUIPEMENT",
		CreatedBy:   "usr-cit-1",
		CommuneID:   "com-1",
		Status:      StatusPending,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
}

func mustInvariants(t *testing.T, c Complaint) {
	t.Helper()
	if err := c.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

func TestAcceptOnlyFromPending(t *testing.T) {
	c := pendingComplaint()
	if err := accept(&c, testNow); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if c.Status != StatusAccepted {
		t.Fatalf("status = %s, want accepted", c.Status)
	}
	mustInvariants(t, c)

	// Triage decisions apply exactly once.
	if err := accept(&c, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second accept: got %v, want ErrInvalidTransition", err)
	}
	if err := reject(&c, "trop tard", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reject after accept: got %v, want ErrInvalidTransition", err)
	}
}

func TestRejectKeepsReason(t *testing.T) {
	c := pendingComplaint()
	if err := reject(&c, "  hors périmètre  ", testNow); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if c.Status != StatusRejected || c.RejectionReason != "hors périmètre" {
		t.Fatalf("unexpected state: %s / %q", c.Status, c.RejectionReason)
	}
	mustInvariants(t, c)

	if err := accept(&c, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("accept after reject: got %v, want ErrInvalidTransition", err)
	}
}

func TestAssignRequiresAcceptedAndUnassigned(t *testing.T) {
	c := pendingComplaint()
	if err := assign(&c, "aut-1", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("assign pending: got %v, want ErrInvalidTransition", err)
	}

	if err := accept(&c, testNow); err != nil {
		t.Fatal(err)
	}
	if err := assign(&c, "aut-1", testNow); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if c.AssignedAuthorityID != "aut-1" {
		t.Fatalf("assigned to %q, want aut-1", c.AssignedAuthorityID)
	}
	mustInvariants(t, c)

	if err := assign(&c, "aut-2", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reassign: got %v, want ErrInvalidTransition", err)
	}
	if c.AssignedAuthorityID != "aut-1" {
		t.Fatal("losing assign must not overwrite the winner")
	}
}

func TestResolveRequiresAssignment(t *testing.T) {
	c := pendingComplaint()
	if err := resolve(&c, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resolve unassigned: got %v, want ErrInvalidTransition", err)
	}

	accept(&c, testNow)
	if err := resolve(&c, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatal("resolve must require assignment, not just acceptance")
	}

	assign(&c, "aut-1", testNow)
	if err := resolve(&c, testNow); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !c.Resolved() || !c.ResolvedAt.Equal(testNow) {
		t.Fatalf("unexpected resolution: %+v", c.ResolvedAt)
	}
	mustInvariants(t, c)

	if err := resolve(&c, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double resolve: got %v, want ErrInvalidTransition", err)
	}
}

func TestEditContentFrozenAfterTriage(t *testing.T) {
	c := pendingComplaint()
	title := "Lampadaire toujours cassé"
	if err := editContent(&c, &title, nil, testNow); err != nil {
		t.Fatalf("edit pending: %v", err)
	}
	if c.Title != title {
		t.Fatalf("title = %q", c.Title)
	}

	accept(&c, testNow)
	if err := editContent(&c, &title, nil, testNow); !errors.Is(err, ErrForbidden) {
		t.Fatalf("edit accepted: got %v, want ErrForbidden", err)
	}
}

func TestArchiveRequiresTerminalState(t *testing.T) {
	c := pendingComplaint()
	if err := archive(&c, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("archive pending: got %v, want ErrInvalidTransition", err)
	}

	reject(&c, "", testNow)
	if err := archive(&c, testNow); err != nil {
		t.Fatalf("archive rejected: %v", err)
	}
	if err := archive(&c, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatal("double archive must fail")
	}
	if err := unarchive(&c, testNow); err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	if err := unarchive(&c, testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatal("double unarchive must fail")
	}
}

func TestWithdrawCheck(t *testing.T) {
	owner := "usr-cit-1"

	c := pendingComplaint()
	if err := withdrawCheck(c, owner, false); err != nil {
		t.Fatalf("owner withdraw pending: %v", err)
	}
	if err := withdrawCheck(c, "usr-other", false); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner withdraw: got %v, want ErrForbidden", err)
	}

	accept(&c, testNow)
	if err := withdrawCheck(c, owner, false); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("owner withdraw accepted: got %v, want ErrInvalidTransition", err)
	}
	if err := withdrawCheck(c, owner, true); err != nil {
		t.Fatalf("privileged withdraw accepted: %v", err)
	}

	rejected := pendingComplaint()
	reject(&rejected, "doublon", testNow)
	if err := withdrawCheck(rejected, owner, false); err != nil {
		t.Fatalf("owner withdraw rejected: %v", err)
	}
}

func TestRequiredPermission(t *testing.T) {
	if code, ok := RequiredPermission(TransitionAccept); !ok || code != "reclamations.validate" {
		t.Fatalf("accept permission = %q, %v", code, ok)
	}
	if _, ok := RequiredPermission("promote"); ok {
		t.Fatal("unknown transition must not map to a permission")
	}
}
