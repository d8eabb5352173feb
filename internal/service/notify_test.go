package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mesflow/backend/internal/db"
	"github.com/mesflow/backend/internal/models"
)

func newNotifier(store *fakeStore) *Notifier {
	return &Notifier{
		Store:    store,
		Audience: RoleAudienceResolver{Users: store},
		Logger:   zerolog.Nop(),
	}
}

func TestNotifyQCFailureEmptyAudience(t *testing.T) {
	store := newFakeStore()
	n := newNotifier(store)

	delivered := n.NotifyQCFailure(context.Background(), "T-1", "S-1")
	if delivered != 0 {
		t.Fatalf("expected zero deliveries, got %d", delivered)
	}
	if store.notificationCount() != 0 {
		t.Fatalf("expected no notifications written, got %d", store.notificationCount())
	}
}

func TestNotifyQCFailureResolverFailureIsSilent(t *testing.T) {
	store := newFakeStore()
	store.failUsers = fmt.Errorf("%w: timeout", db.ErrPersistence)
	n := newNotifier(store)

	if delivered := n.NotifyQCFailure(context.Background(), "T-1", "S-1"); delivered != 0 {
		t.Fatalf("expected fan-out to be skipped, got %d deliveries", delivered)
	}
}

func TestNotifyQCFailureFansOutToAdminsAndSupervisors(t *testing.T) {
	store := newFakeStore()
	store.users = []models.User{
		{ID: "u1", Role: models.RoleAdmin},
		{ID: "u2", Role: models.RoleSupervisor},
		{ID: "u3", Role: "operator"},
	}
	n := newNotifier(store)

	delivered := n.NotifyQCFailure(context.Background(), "T-1", "S-1")
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}
	seen := map[string]bool{}
	for _, row := range store.notifications {
		if row.Type != models.NotificationQCFailed {
			t.Fatalf("unexpected type %s", row.Type)
		}
		if row.TicketNo == nil || *row.TicketNo != "T-1" || row.QCSessionID == nil || *row.QCSessionID != "S-1" {
			t.Fatalf("missing ticket/session payload: %+v", row)
		}
		if row.Read {
			t.Fatalf("expected notifications to start unread")
		}
		seen[row.UserID] = true
	}
	if !seen["u1"] || !seen["u2"] || seen["u3"] {
		t.Fatalf("wrong audience: %v", seen)
	}
}

func TestFanOutToleratesSingleWriteFailure(t *testing.T) {
	store := newFakeStore()
	store.users = []models.User{
		{ID: "u1", Role: models.RoleAdmin},
		{ID: "u2", Role: models.RoleAdmin},
		{ID: "u3", Role: models.RoleSupervisor},
	}
	store.failNotifyUser = map[string]error{"u2": fmt.Errorf("%w: write failed", db.ErrPersistence)}
	n := newNotifier(store)

	delivered := n.NotifyQCFailure(context.Background(), "T-1", "S-1")
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries despite one failure, got %d", delivered)
	}
	if store.notificationCount() != 2 {
		t.Fatalf("expected 2 rows written, got %d", store.notificationCount())
	}
}

func TestFanOutSurvivesCallerCancellation(t *testing.T) {
	store := newFakeStore()
	store.users = []models.User{{ID: "u1", Role: models.RoleAdmin}}
	n := newNotifier(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The fake rejects cancelled contexts, so both audience resolution and
	// the write must run on a context detached from the caller's.
	if delivered := n.NotifyQCFailure(ctx, "T-1", "S-1"); delivered != 1 {
		t.Fatalf("expected delivery under cancelled caller, got %d", delivered)
	}
	if store.notificationCount() != 1 {
		t.Fatalf("expected 1 row written, got %d", store.notificationCount())
	}
}

func TestNotifyWorkOrderAssigned(t *testing.T) {
	store := newFakeStore()
	n := newNotifier(store)

	if err := n.NotifyWorkOrderAssigned(context.Background(), "wo-1", nil); err != nil {
		t.Fatalf("nil assignee: %v", err)
	}
	empty := "  "
	if err := n.NotifyWorkOrderAssigned(context.Background(), "wo-1", &empty); err != nil {
		t.Fatalf("blank assignee: %v", err)
	}
	if store.notificationCount() != 0 {
		t.Fatalf("expected no-op without assignee, got %d rows", store.notificationCount())
	}

	assignee := "u9"
	if err := n.NotifyWorkOrderAssigned(context.Background(), "wo-1", &assignee); err != nil {
		t.Fatalf("assigned: %v", err)
	}
	if store.notificationCount() != 1 || store.notifications[0].Type != models.NotificationReworkAssigned {
		t.Fatalf("expected one rework_assigned row, got %+v", store.notifications)
	}
}

func TestNotifyNewTicketAndProject(t *testing.T) {
	store := newFakeStore()
	store.users = []models.User{
		{ID: "u1", Role: models.RoleAdmin},
		{ID: "u2", Role: models.RoleSupervisor},
	}
	n := newNotifier(store)

	if delivered := n.NotifyNewTicket(context.Background(), "T-7"); delivered != 2 {
		t.Fatalf("expected 2 new_ticket deliveries, got %d", delivered)
	}
	if delivered := n.NotifyNewProject(context.Background(), "Atlas"); delivered != 2 {
		t.Fatalf("expected 2 new_project deliveries, got %d", delivered)
	}

	types := map[string]int{}
	for _, row := range store.notifications {
		types[row.Type]++
	}
	if types[models.NotificationNewTicket] != 2 || types[models.NotificationNewProject] != 2 {
		t.Fatalf("unexpected notification types: %v", types)
	}
}

func TestListForUser(t *testing.T) {
	store := newFakeStore()
	store.users = []models.User{{ID: "u1", Role: models.RoleAdmin}}
	n := newNotifier(store)
	n.NotifyQCFailure(context.Background(), "T-1", "S-1")
	n.NotifyNewTicket(context.Background(), "T-2")

	all, err := n.ListForUser(context.Background(), "u1", false)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 notifications, got %d (%v)", len(all), err)
	}

	if _, err := n.MarkRead(context.Background(), all[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, err := n.ListForUser(context.Background(), "u1", true)
	if err != nil || len(unread) != 1 {
		t.Fatalf("expected 1 unread notification, got %d (%v)", len(unread), err)
	}

	if _, err := n.ListForUser(context.Background(), " ", false); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank user, got %v", err)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	store := newFakeStore()
	store.users = []models.User{{ID: "u1", Role: models.RoleAdmin}}
	n := newNotifier(store)
	n.NotifyQCFailure(context.Background(), "T-1", "S-1")

	id := store.notifications[0].ID
	first, err := n.MarkRead(context.Background(), id)
	if err != nil || !first.Read {
		t.Fatalf("mark read: %v %+v", err, first)
	}
	second, err := n.MarkRead(context.Background(), id)
	if err != nil || !second.Read {
		t.Fatalf("re-mark read: %v %+v", err, second)
	}

	if _, err := n.MarkRead(context.Background(), "missing"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
