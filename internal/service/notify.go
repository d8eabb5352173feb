package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mesflow/backend/internal/models"
)

type NotificationStore interface {
	InsertNotification(ctx context.Context, n models.Notification) error
	MarkNotificationRead(ctx context.Context, id string) (models.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
}

type UserDirectory interface {
	ListUsersByRoles(ctx context.Context, roles []string) ([]models.User, error)
}

// AudienceResolver decides who receives a given notification type.
type AudienceResolver interface {
	Resolve(ctx context.Context, notificationType string) ([]models.User, error)
}

// RoleAudienceResolver targets every admin and supervisor regardless of
// notification type.
type RoleAudienceResolver struct {
	Users UserDirectory
}

func (r RoleAudienceResolver) Resolve(ctx context.Context, _ string) ([]models.User, error) {
	return r.Users.ListUsersByRoles(ctx, []string{models.RoleAdmin, models.RoleSupervisor})
}

type Notifier struct {
	Store    NotificationStore
	Audience AudienceResolver
	Logger   zerolog.Logger
}

// fanOut writes one notification per resolved target. Targets that cannot
// be resolved skip the fan-out silently; a single write failure is logged
// and never blocks delivery to the rest. The whole fan-out, audience
// resolution included, is detached from the caller's cancellation so an
// abandoned request still delivers.
func (n *Notifier) fanOut(ctx context.Context, notif models.Notification) int {
	ctx = context.WithoutCancel(ctx)

	targets, err := n.Audience.Resolve(ctx, notif.Type)
	if err != nil {
		n.Logger.Warn().Err(err).Str("type", notif.Type).Msg("audience resolution failed, skipping fan-out")
		return 0
	}
	if len(targets) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	errs := make([]error, len(targets))
	for i, target := range targets {
		i, target := i, target
		wg.Add(1)
		go func() {
			defer wg.Done()
			row := notif
			row.ID = uuid.NewString()
			row.UserID = target.ID
			row.CreatedAt = time.Now().UTC()
			errs[i] = n.Store.InsertNotification(ctx, row)
		}()
	}
	wg.Wait()

	delivered := 0
	for i, err := range errs {
		if err != nil {
			n.Logger.Error().Err(err).
				Str("user_id", targets[i].ID).
				Str("type", notif.Type).
				Msg("notification write failed")
			continue
		}
		delivered++
	}
	return delivered
}

// NotifyQCFailure fans out a qc_failed notification to the responder
// audience. Best effort: returns the delivered count, never an error.
func (n *Notifier) NotifyQCFailure(ctx context.Context, ticketNo, qcSessionID string) int {
	return n.fanOut(ctx, models.Notification{
		Type:        models.NotificationQCFailed,
		Title:       "QC check failed",
		Message:     fmt.Sprintf("Ticket %s failed a QC check and needs attention", ticketNo),
		TicketNo:    &ticketNo,
		QCSessionID: &qcSessionID,
	})
}

func (n *Notifier) NotifyNewTicket(ctx context.Context, ticketNo string) int {
	return n.fanOut(ctx, models.Notification{
		Type:     models.NotificationNewTicket,
		Title:    "New ticket",
		Message:  fmt.Sprintf("Ticket %s was created", ticketNo),
		TicketNo: &ticketNo,
	})
}

func (n *Notifier) NotifyNewProject(ctx context.Context, projectName string) int {
	return n.fanOut(ctx, models.Notification{
		Type:    models.NotificationNewProject,
		Title:   "New project",
		Message: fmt.Sprintf("Project %s was created", projectName),
	})
}

// NotifyWorkOrderAssigned tells the assignee about a rework order. A
// missing assignee is a no-op; assignment is optional here.
func (n *Notifier) NotifyWorkOrderAssigned(ctx context.Context, workOrderID string, assigneeID *string) error {
	if assigneeID == nil || strings.TrimSpace(*assigneeID) == "" {
		return nil
	}
	return n.Store.InsertNotification(context.WithoutCancel(ctx), models.Notification{
		ID:        uuid.NewString(),
		UserID:    *assigneeID,
		Type:      models.NotificationReworkAssigned,
		Title:     "Rework assigned",
		Message:   fmt.Sprintf("Rework work order %s was assigned to you", workOrderID),
		CreatedAt: time.Now().UTC(),
	})
}

func (n *Notifier) MarkRead(ctx context.Context, id string) (models.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return models.Notification{}, fmt.Errorf("%w: id is required", ErrValidation)
	}
	return n.Store.MarkNotificationRead(ctx, id)
}

func (n *Notifier) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	items, err := n.Store.ListNotifications(ctx, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}
