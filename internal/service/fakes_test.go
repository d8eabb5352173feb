package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mesflow/backend/internal/db"
	"github.com/mesflow/backend/internal/models"
)

// fakeStore is an in-memory stand-in for db.Store covering every store
// interface the services consume.
type fakeStore struct {
	mu            sync.Mutex
	alerts        map[string]models.DefectAlert // keyed by qc_session_id
	workOrders    []models.WorkOrder
	notifications []models.Notification
	users         []models.User

	seq int

	lastListLimit  int
	lastListOffset int

	failUpsert     error
	failWorkOrder  error
	failUsers      error
	failNotifyUser map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{alerts: map[string]models.DefectAlert{}}
}

func (f *fakeStore) nextTime() time.Time {
	f.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.seq) * time.Second)
}

func (f *fakeStore) UpsertDefectAlert(_ context.Context, a models.DefectAlert) (models.DefectAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert != nil {
		return models.DefectAlert{}, f.failUpsert
	}
	if existing, ok := f.alerts[a.QCSessionID]; ok {
		existing.TicketNo = a.TicketNo
		existing.StationID = a.StationID
		existing.StationName = a.StationName
		existing.QCTaskRef = a.QCTaskRef
		existing.DefectQty = a.DefectQty
		existing.UpdatedBy = a.CreatedBy
		existing.UpdatedAt = f.nextTime()
		f.alerts[a.QCSessionID] = existing
		return existing, nil
	}
	a.Status = models.AlertStatusOpen
	a.CreatedAt = f.nextTime()
	a.UpdatedAt = a.CreatedAt
	f.alerts[a.QCSessionID] = a
	return a, nil
}

func (f *fakeStore) GetDefectAlert(_ context.Context, id string) (models.DefectAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return models.DefectAlert{}, db.ErrNotFound
}

func (f *fakeStore) ResolveDefectAlert(_ context.Context, id string, rpdRef, ncNote, resolvedBy *string) (models.DefectAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, a := range f.alerts {
		if a.ID != id {
			continue
		}
		a.Status = models.AlertStatusResolved
		if rpdRef != nil {
			a.RPDRef = rpdRef
		}
		if ncNote != nil {
			a.NCNote = ncNote
		}
		if resolvedBy != nil {
			a.UpdatedBy = resolvedBy
		}
		a.UpdatedAt = f.nextTime()
		f.alerts[key] = a
		return a, nil
	}
	return models.DefectAlert{}, db.ErrNotFound
}

func (f *fakeStore) ListDefectAlerts(_ context.Context, status, query string, limit, offset int) ([]models.DefectAlert, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastListLimit = limit
	f.lastListOffset = offset

	var matched []models.DefectAlert
	for _, a := range f.alerts {
		if status != "" && a.Status != status {
			continue
		}
		if query != "" {
			q := strings.ToLower(query)
			name := ""
			if a.StationName != nil {
				name = *a.StationName
			}
			if !strings.Contains(strings.ToLower(a.TicketNo), q) && !strings.Contains(strings.ToLower(name), q) {
				continue
			}
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (f *fakeStore) InsertWorkOrder(_ context.Context, w models.WorkOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWorkOrder != nil {
		return f.failWorkOrder
	}
	f.workOrders = append(f.workOrders, w)
	return nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, n models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failNotifyUser[n.UserID]; ok {
		return err
	}
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, id string) (models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notifications {
		if n.ID == id {
			f.notifications[i].Read = true
			return f.notifications[i], nil
		}
	}
	return models.Notification{}, db.ErrNotFound
}

func (f *fakeStore) ListNotifications(_ context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeStore) ListUsersByRoles(ctx context.Context, roles []string) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers != nil {
		return nil, f.failUsers
	}
	var out []models.User
	for _, u := range f.users {
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) notificationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notifications)
}
