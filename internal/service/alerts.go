package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mesflow/backend/internal/models"
)

// ErrValidation marks malformed caller input. Never retried, maps to a
// 4xx at the HTTP boundary.
var ErrValidation = errors.New("validation failed")

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type AlertStore interface {
	UpsertDefectAlert(ctx context.Context, a models.DefectAlert) (models.DefectAlert, error)
	GetDefectAlert(ctx context.Context, id string) (models.DefectAlert, error)
	ResolveDefectAlert(ctx context.Context, id string, rpdRef, ncNote, resolvedBy *string) (models.DefectAlert, error)
	ListDefectAlerts(ctx context.Context, status, query string, limit, offset int) ([]models.DefectAlert, int, error)
}

// FailureReport is one QC session's failure submission.
type FailureReport struct {
	TicketNo    string
	SessionID   string
	StationID   *string
	StationName *string
	QCTaskRef   *string
	DefectQty   int
	CreatedBy   *string
}

type AlertService struct {
	Store  AlertStore
	Logger zerolog.Logger
}

// ReportFailure records the defect alert for a QC session. Duplicate and
// concurrent submissions for the same session converge to one row: the
// write is an upsert keyed on the session ID, resolved atomically by the
// store. A repeated report refreshes the alert's fields but never moves
// its status.
func (s *AlertService) ReportFailure(ctx context.Context, r FailureReport) (models.DefectAlert, error) {
	if strings.TrimSpace(r.TicketNo) == "" {
		return models.DefectAlert{}, fmt.Errorf("%w: ticket_no is required", ErrValidation)
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return models.DefectAlert{}, fmt.Errorf("%w: session_id is required", ErrValidation)
	}
	if r.DefectQty < 0 {
		return models.DefectAlert{}, fmt.Errorf("%w: defect_qty must be non-negative", ErrValidation)
	}

	alert, err := s.Store.UpsertDefectAlert(ctx, models.DefectAlert{
		ID:          uuid.NewString(),
		TicketNo:    strings.TrimSpace(r.TicketNo),
		StationID:   r.StationID,
		StationName: r.StationName,
		QCSessionID: strings.TrimSpace(r.SessionID),
		QCTaskRef:   r.QCTaskRef,
		DefectQty:   r.DefectQty,
		Status:      models.AlertStatusOpen,
		CreatedBy:   r.CreatedBy,
	})
	if err != nil {
		return models.DefectAlert{}, err
	}
	s.Logger.Info().
		Str("ticket_no", alert.TicketNo).
		Str("qc_session_id", alert.QCSessionID).
		Int("defect_qty", alert.DefectQty).
		Msg("defect alert recorded")
	return alert, nil
}

func (s *AlertService) Get(ctx context.Context, id string) (models.DefectAlert, error) {
	return s.Store.GetDefectAlert(ctx, id)
}

// Resolve closes the alert. Resolution is terminal and idempotent on
// status: resolving an already-resolved alert succeeds and leaves it
// resolved.
func (s *AlertService) Resolve(ctx context.Context, id string, rpdRef, ncNote, resolvedBy *string) (models.DefectAlert, error) {
	if strings.TrimSpace(id) == "" {
		return models.DefectAlert{}, fmt.Errorf("%w: id is required", ErrValidation)
	}
	return s.Store.ResolveDefectAlert(ctx, id, rpdRef, ncNote, resolvedBy)
}

// List pages through alerts, newest first. Page is 1-based; pageSize is
// clamped to [1,100]. A page past the end returns an empty slice with the
// correct total.
func (s *AlertService) List(ctx context.Context, status, query string, page, pageSize int) ([]models.DefectAlert, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	items, total, err := s.Store.ListDefectAlerts(ctx, status, strings.TrimSpace(query), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []models.DefectAlert{}
	}
	return items, total, nil
}
