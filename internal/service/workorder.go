package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mesflow/backend/internal/models"
)

type WorkOrderStore interface {
	InsertWorkOrder(ctx context.Context, w models.WorkOrder) error
}

type WorkOrderService struct {
	Store  WorkOrderStore
	Logger zerolog.Logger
}

// DerivePriority maps the failed-row count onto the rework priority.
// Thresholds are fixed: more than 5 rows is urgent, 3 to 5 is high,
// anything below is medium.
func DerivePriority(failedRows int) string {
	switch {
	case failedRows > 5:
		return models.PriorityUrgent
	case failedRows >= 3:
		return models.PriorityHigh
	default:
		return models.PriorityMedium
	}
}

// BuildFailedItems maps QC rows onto work-order items. Missing source
// fields stay zero-valued; order is preserved.
func BuildFailedItems(rows []models.QCFailedRow) []models.FailedItem {
	items := make([]models.FailedItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, models.FailedItem{
			Item:     r.ProductionNo,
			Category: r.Project,
			Reason:   r.Note,
			Qty:      r.ActualQty,
		})
	}
	return items
}

// Synthesize derives and persists the rework work order for a failed QC
// session. The insert is a single atomic store write; on failure no partial
// work order exists.
func (s *WorkOrderService) Synthesize(ctx context.Context, ticketNo, qcSessionID string, rows []models.QCFailedRow) (models.WorkOrder, error) {
	w := models.WorkOrder{
		ID:          uuid.NewString(),
		TicketNo:    ticketNo,
		QCSessionID: qcSessionID,
		Type:        models.WorkOrderTypeRework,
		Priority:    DerivePriority(len(rows)),
		Title:       fmt.Sprintf("Rework for ticket %s", ticketNo),
		Description: fmt.Sprintf("%d item(s) failed QC on ticket %s and require rework", len(rows), ticketNo),
		FailedItems: BuildFailedItems(rows),
		Status:      models.WorkOrderStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.Store.InsertWorkOrder(ctx, w); err != nil {
		return models.WorkOrder{}, err
	}
	s.Logger.Info().
		Str("work_order_id", w.ID).
		Str("ticket_no", w.TicketNo).
		Str("priority", w.Priority).
		Int("failed_items", len(w.FailedItems)).
		Msg("rework work order created")
	return w, nil
}
