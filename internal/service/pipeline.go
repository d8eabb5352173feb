package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mesflow/backend/internal/models"
)

// QCFailureEvent is the pipeline's entry payload, as emitted by the QC
// workflow when a session fails.
type QCFailureEvent struct {
	TicketNo   string
	SessionID  string
	StationID  *string
	Station    string
	QCTaskRef  *string
	FailedRows []models.QCFailedRow
	CreatedBy  *string
}

// ResolutionResult reports what the pipeline persisted. WorkOrder is nil
// when synthesis failed after the alert was already written.
type ResolutionResult struct {
	Alert     models.DefectAlert `json:"alert"`
	WorkOrder *models.WorkOrder  `json:"work_order,omitempty"`
	Notified  int                `json:"notified"`
}

// Pipeline resolves one QC failure end to end: defect alert, rework work
// order, responder notifications.
type Pipeline struct {
	Alerts     *AlertService
	WorkOrders *WorkOrderService
	Notifier   *Notifier
	Logger     zerolog.Logger
}

// ResolveQCFailure runs reportFailure, synthesize, and the QC-failure
// fan-out in order. The alert write is the source of truth: its failure
// aborts the call. The work order and notifications are best-effort
// derivatives; their failures leave the alert in place and are logged, not
// escalated.
func (p *Pipeline) ResolveQCFailure(ctx context.Context, ev QCFailureEvent) (ResolutionResult, error) {
	defectQty := 0
	for _, r := range ev.FailedRows {
		defectQty += r.ActualQty
	}

	var stationName *string
	if ev.Station != "" {
		stationName = &ev.Station
	}

	alert, err := p.Alerts.ReportFailure(ctx, FailureReport{
		TicketNo:    ev.TicketNo,
		SessionID:   ev.SessionID,
		StationID:   ev.StationID,
		StationName: stationName,
		QCTaskRef:   ev.QCTaskRef,
		DefectQty:   defectQty,
		CreatedBy:   ev.CreatedBy,
	})
	if err != nil {
		return ResolutionResult{}, err
	}

	result := ResolutionResult{Alert: alert}

	workOrder, err := p.WorkOrders.Synthesize(ctx, alert.TicketNo, alert.QCSessionID, ev.FailedRows)
	if err != nil {
		p.Logger.Error().Err(err).
			Str("ticket_no", alert.TicketNo).
			Str("qc_session_id", alert.QCSessionID).
			Msg("work order synthesis failed, defect alert kept")
	} else {
		result.WorkOrder = &workOrder
	}

	result.Notified = p.Notifier.NotifyQCFailure(ctx, alert.TicketNo, alert.QCSessionID)
	return result, nil
}
