package models

import "time"

const (
	AlertStatusOpen     = "open"
	AlertStatusResolved = "resolved"
)

const (
	WorkOrderTypeRework    = "rework"
	WorkOrderStatusPending = "pending"
)

const (
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const (
	NotificationQCFailed       = "qc_failed"
	NotificationReworkAssigned = "rework_assigned"
	NotificationNewTicket      = "new_ticket"
	NotificationNewProject     = "new_project"
)

const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
)

// DefectAlert is the deduplicated record of a failed QC session.
// Exactly one row exists per QCSessionID.
type DefectAlert struct {
	ID          string    `json:"id"`
	TicketNo    string    `json:"ticket_no"`
	StationID   *string   `json:"station_id,omitempty"`
	StationName *string   `json:"station_name,omitempty"`
	QCSessionID string    `json:"qc_session_id"`
	QCTaskRef   *string   `json:"qc_task_ref,omitempty"`
	DefectQty   int       `json:"defect_qty"`
	Status      string    `json:"status"`
	RPDRef      *string   `json:"rpd_ref,omitempty"`
	NCNote      *string   `json:"nc_note,omitempty"`
	CreatedBy   *string   `json:"created_by,omitempty"`
	UpdatedBy   *string   `json:"updated_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// QCFailedRow is one failed item as reported by the QC station.
type QCFailedRow struct {
	ProductionNo string `json:"production_no"`
	Project      string `json:"project"`
	Note         string `json:"note"`
	ActualQty    int    `json:"actual_qty"`
}

type FailedItem struct {
	Item     string `json:"item"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
	Qty      int    `json:"qty"`
}

type WorkOrder struct {
	ID          string       `json:"id"`
	TicketNo    string       `json:"ticket_no"`
	QCSessionID string       `json:"qc_session_id"`
	Type        string       `json:"type"`
	Priority    string       `json:"priority"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	FailedItems []FailedItem `json:"failed_items"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

type Notification struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	TicketNo    *string   `json:"ticket_no,omitempty"`
	QCSessionID *string   `json:"qc_session_id,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// ProductionOrder is the ERP's view of an order. Not persisted locally;
// served from the ERP gateway through the result cache.
type ProductionOrder struct {
	OrderNo   string     `json:"order_no"`
	Product   string     `json:"product"`
	Project   string     `json:"project"`
	PlanQty   int        `json:"plan_qty"`
	DoneQty   int        `json:"done_qty"`
	Status    string     `json:"status"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
