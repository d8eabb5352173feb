package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mesflow/backend/internal/models"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrConstraint  = errors.New("constraint violation")
	ErrPersistence = errors.New("persistence failure")
)

// mapError folds pgx failures into the store's error taxonomy so callers
// can branch with errors.Is without importing pgx.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%w: %s", ErrConstraint, pgErr.Message)
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

const defectAlertColumns = `id, ticket_no, station_id, station_name, qc_session_id, qc_task_ref,
	defect_qty, status, rpd_ref, nc_note, created_by, updated_by, created_at, updated_at`

func scanDefectAlert(row pgx.Row) (models.DefectAlert, error) {
	var a models.DefectAlert
	err := row.Scan(
		&a.ID, &a.TicketNo, &a.StationID, &a.StationName, &a.QCSessionID, &a.QCTaskRef,
		&a.DefectQty, &a.Status, &a.RPDRef, &a.NCNote, &a.CreatedBy, &a.UpdatedBy,
		&a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// UpsertDefectAlert inserts the alert or, if a row for the same QC session
// already exists, overwrites its report fields in place. The conflict is
// resolved atomically by the database, so concurrent duplicate reports
// converge to a single row. Status is never touched on the update path.
func (s *Store) UpsertDefectAlert(ctx context.Context, a models.DefectAlert) (models.DefectAlert, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO defect_alerts (id, ticket_no, station_id, station_name, qc_session_id, qc_task_ref, defect_qty, status, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
		ON CONFLICT (qc_session_id) DO UPDATE SET
			ticket_no = EXCLUDED.ticket_no,
			station_id = EXCLUDED.station_id,
			station_name = EXCLUDED.station_name,
			qc_task_ref = EXCLUDED.qc_task_ref,
			defect_qty = EXCLUDED.defect_qty,
			updated_by = EXCLUDED.created_by,
			updated_at = NOW()
		RETURNING `+defectAlertColumns,
		a.ID, a.TicketNo, a.StationID, a.StationName, a.QCSessionID, a.QCTaskRef,
		a.DefectQty, models.AlertStatusOpen, a.CreatedBy,
	)
	out, err := scanDefectAlert(row)
	if err != nil {
		return models.DefectAlert{}, mapError(err)
	}
	return out, nil
}

func (s *Store) GetDefectAlert(ctx context.Context, id string) (models.DefectAlert, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+defectAlertColumns+` FROM defect_alerts WHERE id = $1`, id)
	a, err := scanDefectAlert(row)
	if err != nil {
		return models.DefectAlert{}, mapError(err)
	}
	return a, nil
}

func (s *Store) ResolveDefectAlert(ctx context.Context, id string, rpdRef, ncNote, resolvedBy *string) (models.DefectAlert, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE defect_alerts SET
			status = $2,
			rpd_ref = COALESCE($3, rpd_ref),
			nc_note = COALESCE($4, nc_note),
			updated_by = COALESCE($5, updated_by),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+defectAlertColumns,
		id, models.AlertStatusResolved, rpdRef, ncNote, resolvedBy,
	)
	a, err := scanDefectAlert(row)
	if err != nil {
		return models.DefectAlert{}, mapError(err)
	}
	return a, nil
}

// ListDefectAlerts filters by exact status and an optional case-insensitive
// substring over ticket_no and station_name, newest first. The total count
// ignores limit/offset so pages beyond the range still report it correctly.
func (s *Store) ListDefectAlerts(ctx context.Context, status, query string, limit, offset int) ([]models.DefectAlert, int, error) {
	var args []any
	var wheres []string
	if status != "" {
		args = append(args, status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if query != "" {
		args = append(args, "%"+query+"%")
		wheres = append(wheres, fmt.Sprintf("(ticket_no ILIKE $%d OR station_name ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(wheres) > 0 {
		where = " WHERE " + strings.Join(wheres, " AND ")
	}

	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM defect_alerts`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	pageQuery := `SELECT ` + defectAlertColumns + ` FROM defect_alerts` + where +
		" ORDER BY created_at DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var out []models.DefectAlert
	for rows.Next() {
		a, err := scanDefectAlert(rows)
		if err != nil {
			return nil, 0, mapError(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err)
	}
	return out, total, nil
}

func (s *Store) InsertWorkOrder(ctx context.Context, w models.WorkOrder) error {
	items, err := json.Marshal(w.FailedItems)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO work_orders (id, ticket_no, qc_session_id, type, priority, title, description, failed_items, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		w.ID, w.TicketNo, w.QCSessionID, w.Type, w.Priority, w.Title, w.Description, items, w.Status, w.CreatedAt,
	)
	return mapError(err)
}

const workOrderColumns = `id, ticket_no, qc_session_id, type, priority, title, description, failed_items, status, created_at`

func scanWorkOrder(row pgx.Row) (models.WorkOrder, error) {
	var w models.WorkOrder
	var items []byte
	if err := row.Scan(&w.ID, &w.TicketNo, &w.QCSessionID, &w.Type, &w.Priority, &w.Title, &w.Description, &items, &w.Status, &w.CreatedAt); err != nil {
		return models.WorkOrder{}, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &w.FailedItems); err != nil {
			return models.WorkOrder{}, err
		}
	}
	return w, nil
}

func (s *Store) GetWorkOrder(ctx context.Context, id string) (models.WorkOrder, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+workOrderColumns+` FROM work_orders WHERE id = $1`, id)
	w, err := scanWorkOrder(row)
	if err != nil {
		return models.WorkOrder{}, mapError(err)
	}
	return w, nil
}

func (s *Store) ListWorkOrders(ctx context.Context, ticketNo string, limit, offset int) ([]models.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders`
	var args []any
	if ticketNo != "" {
		args = append(args, ticketNo)
		query += " WHERE ticket_no = $1"
	}
	query += " ORDER BY created_at DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []models.WorkOrder
	for rows.Next() {
		w, err := scanWorkOrder(rows)
		if err != nil {
			return nil, mapError(err)
		}
		out = append(out, w)
	}
	return out, mapError(rows.Err())
}

func (s *Store) InsertNotification(ctx context.Context, n models.Notification) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, ticket_no, qc_session_id, read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.TicketNo, n.QCSessionID, n.Read, n.CreatedAt,
	)
	return mapError(err)
}

// MarkNotificationRead is idempotent: re-marking an already-read row is a
// plain no-op update.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) (models.Notification, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE notifications SET read = TRUE WHERE id = $1
		RETURNING id, user_id, type, title, message, ticket_no, qc_session_id, read, created_at`, id)
	var n models.Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.TicketNo, &n.QCSessionID, &n.Read, &n.CreatedAt); err != nil {
		return models.Notification{}, mapError(err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT id, user_id, type, title, message, ticket_no, qc_session_id, read, created_at
		FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += " AND read = FALSE"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.TicketNo, &n.QCSessionID, &n.Read, &n.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		out = append(out, n)
	}
	return out, mapError(rows.Err())
}

func (s *Store) ListUsersByRoles(ctx context.Context, roles []string) ([]models.User, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, role FROM users WHERE role = ANY($1) ORDER BY id ASC`, roles)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Role); err != nil {
			return nil, mapError(err)
		}
		out = append(out, u)
	}
	return out, mapError(rows.Err())
}
