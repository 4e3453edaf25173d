// internal/infra/database/postgres_vaccination_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"immunization_bot/internal/domain/immunization"
	"immunization_bot/internal/domain/vaccination"

	"github.com/lib/pq" // For pq.Array and driver registration
)

// Custom errors specific to vaccination repository
var ErrScheduleNotFound = fmt.Errorf("vaccination schedule not found")
var ErrDuplicateSchedule = fmt.Errorf("duplicate vaccination schedule (child_id, vaccine_id, dose_number)")
var ErrNotificationNotFound = fmt.Errorf("vaccination notification not found")

type PostgresVaccinationRepository struct {
	db *sql.DB
}

func NewPostgresVaccinationRepository(db *sql.DB) *PostgresVaccinationRepository {
	return &PostgresVaccinationRepository{db: db}
}

const scheduleColumns = `id, child_id, vaccine_id, vaccine_name, disease, dose_number, age_description,
               vaccination_date, notification_date, is_mandatory, is_annual, notes, age_range_end,
               is_completed, completed_date, created_at, updated_at`

const notificationColumns = `n.id, n.schedule_id, n.notification_date, n.status, n.due_at, n.read_at, n.created_at, n.updated_at`

// --- Schedule Methods ---

func (r *PostgresVaccinationRepository) CreateSchedules(ctx context.Context, schedules []*vaccination.Schedule) error {
	if len(schedules) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for schedule create: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	scheduleStmt, err := txn.PrepareContext(ctx, `INSERT INTO vaccination_schedules
               (child_id, vaccine_id, vaccine_name, disease, dose_number, age_description,
                vaccination_date, notification_date, is_mandatory, is_annual, notes, age_range_end)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
               RETURNING id, created_at, updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare schedule insert: %w", err)
	}
	defer scheduleStmt.Close()

	notifStmt, err := txn.PrepareContext(ctx, `INSERT INTO vaccination_notifications (schedule_id, notification_date, status)
               VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("failed to prepare notification insert: %w", err)
	}
	defer notifStmt.Close()

	for _, s := range schedules {
		err := scheduleStmt.QueryRowContext(ctx,
			s.ChildID, s.VaccineID, s.VaccineName, s.Disease, s.DoseNumber, s.AgeDescription,
			s.VaccinationDate, s.NotificationDate, s.Mandatory, s.Annual, s.Notes, s.AgeRangeEnd,
		).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			if isPQError(err, pqErrUniqueViolation) {
				return fmt.Errorf("error creating schedule (C:%d, V:%d, D:%d): %w", s.ChildID, s.VaccineID, s.DoseNumber, ErrDuplicateSchedule)
			}
			return fmt.Errorf("error creating schedule (C:%d, V:%d, D:%d): %w", s.ChildID, s.VaccineID, s.DoseNumber, err)
		}

		if _, err := notifStmt.ExecContext(ctx, s.ID, s.NotificationDate, vaccination.StatusPending); err != nil {
			return fmt.Errorf("error creating notification for schedule %d: %w", s.ID, err)
		}
	}

	return txn.Commit()
}

// Helper to scan multiple rows
func scanSchedules(rows *sql.Rows) ([]*vaccination.Schedule, error) {
	schedules := make([]*vaccination.Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning schedule row: %w", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule rows: %w", err)
	}
	return schedules, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*vaccination.Schedule, error) {
	s := &vaccination.Schedule{}
	err := row.Scan(
		&s.ID, &s.ChildID, &s.VaccineID, &s.VaccineName, &s.Disease, &s.DoseNumber, &s.AgeDescription,
		&s.VaccinationDate, &s.NotificationDate, &s.Mandatory, &s.Annual, &s.Notes, &s.AgeRangeEnd,
		&s.Completed, &s.CompletedDate, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresVaccinationRepository) ListSchedulesByChild(ctx context.Context, childID int64) ([]*vaccination.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
               FROM vaccination_schedules
               WHERE child_id = $1 ORDER BY vaccination_date, id` // id keeps reference-table order on ties
	rows, err := r.db.QueryContext(ctx, query, childID)
	if err != nil {
		return nil, fmt.Errorf("error querying schedules by child: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func (r *PostgresVaccinationRepository) CountSchedulesByChild(ctx context.Context, childID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vaccination_schedules WHERE child_id = $1`, childID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting schedules by child: %w", err)
	}
	return count, nil
}

func (r *PostgresVaccinationRepository) DeleteSchedulesByChild(ctx context.Context, childID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vaccination_schedules WHERE child_id = $1`, childID)
	if err != nil {
		return 0, fmt.Errorf("error deleting schedules by child: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading deleted schedule count: %w", err)
	}
	return n, nil
}

func (r *PostgresVaccinationRepository) GetScheduleByID(ctx context.Context, id int64) (*vaccination.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM vaccination_schedules WHERE id = $1`
	s, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("error getting schedule by ID: %w", err)
	}
	return s, nil
}

func (r *PostgresVaccinationRepository) MarkScheduleCompleted(ctx context.Context, id int64, on immunization.Date) error {
	query := `UPDATE vaccination_schedules
               SET is_completed = TRUE, completed_date = $1, updated_at = NOW()
               WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, on, id)
	if err != nil {
		return fmt.Errorf("error marking schedule completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading updated schedule count: %w", err)
	}
	if n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// --- Notification Methods ---

func (r *PostgresVaccinationRepository) ListPendingNotificationsDue(ctx context.Context, onOrBefore immunization.Date) ([]*vaccination.Notification, error) {
	query := `SELECT ` + notificationColumns + `
               FROM vaccination_notifications n
               JOIN vaccination_schedules s ON s.id = n.schedule_id
               WHERE n.status = $1 AND n.notification_date <= $2 AND s.is_completed = FALSE
               ORDER BY n.notification_date ASC, n.id ASC` // Process older ones first
	rows, err := r.db.QueryContext(ctx, query, vaccination.StatusPending, onOrBefore)
	if err != nil {
		return nil, fmt.Errorf("error querying due notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*vaccination.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notifications, nil
}

func (r *PostgresVaccinationRepository) UpdateNotificationStatuses(ctx context.Context, ids []int64, status vaccination.Status) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `UPDATE vaccination_notifications
               SET status = $1,
                   due_at = CASE WHEN $1 = 'due' THEN NOW() ELSE due_at END,
                   updated_at = NOW()
               WHERE id = ANY($2::bigint[])`
	res, err := r.db.ExecContext(ctx, query, status, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("error updating notification statuses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading updated notification count: %w", err)
	}
	return n, nil
}

func scanNotification(row rowScanner, extra ...any) (*vaccination.Notification, error) {
	n := &vaccination.Notification{}
	dest := append([]any{&n.ID, &n.ScheduleID, &n.NotificationDate, &n.Status, &n.DueAt, &n.ReadAt, &n.CreatedAt, &n.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return n, nil
}

func (r *PostgresVaccinationRepository) GetNotificationByID(ctx context.Context, id int64) (*vaccination.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM vaccination_notifications n WHERE n.id = $1`
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("error getting notification by ID: %w", err)
	}
	return n, nil
}

func (r *PostgresVaccinationRepository) ListNotificationsByParent(ctx context.Context, parentTelegramID int64, statuses []vaccination.Status) ([]*vaccination.ParentNotification, error) {
	if len(statuses) == 0 {
		return []*vaccination.ParentNotification{}, nil
	}
	states := make([]string, len(statuses))
	for i, st := range statuses {
		states[i] = string(st)
	}

	query := `SELECT ` + notificationColumns + `, c.id, c.name, s.vaccine_name, s.dose_number, s.vaccination_date
               FROM vaccination_notifications n
               JOIN vaccination_schedules s ON s.id = n.schedule_id
               JOIN children c ON c.id = s.child_id
               WHERE c.parent_telegram_id = $1 AND n.status = ANY($2::text[])
               ORDER BY n.notification_date ASC, n.id ASC`
	rows, err := r.db.QueryContext(ctx, query, parentTelegramID, pq.Array(states))
	if err != nil {
		return nil, fmt.Errorf("error querying notifications by parent: %w", err)
	}
	defer rows.Close()

	out := make([]*vaccination.ParentNotification, 0)
	for rows.Next() {
		pn := &vaccination.ParentNotification{}
		n, err := scanNotification(rows, &pn.ChildID, &pn.ChildName, &pn.VaccineName, &pn.DoseNumber, &pn.VaccinationDate)
		if err != nil {
			return nil, fmt.Errorf("error scanning parent notification row: %w", err)
		}
		pn.Notification = *n
		out = append(out, pn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parent notification rows: %w", err)
	}
	return out, nil
}

func (r *PostgresVaccinationRepository) MarkNotificationRead(ctx context.Context, id int64) error {
	query := `UPDATE vaccination_notifications
               SET status = $1, read_at = NOW(), updated_at = NOW()
               WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, vaccination.StatusRead, id)
	if err != nil {
		return fmt.Errorf("error marking notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading updated notification count: %w", err)
	}
	if n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
