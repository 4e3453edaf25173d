// internal/domain/vaccination/repository.go
package vaccination

import (
	"context"

	"immunization_bot/internal/domain/immunization"
)

// Repository defines operations for vaccination schedules and their notifications.
type Repository interface {
	// CreateSchedules inserts every schedule plus one pending notification per schedule
	// in a single transaction, filling in the generated IDs.
	CreateSchedules(ctx context.Context, schedules []*Schedule) error
	ListSchedulesByChild(ctx context.Context, childID int64) ([]*Schedule, error) // ordered by vaccination date
	CountSchedulesByChild(ctx context.Context, childID int64) (int, error)
	DeleteSchedulesByChild(ctx context.Context, childID int64) (int64, error) // notifications cascade
	GetScheduleByID(ctx context.Context, id int64) (*Schedule, error)
	MarkScheduleCompleted(ctx context.Context, id int64, on immunization.Date) error

	// ListPendingNotificationsDue returns pending notifications dated on or before the given day.
	ListPendingNotificationsDue(ctx context.Context, onOrBefore immunization.Date) ([]*Notification, error)
	UpdateNotificationStatuses(ctx context.Context, ids []int64, status Status) (int64, error)
	GetNotificationByID(ctx context.Context, id int64) (*Notification, error)
	// ListNotificationsByParent returns the parent's notifications in the given states,
	// earliest notification date first.
	ListNotificationsByParent(ctx context.Context, parentTelegramID int64, statuses []Status) ([]*ParentNotification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
}
