// internal/domain/vaccination/notification.go
package vaccination

import (
	"database/sql"
	"time"

	"immunization_bot/internal/domain/immunization"
)

// Status is the lifecycle state of a vaccination notification record.
type Status string

const (
	StatusPending Status = "pending" // created together with its schedule
	StatusDue     Status = "due"     // notification date reached, ready for an external dispatcher
	StatusSent    Status = "sent"    // set by the dispatcher, never by this service
	StatusRead    Status = "read"    // acknowledged by the parent
)

// Visible reports whether the parent sees the notification in their inbox.
func (s Status) Visible() bool {
	return s == StatusDue || s == StatusSent
}

// Notification tracks when the parent should be reminded about a schedule.
// Corresponds to the 'vaccination_notifications' table.
type Notification struct {
	ID               int64
	ScheduleID       int64 // Foreign Key to vaccination_schedules.id
	NotificationDate immunization.Date
	Status           Status
	DueAt            sql.NullTime // when the due sweep promoted it
	ReadAt           sql.NullTime
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ParentNotification is a notification joined with the schedule and child it reminds about.
type ParentNotification struct {
	Notification
	ChildID         int64
	ChildName       string
	VaccineName     string
	DoseNumber      int
	VaccinationDate immunization.Date
}
