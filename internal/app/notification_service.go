// internal/app/notification_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"immunization_bot/internal/domain/child"
	"immunization_bot/internal/domain/immunization"
	"immunization_bot/internal/domain/vaccination"
	idb "immunization_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

var ErrNotificationNotDue = fmt.Errorf("notification has not reached its date yet")

// DueChecker is the scheduled part of the notification service.
type DueChecker interface {
	// RunDueCheck is the scheduled entry point: it resolves today from the service clock.
	RunDueCheck(ctx context.Context) error
}

// NotificationService defines the operations for managing notification records.
// Delivery belongs to an external dispatcher, which picks up records in the due state.
type NotificationService interface {
	DueChecker
	// MarkDueNotifications promotes pending notifications dated on or before today to due
	// and returns how many were promoted.
	MarkDueNotifications(ctx context.Context, today immunization.Date) (int64, error)
	// ListInbox returns the parent's due or sent notifications that are not read yet.
	ListInbox(ctx context.Context, parentTelegramID int64) ([]*vaccination.ParentNotification, error)
	// MarkRead acknowledges one of the parent's notifications.
	MarkRead(ctx context.Context, parentTelegramID, notificationID int64) (*vaccination.Notification, error)
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	childRepo child.Repository
	vacRepo   vaccination.Repository
	now       Clock
	log       *logrus.Entry
}

func NewNotificationServiceImpl(cr child.Repository, vr vaccination.Repository, now Clock, log *logrus.Entry) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		childRepo: cr,
		vacRepo:   vr,
		now:       now.orDefault(),
		log:       log,
	}
}

func (s *NotificationServiceImpl) MarkDueNotifications(ctx context.Context, today immunization.Date) (int64, error) {
	log := s.log.WithField("today", today.String())

	pending, err := s.vacRepo.ListPendingNotificationsDue(ctx, today)
	if err != nil {
		log.WithError(err).Error("Failed to list pending notifications")
		return 0, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	if len(pending) == 0 {
		log.Debug("No pending notifications reached their date")
		return 0, nil
	}

	ids := make([]int64, 0, len(pending))
	for _, n := range pending {
		ids = append(ids, n.ID)
	}
	updated, err := s.vacRepo.UpdateNotificationStatuses(ctx, ids, vaccination.StatusDue)
	if err != nil {
		log.WithError(err).Error("Failed to mark notifications due")
		return 0, fmt.Errorf("failed to mark %d notifications due: %w", len(ids), err)
	}

	log.WithFields(logrus.Fields{"found": len(ids), "updated": updated}).Info("Notifications marked due")
	return updated, nil
}

func (s *NotificationServiceImpl) RunDueCheck(ctx context.Context) error {
	start := s.now()
	_, err := s.MarkDueNotifications(ctx, immunization.DateOf(start))
	s.log.WithField("duration", time.Since(start).String()).Debug("Due check finished")
	return err
}

func (s *NotificationServiceImpl) ListInbox(ctx context.Context, parentTelegramID int64) ([]*vaccination.ParentNotification, error) {
	list, err := s.vacRepo.ListNotificationsByParent(ctx, parentTelegramID, []vaccination.Status{vaccination.StatusDue, vaccination.StatusSent})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for parent %d: %w", parentTelegramID, err)
	}
	return list, nil
}

// MarkRead sets a due or sent notification to read. Reading an already read notification
// is a no-op; a pending one is rejected with ErrNotificationNotDue.
func (s *NotificationServiceImpl) MarkRead(ctx context.Context, parentTelegramID, notificationID int64) (*vaccination.Notification, error) {
	log := s.log.WithField("notification_id", notificationID)

	n, err := s.vacRepo.GetNotificationByID(ctx, notificationID)
	if err != nil {
		if err == idb.ErrNotificationNotFound {
			return nil, idb.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification %d: %w", notificationID, err)
	}

	sc, err := s.vacRepo.GetScheduleByID(ctx, n.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule %d: %w", n.ScheduleID, err)
	}
	c, err := s.childRepo.GetByID(ctx, sc.ChildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child %d: %w", sc.ChildID, err)
	}
	if c.ParentTelegramID != parentTelegramID {
		return nil, ErrNotChildOwner
	}

	switch {
	case n.Status == vaccination.StatusRead:
		log.Info("Notification already read. No action needed.")
		return n, nil
	case !n.Status.Visible():
		return nil, ErrNotificationNotDue
	}

	if err := s.vacRepo.MarkNotificationRead(ctx, notificationID); err != nil {
		return nil, fmt.Errorf("failed to mark notification %d read: %w", notificationID, err)
	}
	n.Status = vaccination.StatusRead
	n.ReadAt = sql.NullTime{Time: s.now(), Valid: true}

	log.WithField("child_id", c.ID).Info("Notification marked read")
	return n, nil
}
