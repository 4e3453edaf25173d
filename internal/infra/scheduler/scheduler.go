package scheduler

import (
	"context"
	"fmt"
	"time"

	"immunization_bot/internal/app" // For DueChecker interface

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const dueCheckTimeout = 5 * time.Minute

type NotificationScheduler struct {
	cronEngine       *cron.Cron
	notifService     app.DueChecker
	log              *logrus.Entry
	cronSpecDueCheck string
}

func NewNotificationScheduler(
	notifService app.DueChecker,
	log *logrus.Entry,
	loc *time.Location, // cron fields are read in this zone
	cronSpecDueCheck string, // e.g., "0 9 * * *" (9 AM daily)
) *NotificationScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &NotificationScheduler{
		cronEngine:       cron.New(cron.WithLocation(loc)),
		notifService:     notifService,
		log:              log,
		cronSpecDueCheck: cronSpecDueCheck,
	}
}

// Start registers the jobs and starts the cron engine. An invalid cron spec leaves the engine stopped.
func (s *NotificationScheduler) Start() error {
	s.log.Info("Starting notification scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecDueCheck, s.runDueCheck)
	if err != nil {
		return fmt.Errorf("could not add due-check cron job %q: %w", s.cronSpecDueCheck, err)
	}

	s.cronEngine.Start()
	s.log.WithField("spec", s.cronSpecDueCheck).Info("Notification scheduler started with jobs.")
	return nil
}

func (s *NotificationScheduler) runDueCheck() {
	s.log.Info("Cron job triggered for due-notification check.")
	ctx, cancel := context.WithTimeout(context.Background(), dueCheckTimeout)
	defer cancel()
	if err := s.notifService.RunDueCheck(ctx); err != nil {
		s.log.WithError(err).Error("Error during due-notification check")
	}
}

// Entries reports the scheduled jobs' next run times.
func (s *NotificationScheduler) Entries() []time.Time {
	entries := s.cronEngine.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Next)
	}
	return out
}

func (s *NotificationScheduler) Stop() {
	s.log.Info("Stopping notification scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.log.Info("Notification scheduler gracefully stopped.")
}
