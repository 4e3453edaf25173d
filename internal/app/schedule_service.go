// internal/app/schedule_service.go
package app

import (
	"context"
	"fmt"
	"math"

	"immunization_bot/internal/domain/child"
	"immunization_bot/internal/domain/immunization"
	"immunization_bot/internal/domain/vaccination"
	idb "immunization_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

var ErrSchedulesAlreadyExist = fmt.Errorf("vaccination schedules already exist for child")

// Stats summarises a child's persisted schedule.
type Stats struct {
	Total          int
	Completed      int
	Upcoming       int
	Overdue        int
	CompletionRate float64 // percent, one decimal
}

type ScheduleService struct {
	childRepo   child.Repository
	vacRepo     vaccination.Repository
	calculators CalculatorProvider
	now         Clock
	log         *logrus.Entry
}

func NewScheduleService(
	cr child.Repository,
	vr vaccination.Repository,
	calculators CalculatorProvider,
	now Clock,
	log *logrus.Entry,
) *ScheduleService {
	return &ScheduleService{
		childRepo:   cr,
		vacRepo:     vr,
		calculators: calculators,
		now:         now.orDefault(),
		log:         log,
	}
}

// CreateVaccinationSchedules persists the mandatory-category schedule of a child together with
// one pending notification per dose. It returns the number of schedules created.
func (s *ScheduleService) CreateVaccinationSchedules(ctx context.Context, childID int64) (int, error) {
	c, err := s.childRepo.GetByID(ctx, childID)
	if err != nil {
		return 0, fmt.Errorf("failed to get child %d: %w", childID, err)
	}

	existing, err := s.vacRepo.CountSchedulesByChild(ctx, childID)
	if err != nil {
		return 0, fmt.Errorf("failed to check existing schedules: %w", err)
	}
	if existing > 0 {
		return 0, ErrSchedulesAlreadyExist
	}

	return s.persistSchedule(ctx, c)
}

// RegenerateVaccinationSchedules drops the child's schedules, completion marks included,
// and recomputes them from the current reference table.
func (s *ScheduleService) RegenerateVaccinationSchedules(ctx context.Context, childID int64) (int, error) {
	c, err := s.childRepo.GetByID(ctx, childID)
	if err != nil {
		return 0, fmt.Errorf("failed to get child %d: %w", childID, err)
	}

	deleted, err := s.vacRepo.DeleteSchedulesByChild(ctx, childID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete schedules: %w", err)
	}
	s.log.WithFields(logrus.Fields{"child_id": childID, "deleted": deleted}).Info("Old schedules removed")

	return s.persistSchedule(ctx, c)
}

func (s *ScheduleService) persistSchedule(ctx context.Context, c *child.Child) (int, error) {
	entries, err := s.calculators.Current().ChildSchedule(c.BirthDate, c.Gender, false)
	if err != nil {
		return 0, fmt.Errorf("failed to compute schedule for child %d: %w", c.ID, err)
	}

	records := make([]*vaccination.Schedule, 0, len(entries))
	for _, e := range entries {
		records = append(records, vaccination.NewSchedule(c.ID, e))
	}
	if err := s.vacRepo.CreateSchedules(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to store schedules for child %d: %w", c.ID, err)
	}

	s.log.WithFields(logrus.Fields{"child_id": c.ID, "schedules": len(records)}).Info("Vaccination schedules created")
	return len(records), nil
}

// ChildSchedule computes the full schedule of a stored child.
func (s *ScheduleService) ChildSchedule(c *child.Child, includeOptional bool) ([]immunization.ScheduleEntry, error) {
	return s.calculators.Current().ChildSchedule(c.BirthDate, c.Gender, includeOptional)
}

// Upcoming returns the incomplete doses of a stored child dated within daysAhead days,
// read from the persisted schedule. A child without stored schedules falls back to the
// computed mandatory-category view.
func (s *ScheduleService) Upcoming(ctx context.Context, c *child.Child, daysAhead int) ([]immunization.ScheduleEntry, error) {
	if daysAhead < 0 {
		return nil, &immunization.ValidationError{Field: "days_ahead", Value: daysAhead, Reason: "must not be negative"}
	}
	schedules, err := s.ListSchedules(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return s.calculators.Current().UpcomingVaccinations(c.BirthDate, c.Gender, daysAhead)
	}

	now := s.now()
	entries := make([]immunization.ScheduleEntry, 0, len(schedules))
	for _, sc := range schedules {
		if sc.IsUpcoming(now, daysAhead) {
			entries = append(entries, sc.Entry(now))
		}
	}
	return entries, nil
}

// Overdue returns the incomplete mandatory doses of a stored child whose date has passed,
// read from the persisted schedule. A child without stored schedules falls back to the
// computed view.
func (s *ScheduleService) Overdue(ctx context.Context, c *child.Child) ([]immunization.ScheduleEntry, error) {
	schedules, err := s.ListSchedules(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return s.calculators.Current().OverdueVaccinations(c.BirthDate, c.Gender)
	}

	now := s.now()
	entries := make([]immunization.ScheduleEntry, 0, len(schedules))
	for _, sc := range schedules {
		if sc.IsOverdue(now) {
			entries = append(entries, sc.Entry(now))
		}
	}
	return entries, nil
}

// ListSchedules returns the persisted schedules of a child, earliest first.
func (s *ScheduleService) ListSchedules(ctx context.Context, childID int64) ([]*vaccination.Schedule, error) {
	schedules, err := s.vacRepo.ListSchedulesByChild(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules for child %d: %w", childID, err)
	}
	return schedules, nil
}

// Stats counts the persisted schedules of a child. Upcoming covers incomplete doses within
// daysAhead days; overdue covers incomplete mandatory doses whose date has passed.
func (s *ScheduleService) Stats(ctx context.Context, childID int64, daysAhead int) (*Stats, error) {
	if daysAhead < 0 {
		return nil, &immunization.ValidationError{Field: "days_ahead", Value: daysAhead, Reason: "must not be negative"}
	}
	schedules, err := s.ListSchedules(ctx, childID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	st := &Stats{Total: len(schedules)}
	for _, sc := range schedules {
		switch {
		case sc.Completed:
			st.Completed++
		case sc.IsOverdue(now):
			st.Overdue++
		case sc.IsUpcoming(now, daysAhead):
			st.Upcoming++
		}
	}
	if st.Total > 0 {
		st.CompletionRate = math.Round(float64(st.Completed)*1000/float64(st.Total)) / 10
	}
	return st, nil
}

// NextPending returns the earliest incomplete schedule, or nil when every dose is done.
func (s *ScheduleService) NextPending(ctx context.Context, childID int64) (*vaccination.Schedule, error) {
	schedules, err := s.ListSchedules(ctx, childID)
	if err != nil {
		return nil, err
	}
	for _, sc := range schedules {
		if !sc.Completed {
			return sc, nil
		}
	}
	return nil, nil
}

// MarkCompleted records that the dose was given on the given day. A zero day means today.
// Marking an already completed schedule is a no-op.
func (s *ScheduleService) MarkCompleted(ctx context.Context, parentTelegramID, scheduleID int64, on immunization.Date) (*vaccination.Schedule, error) {
	sc, err := s.vacRepo.GetScheduleByID(ctx, scheduleID)
	if err != nil {
		if err == idb.ErrScheduleNotFound {
			return nil, idb.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to get schedule %d: %w", scheduleID, err)
	}

	c, err := s.childRepo.GetByID(ctx, sc.ChildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child %d: %w", sc.ChildID, err)
	}
	if c.ParentTelegramID != parentTelegramID {
		return nil, ErrNotChildOwner
	}

	if sc.Completed {
		s.log.WithField("schedule_id", scheduleID).Info("Schedule already completed. No action needed.")
		return sc, nil
	}

	if on.IsZero() {
		on = immunization.DateOf(s.now())
	}
	if err := s.vacRepo.MarkScheduleCompleted(ctx, scheduleID, on); err != nil {
		return nil, fmt.Errorf("failed to mark schedule %d completed: %w", scheduleID, err)
	}
	sc.Completed = true
	sc.CompletedDate = &on

	s.log.WithFields(logrus.Fields{"schedule_id": scheduleID, "child_id": c.ID, "completed_on": on.String()}).Info("Schedule marked completed")
	return sc, nil
}
