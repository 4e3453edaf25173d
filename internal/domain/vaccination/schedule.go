// internal/domain/vaccination/schedule.go
package vaccination

import (
	"time"

	"immunization_bot/internal/domain/immunization"
)

// Schedule is a persisted schedule entry for one child.
// Corresponds to the 'vaccination_schedules' table. The overdue flag is never stored;
// it is recomputed from VaccinationDate whenever an entry is rebuilt.
type Schedule struct {
	ID               int64
	ChildID          int64 // Foreign Key to children.id
	VaccineID        int
	VaccineName      string
	Disease          string
	DoseNumber       int
	AgeDescription   string
	VaccinationDate  immunization.Date
	NotificationDate immunization.Date
	Mandatory        bool
	Annual           bool
	Notes            string
	AgeRangeEnd      *int
	Completed        bool
	CompletedDate    *immunization.Date
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewSchedule maps a computed entry onto a record for childID.
func NewSchedule(childID int64, e immunization.ScheduleEntry) *Schedule {
	s := &Schedule{
		ChildID:          childID,
		VaccineID:        e.VaccineID,
		VaccineName:      e.VaccineName,
		Disease:          e.Disease,
		DoseNumber:       e.DoseNumber,
		AgeDescription:   e.AgeDescription,
		VaccinationDate:  e.VaccinationDate,
		NotificationDate: e.NotificationDate,
		Mandatory:        e.Mandatory,
		Annual:           e.Annual,
		Notes:            e.Notes,
	}
	if e.AgeRangeEnd != nil {
		v := *e.AgeRangeEnd
		s.AgeRangeEnd = &v
	}
	return s
}

// Entry rebuilds the schedule entry, evaluating the overdue flag against now.
func (s *Schedule) Entry(now time.Time) immunization.ScheduleEntry {
	e := immunization.ScheduleEntry{
		VaccineID:        s.VaccineID,
		VaccineName:      s.VaccineName,
		Disease:          s.Disease,
		DoseNumber:       s.DoseNumber,
		AgeDescription:   s.AgeDescription,
		VaccinationDate:  s.VaccinationDate,
		NotificationDate: s.NotificationDate,
		Mandatory:        s.Mandatory,
		Annual:           s.Annual,
		Notes:            s.Notes,
		Overdue:          immunization.IsOverdue(s.VaccinationDate, now),
	}
	if s.AgeRangeEnd != nil {
		v := *s.AgeRangeEnd
		e.AgeRangeEnd = &v
	}
	return e
}

// IsOverdue reports an incomplete mandatory dose whose date has passed.
func (s *Schedule) IsOverdue(now time.Time) bool {
	return !s.Completed && s.Mandatory && immunization.IsOverdue(s.VaccinationDate, now)
}

// IsUpcoming reports an incomplete dose dated within [now, now+daysAhead days].
func (s *Schedule) IsUpcoming(now time.Time, daysAhead int) bool {
	if s.Completed {
		return false
	}
	at := s.VaccinationDate.In(now.Location())
	return !at.Before(now) && !at.After(now.AddDate(0, 0, daysAhead))
}
