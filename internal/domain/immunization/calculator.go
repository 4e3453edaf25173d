// internal/domain/immunization/calculator.go
package immunization

import (
	"sort"
	"time"
)

// DefaultUpcomingDays is the look-ahead window used when a caller has no preference.
const DefaultUpcomingDays = 60

// Calculator turns a birth date into a child's vaccination schedule.
// It owns an immutable copy of its reference table, so one instance may be shared by
// any number of goroutines without locking. Loading a new table means building a new
// Calculator.
type Calculator struct {
	table *ReferenceTable
	now   func() time.Time
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithClock replaces time.Now as the source of "now" for overdue and upcoming checks.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCalculator validates table and returns a calculator holding its own copy of it.
func NewCalculator(table *ReferenceTable, opts ...Option) (*Calculator, error) {
	if table == nil {
		return nil, &ConfigError{Err: errNilTable}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	c := &Calculator{table: table.clone(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LoadCalculator reads the reference table at path and builds a calculator from it.
func LoadCalculator(path string, opts ...Option) (*Calculator, error) {
	table, err := LoadReferenceTable(path)
	if err != nil {
		return nil, err
	}
	return NewCalculator(table, opts...)
}

// AdvanceDays is the number of days a notification precedes its vaccination date.
func (c *Calculator) AdvanceDays() int {
	return c.table.AdvanceDays
}

// ReferenceTable returns a copy of the table the calculator was built from.
func (c *Calculator) ReferenceTable() *ReferenceTable {
	return c.table.clone()
}

// CalculateVaccinationDate returns the recommended date for a dose.
// When maxAgeInWeeks is set it wins: birth + 7*weeks days. Otherwise the birth date is
// shifted by ageInMonths calendar months, clamping to the end of shorter months.
func (c *Calculator) CalculateVaccinationDate(birth Date, ageInMonths int, maxAgeInWeeks *int) (Date, error) {
	if ageInMonths < 0 {
		return Date{}, &ValidationError{Field: "age_in_months", Value: ageInMonths, Reason: "must not be negative"}
	}
	if maxAgeInWeeks != nil {
		if *maxAgeInWeeks < 0 {
			return Date{}, &ValidationError{Field: "max_age_in_weeks", Value: *maxAgeInWeeks, Reason: "must not be negative"}
		}
		return birth.AddDays(*maxAgeInWeeks * 7), nil
	}
	return birth.AddMonths(ageInMonths), nil
}

// CalculateNotificationDate returns vaccinationDate minus the advance days. The result
// may already be in the past.
func (c *Calculator) CalculateNotificationDate(vaccinationDate Date) Date {
	return vaccinationDate.AddDays(-c.table.AdvanceDays)
}

// ChildSchedule computes every applicable dose for a child, sorted by vaccination date.
// Optional vaccines are skipped unless includeOptional is set. A gender-restricted dose is
// kept only when gender matches it exactly; an unspecified gender drops it.
//
// Overdue flags are evaluated against the calculator's clock at call time, so two calls
// with identical arguments can differ in those flags and nothing else.
func (c *Calculator) ChildSchedule(birth Date, gender Gender, includeOptional bool) ([]ScheduleEntry, error) {
	if !gender.valid() {
		return nil, &ValidationError{Field: "gender", Value: string(gender), Reason: "must be male, female or empty"}
	}
	return c.scheduleAt(birth, gender, includeOptional, c.now()), nil
}

// UpcomingVaccinations returns the mandatory-programme schedule entries whose date lies in
// [now, now+daysAhead days].
func (c *Calculator) UpcomingVaccinations(birth Date, gender Gender, daysAhead int) ([]ScheduleEntry, error) {
	if daysAhead < 0 {
		return nil, &ValidationError{Field: "days_ahead", Value: daysAhead, Reason: "must not be negative"}
	}
	if !gender.valid() {
		return nil, &ValidationError{Field: "gender", Value: string(gender), Reason: "must be male, female or empty"}
	}

	now := c.now()
	cutoff := now.AddDate(0, 0, daysAhead)
	all := c.scheduleAt(birth, gender, false, now)

	upcoming := make([]ScheduleEntry, 0, len(all))
	for _, e := range all {
		at := e.VaccinationDate.In(now.Location())
		if !at.Before(now) && !at.After(cutoff) {
			upcoming = append(upcoming, e)
		}
	}
	return upcoming, nil
}

// OverdueVaccinations returns the past-due entries of mandatory doses only. Optional doses
// are never reported here even when their date has passed.
func (c *Calculator) OverdueVaccinations(birth Date, gender Gender) ([]ScheduleEntry, error) {
	all, err := c.ChildSchedule(birth, gender, false)
	if err != nil {
		return nil, err
	}

	overdue := make([]ScheduleEntry, 0, len(all))
	for _, e := range all {
		if e.Overdue && e.Mandatory {
			overdue = append(overdue, e)
		}
	}
	return overdue, nil
}

func (c *Calculator) scheduleAt(birth Date, gender Gender, includeOptional bool, now time.Time) []ScheduleEntry {
	schedule := make([]ScheduleEntry, 0, len(c.table.Vaccines)*2)
	for _, v := range c.table.Vaccines {
		if v.Category == CategoryOptional && !includeOptional {
			continue
		}
		for _, d := range v.Doses {
			if d.Gender != GenderUnspecified && d.Gender != gender {
				continue
			}

			// Rules were validated at load, so the date computation cannot fail here.
			vaccinationDate, _ := c.CalculateVaccinationDate(birth, d.AgeInMonths, d.MaxAgeInWeeks)
			schedule = append(schedule, ScheduleEntry{
				VaccineID:        v.ID,
				VaccineName:      v.Name,
				Disease:          v.Disease,
				DoseNumber:       d.Number,
				AgeDescription:   d.AgeDescription,
				VaccinationDate:  vaccinationDate,
				NotificationDate: c.CalculateNotificationDate(vaccinationDate),
				Mandatory:        d.Mandatory,
				Annual:           d.Annual,
				Notes:            d.Notes,
				AgeRangeEnd:      cloneInt(d.AgeRangeEnd),
				Overdue:          IsOverdue(vaccinationDate, now),
			})
		}
	}

	sort.SliceStable(schedule, func(i, j int) bool {
		return schedule[i].VaccinationDate.Before(schedule[j].VaccinationDate)
	})
	return schedule
}

// IsOverdue reports whether the start of day d, in now's location, is before now.
func IsOverdue(d Date, now time.Time) bool {
	return d.In(now.Location()).Before(now)
}
