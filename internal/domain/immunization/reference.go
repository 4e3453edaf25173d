// internal/domain/immunization/reference.go
package immunization

import (
	"fmt"
	"strings"
)

// Gender restricts a dose to one sex. The zero value means "not specified".
type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
)

// ParseGender accepts "male"/"female" (any case, or the initials m/f) and the empty string.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return GenderUnspecified, nil
	case "male", "m":
		return GenderMale, nil
	case "female", "f":
		return GenderFemale, nil
	default:
		return "", &ValidationError{Field: "gender", Value: s, Reason: "must be male, female or empty"}
	}
}

func (g Gender) valid() bool {
	return g == GenderUnspecified || g == GenderMale || g == GenderFemale
}

// Category separates the national mandatory programme from optional vaccines.
type Category int

const (
	CategoryMandatory Category = iota
	CategoryOptional
)

func (c Category) String() string {
	if c == CategoryOptional {
		return "optional"
	}
	return "mandatory"
}

// ReferenceTable is the parsed vaccination reference document.
type ReferenceTable struct {
	AdvanceDays int // notification_settings.default_advance_days
	Vaccines    []VaccineDefinition
}

// VaccineDefinition is one vaccine and its ordered dose rules.
type VaccineDefinition struct {
	ID       int
	Name     string
	Disease  string
	Type     string // raw vaccine_type label, e.g. "국가필수" or "기타"
	Category Category
	Doses    []DoseRule
}

// DoseRule describes when a single dose is recommended.
type DoseRule struct {
	Number         int
	AgeInMonths    int
	MaxAgeInWeeks  *int // overrides AgeInMonths when set
	Gender         Gender
	Mandatory      bool
	Annual         bool
	Notes          string
	AgeDescription string
	AgeRangeEnd    *int // months
}

// clone returns a deep copy so callers never share slices or pointers with the table.
func (t *ReferenceTable) clone() *ReferenceTable {
	out := &ReferenceTable{AdvanceDays: t.AdvanceDays, Vaccines: make([]VaccineDefinition, len(t.Vaccines))}
	for i, v := range t.Vaccines {
		v.Doses = make([]DoseRule, len(t.Vaccines[i].Doses))
		for j, d := range t.Vaccines[i].Doses {
			d.MaxAgeInWeeks = cloneInt(d.MaxAgeInWeeks)
			d.AgeRangeEnd = cloneInt(d.AgeRangeEnd)
			v.Doses[j] = d
		}
		out.Vaccines[i] = v
	}
	return out
}

// describeAge renders the human age text used when the table gives none.
func describeAge(d DoseRule) string {
	switch {
	case d.MaxAgeInWeeks != nil:
		return fmt.Sprintf("생후 %d주 이내", *d.MaxAgeInWeeks)
	case d.AgeInMonths == 0:
		return "출생 직후"
	case d.AgeInMonths >= 24 && d.AgeInMonths%12 == 0:
		return fmt.Sprintf("만 %d세", d.AgeInMonths/12)
	default:
		return fmt.Sprintf("생후 %d개월", d.AgeInMonths)
	}
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Validate checks the structural invariants of a table built in code.
// Tables produced by ParseReferenceTable have already passed it.
func (t *ReferenceTable) Validate() error {
	if problems := t.problems(); len(problems) > 0 {
		return &ConfigError{Err: fmt.Errorf("%s", strings.Join(problems, "; "))}
	}
	return nil
}

func (t *ReferenceTable) problems() []string {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if t.AdvanceDays < 0 {
		addf("notification_settings.default_advance_days must be >= 0, got %d", t.AdvanceDays)
	}
	if len(t.Vaccines) == 0 {
		addf("vaccinations must contain at least one vaccine")
	}

	seenIDs := make(map[int]int, len(t.Vaccines))
	for i, v := range t.Vaccines {
		at := fmt.Sprintf("vaccinations[%d]", i)
		if prev, dup := seenIDs[v.ID]; dup {
			addf("%s.id %d duplicates vaccinations[%d]", at, v.ID, prev)
		}
		seenIDs[v.ID] = i
		if v.Name == "" {
			addf("%s.vaccine_name is required", at)
		}
		if v.Disease == "" {
			addf("%s.disease is required", at)
		}
		if v.Type == "" {
			addf("%s.vaccine_type is required", at)
		}
		if len(v.Doses) == 0 {
			addf("%s.schedules must contain at least one dose", at)
		}

		last := 0
		for j, d := range v.Doses {
			dat := fmt.Sprintf("%s.schedules[%d]", at, j)
			if d.Number < 1 {
				addf("%s.dose_number must be >= 1, got %d", dat, d.Number)
			} else if d.Number <= last {
				addf("%s.dose_number %d must be greater than the previous dose number %d", dat, d.Number, last)
			}
			if d.Number > last {
				last = d.Number
			}
			if d.AgeInMonths < 0 {
				addf("%s.age_in_months must be >= 0, got %d", dat, d.AgeInMonths)
			}
			if d.MaxAgeInWeeks != nil && *d.MaxAgeInWeeks <= 0 {
				addf("%s.max_age_in_weeks must be > 0, got %d", dat, *d.MaxAgeInWeeks)
			}
			if d.AgeRangeEnd != nil && *d.AgeRangeEnd < d.AgeInMonths {
				addf("%s.age_range_end %d is before age_in_months %d", dat, *d.AgeRangeEnd, d.AgeInMonths)
			}
			if !d.Gender.valid() {
				addf("%s.gender must be male or female, got %q", dat, string(d.Gender))
			}
		}
	}
	return problems
}
