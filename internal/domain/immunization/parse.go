// internal/domain/immunization/parse.go
package immunization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	yaml "go.yaml.in/yaml/v3"
	"golang.org/x/text/unicode/norm"
)

// Format is the encoding of a reference table document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the format from the file extension; anything but .yaml/.yml is JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// optionalTypeLabels are the vaccine_type values that mark a vaccine as optional.
var optionalTypeLabels = []string{"기타", "other"}

type rawTable struct {
	Version              string        `json:"version,omitempty"`
	NotificationSettings *rawSettings  `json:"notification_settings"`
	Vaccinations         []*rawVaccine `json:"vaccinations"`
}

type rawSettings struct {
	DefaultAdvanceDays *int `json:"default_advance_days"`
}

type rawVaccine struct {
	ID          *int       `json:"id"`
	VaccineName string     `json:"vaccine_name"`
	Disease     string     `json:"disease"`
	VaccineType string     `json:"vaccine_type"`
	Schedules   []*rawDose `json:"schedules"`
}

type rawDose struct {
	DoseNumber     *int    `json:"dose_number"`
	AgeInMonths    *int    `json:"age_in_months"`
	MaxAgeInWeeks  *int    `json:"max_age_in_weeks,omitempty"`
	Gender         *string `json:"gender,omitempty"`
	IsMandatory    *bool   `json:"is_mandatory,omitempty"`
	IsAnnual       *bool   `json:"is_annual,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	AgeDescription string  `json:"age_description,omitempty"`
	AgeRangeEnd    *int    `json:"age_range_end,omitempty"`
}

// LoadReferenceTable reads and validates the reference table at path.
// Every failure is reported as a *ConfigError carrying the path.
func LoadReferenceTable(path string) (*ReferenceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: errors.Wrap(err, "read reference table")}
	}
	table, err := ParseReferenceTable(data, FormatForPath(path))
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Path = path
		}
		return nil, err
	}
	return table, nil
}

// ParseReferenceTable decodes and validates a reference table document.
// Unknown fields are rejected so that a typo cannot silently drop a rule.
func ParseReferenceTable(data []byte, format Format) (*ReferenceTable, error) {
	jsonBytes := data
	if format == FormatYAML {
		var err error
		if jsonBytes, err = yamlToJSON(data); err != nil {
			return nil, &ConfigError{Err: err}
		}
	}

	var raw rawTable
	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, &ConfigError{Err: errors.Wrap(err, "decode reference table")}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, &ConfigError{Err: errors.New("trailing data after reference table document")}
	}

	table, problems := raw.build()
	problems = append(problems, table.problems()...)
	if len(problems) > 0 {
		return nil, &ConfigError{Err: errors.New(strings.Join(problems, "; "))}
	}
	return table, nil
}

func (r *rawTable) build() (*ReferenceTable, []string) {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	table := &ReferenceTable{}
	if r.NotificationSettings == nil || r.NotificationSettings.DefaultAdvanceDays == nil {
		addf("notification_settings.default_advance_days is required")
	} else {
		table.AdvanceDays = *r.NotificationSettings.DefaultAdvanceDays
	}

	for i, rv := range r.Vaccinations {
		at := fmt.Sprintf("vaccinations[%d]", i)
		if rv == nil {
			addf("%s is null", at)
			continue
		}
		v := VaccineDefinition{
			Name:    normalizeText(rv.VaccineName),
			Disease: normalizeText(rv.Disease),
			Type:    normalizeText(rv.VaccineType),
		}
		if rv.ID == nil {
			addf("%s.id is required", at)
		} else {
			v.ID = *rv.ID
		}
		v.Category = categoryOf(v.Type)

		for j, rd := range rv.Schedules {
			dat := fmt.Sprintf("%s.schedules[%d]", at, j)
			if rd == nil {
				addf("%s is null", dat)
				continue
			}
			if rd.DoseNumber == nil {
				addf("%s.dose_number is required", dat)
			}
			if rd.AgeInMonths == nil {
				addf("%s.age_in_months is required", dat)
			}
			if rd.Gender != nil && strings.TrimSpace(*rd.Gender) == "" {
				addf("%s.gender must not be empty when present", dat)
			}
			v.Doses = append(v.Doses, rd.build())
		}
		table.Vaccines = append(table.Vaccines, v)
	}
	return table, problems
}

func (rd *rawDose) build() DoseRule {
	d := DoseRule{
		MaxAgeInWeeks:  cloneInt(rd.MaxAgeInWeeks),
		AgeRangeEnd:    cloneInt(rd.AgeRangeEnd),
		Notes:          normalizeText(rd.Notes),
		AgeDescription: normalizeText(rd.AgeDescription),
		Mandatory:      rd.IsMandatory != nil && *rd.IsMandatory,
		Annual:         rd.IsAnnual != nil && *rd.IsAnnual,
	}
	if rd.DoseNumber != nil {
		d.Number = *rd.DoseNumber
	}
	if rd.AgeInMonths != nil {
		d.AgeInMonths = *rd.AgeInMonths
	}
	if rd.Gender != nil {
		d.Gender = Gender(strings.ToLower(strings.TrimSpace(*rd.Gender)))
	}
	if d.AgeDescription == "" {
		d.AgeDescription = describeAge(d)
	}
	return d
}

// categoryOf compares labels in NFC form; tables edited on macOS often carry decomposed Hangul.
func categoryOf(label string) Category {
	for _, opt := range optionalTypeLabels {
		if strings.EqualFold(label, norm.NFC.String(opt)) {
			return CategoryOptional
		}
	}
	return CategoryMandatory
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// yamlToJSON converts a YAML document to JSON so both formats share the strict decoder.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "yaml unmarshal")
	}
	out, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, errors.Wrap(err, "yaml to json")
	}
	return out, nil
}

// normalizeYAML turns map[any]any nodes into map[string]any for encoding/json.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = normalizeYAML(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
