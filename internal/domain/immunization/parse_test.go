package immunization

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/unicode/norm"
)

func TestParseReferenceTableJSON(t *testing.T) {
	t.Parallel()
	table, err := ParseReferenceTable([]byte(testTableJSON), FormatJSON)
	if err != nil {
		t.Fatalf("ParseReferenceTable error: %v", err)
	}
	if table.AdvanceDays != 30 {
		t.Fatalf("AdvanceDays = %d, want 30", table.AdvanceDays)
	}
	if len(table.Vaccines) != 7 {
		t.Fatalf("got %d vaccines, want 7", len(table.Vaccines))
	}

	bcg := table.Vaccines[0].Doses[0]
	if bcg.MaxAgeInWeeks == nil || *bcg.MaxAgeInWeeks != 4 || !bcg.Mandatory {
		t.Fatalf("BCG dose = %+v", bcg)
	}
	if bcg.AgeDescription != "생후 4주 이내" {
		t.Fatalf("derived BCG description = %q", bcg.AgeDescription)
	}
	if got := table.Vaccines[4].Doses[0].Gender; got != GenderFemale {
		t.Fatalf("HPV gender = %q, want female", got)
	}
	if table.Vaccines[5].Category != CategoryOptional {
		t.Fatalf("MenACWY category = %s, want optional", table.Vaccines[5].Category)
	}
	if iiv := table.Vaccines[6].Doses[0]; !iiv.Annual || iiv.Mandatory {
		t.Fatalf("IIV dose = %+v", iiv)
	}
}

func TestParseReferenceTableYAML(t *testing.T) {
	t.Parallel()
	doc := `
notification_settings:
  default_advance_days: 14
vaccinations:
  - id: 9
    vaccine_name: MMR
    disease: 홍역·유행성이하선염·풍진
    vaccine_type: 국가필수
    schedules:
      - dose_number: 1
        age_in_months: 12
        is_mandatory: true
        age_range_end: 15
      - dose_number: 2
        age_in_months: 48
        is_mandatory: true
  - id: 15
    vaccine_name: MenACWY
    disease: 수막구균 감염증
    vaccine_type: other
    schedules:
      - dose_number: 1
        age_in_months: 132
`
	table, err := ParseReferenceTable([]byte(doc), FormatYAML)
	if err != nil {
		t.Fatalf("ParseReferenceTable error: %v", err)
	}
	if table.AdvanceDays != 14 {
		t.Fatalf("AdvanceDays = %d, want 14", table.AdvanceDays)
	}
	mmr := table.Vaccines[0]
	if mmr.Doses[0].AgeRangeEnd == nil || *mmr.Doses[0].AgeRangeEnd != 15 {
		t.Fatalf("MMR dose 1 age_range_end = %v", mmr.Doses[0].AgeRangeEnd)
	}
	if mmr.Doses[1].AgeDescription != "만 4세" {
		t.Fatalf("derived description = %q, want 만 4세", mmr.Doses[1].AgeDescription)
	}
	if table.Vaccines[1].Category != CategoryOptional {
		t.Fatalf("vaccine_type other should be optional")
	}
}

func TestParseReferenceTableNormalizesHangul(t *testing.T) {
	t.Parallel()
	decomposed := norm.NFD.String("기타")
	if decomposed == "기타" {
		t.Fatal("test precondition: NFD form should differ")
	}
	doc := `{"notification_settings": {"default_advance_days": 30}, "vaccinations": [
	  {"id": 1, "vaccine_name": "Typhoid", "disease": "장티푸스", "vaccine_type": "` + decomposed + `",
	   "schedules": [{"dose_number": 1, "age_in_months": 24}]}]}`

	table, err := ParseReferenceTable([]byte(doc), FormatJSON)
	if err != nil {
		t.Fatalf("ParseReferenceTable error: %v", err)
	}
	if table.Vaccines[0].Category != CategoryOptional {
		t.Fatal("decomposed 기타 was not treated as optional")
	}
	if table.Vaccines[0].Type != "기타" {
		t.Fatalf("Type = %q, want NFC form", table.Vaccines[0].Type)
	}
}

func TestParseReferenceTableErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{
			name:    "missing settings",
			doc:     `{"vaccinations": [{"id": 1, "vaccine_name": "a", "disease": "b", "vaccine_type": "c", "schedules": [{"dose_number": 1, "age_in_months": 0}]}]}`,
			wantMsg: "default_advance_days is required",
		},
		{
			name:    "negative advance",
			doc:     `{"notification_settings": {"default_advance_days": -1}, "vaccinations": [{"id": 1, "vaccine_name": "a", "disease": "b", "vaccine_type": "c", "schedules": [{"dose_number": 1, "age_in_months": 0}]}]}`,
			wantMsg: "must be >= 0",
		},
		{
			name:    "no vaccines",
			doc:     `{"notification_settings": {"default_advance_days": 30}, "vaccinations": []}`,
			wantMsg: "at least one vaccine",
		},
		{
			name:    "missing id",
			doc:     `{"notification_settings": {"default_advance_days": 30}, "vaccinations": [{"vaccine_name": "a", "disease": "b", "vaccine_type": "c", "schedules": [{"dose_number": 1, "age_in_months": 0}]}]}`,
			wantMsg: "vaccinations[0].id is required",
		},
		{
			name:    "missing name",
			doc:     `{"notification_settings": {"default_advance_days": 30}, "vaccinations": [{"id": 1, "disease": "b", "vaccine_type": "c", "schedules": [{"dose_number": 1, "age_in_months": 0}]}]}`,
			wantMsg: "vaccine_name is required",
		},
		{
			name:    "missing age",
			doc:     `{"notification_settings": {"default_advance_days": 30}, "vaccinations": [{"id": 1, "vaccine_name": "a", "disease": "b", "vaccine_type": "c", "schedules": [{"dose_number": 1}]}]}`,
			wantMsg: "age_in_months is required",
		},
		{
			name:    "duplicate id",
			doc:     `{"notification_settings": {"default_advance_days": 30}, "vaccinations": [{"id": 1, "vaccine_name": "a", "disease": "b", "vaccine_type": "c", "schedules": [{"dose_number": 1, "age_in_months": 0}]}, {"id": 1, "vaccine_name": "x", "disease": "y", "vaccine_type": "z", "schedules": [{"dose_number": 1, "age_in_months": 0}]}]}`,
			wantMsg: "duplicates vaccinations[0]",
		},
		{
			name:    "dose numbers not increasing",
			doc:     `{"notification_settings": {"default_advance_days": 30}, "vaccinations": [{"id": 1, "vaccine_name": "a", "disease": "b", "vaccine_type": "c", "schedules": [{"dose_number": 1, "age_in_months": 0}, {"dose_number": 1, "age_in_months": 2}]}]}`,
			wantMsg: "must be greater than the previous dose number",
		},
		{
			name:    "bad gender",
			doc:     `{"notification_settings": {"default_advance_days": 30}, "vaccinations": [{"id": 1, "vaccine_name": "a", "disease": "b", "vaccine_type": "c", "schedules": [{"dose_number": 1, "age_in_months": 0, "gender": "girl"}]}]}`,
			wantMsg: "gender must be male or female",
		},
		{
			name:    "zero weeks",
			doc:     `{"notification_settings": {"default_advance_days": 30}, "vaccinations": [{"id": 1, "vaccine_name": "a", "disease": "b", "vaccine_type": "c", "schedules": [{"dose_number": 1, "age_in_months": 0, "max_age_in_weeks": 0}]}]}`,
			wantMsg: "max_age_in_weeks must be > 0",
		},
		{
			name:    "unknown field",
			doc:     `{"notification_settings": {"default_advance_days": 30}, "vaccinations": [{"id": 1, "vaccine_name": "a", "disease": "b", "vaccine_type": "c", "schedules": [{"dose_number": 1, "age_in_month": 0}]}]}`,
			wantMsg: "unknown field",
		},
		{
			name:    "trailing data",
			doc:     `{"notification_settings": {"default_advance_days": 30}, "vaccinations": []} {}`,
			wantMsg: "trailing data",
		},
		{
			name:    "empty document",
			doc:     ``,
			wantMsg: "decode reference table",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseReferenceTable([]byte(tt.doc), FormatJSON)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error = %v, want ConfigError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadReferenceTableErrorsCarryPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.json")
	_, err := LoadCalculator(missing)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Path != missing {
		t.Fatalf("missing file error = %v, want ConfigError for %s", err, missing)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file error should unwrap to os.ErrNotExist, got %v", err)
	}

	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("vaccinations: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = LoadReferenceTable(broken)
	if !errors.As(err, &cfgErr) || cfgErr.Path != broken {
		t.Fatalf("broken yaml error = %v, want ConfigError for %s", err, broken)
	}
}

func TestFormatForPath(t *testing.T) {
	t.Parallel()
	for path, want := range map[string]Format{
		"table.json":     FormatJSON,
		"table.YAML":     FormatYAML,
		"dir/table.yml":  FormatYAML,
		"table":          FormatJSON,
		"table.json.bak": FormatJSON,
	} {
		if got := FormatForPath(path); got != want {
			t.Fatalf("FormatForPath(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestParseGender(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Gender{"": GenderUnspecified, "Male": GenderMale, "f": GenderFemale, " female ": GenderFemale} {
		got, err := ParseGender(in)
		if err != nil || got != want {
			t.Fatalf("ParseGender(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	var vErr *ValidationError
	if _, err := ParseGender("unknown"); !errors.As(err, &vErr) {
		t.Fatalf("ParseGender(unknown) error = %v, want ValidationError", err)
	}
}
