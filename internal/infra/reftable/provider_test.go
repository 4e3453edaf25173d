package reftable

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"immunization_bot/internal/domain/immunization"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func tableJSON(advanceDays int) string {
	return fmt.Sprintf(`{
  "notification_settings": {"default_advance_days": %d},
  "vaccinations": [
    {"id": 1, "vaccine_name": "BCG", "disease": "결핵", "vaccine_type": "국가필수",
     "schedules": [{"dose_number": 1, "age_in_months": 0, "max_age_in_weeks": 4, "is_mandatory": true}]}
  ]
}`, advanceDays)
}

func writeTable(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
}

func testLog() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

func TestReloadSwapsCalculator(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "table.json")
	writeTable(t, path, tableJSON(30))

	p, err := NewProvider(path, testLog())
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	first := p.Current()
	if first.AdvanceDays() != 30 {
		t.Fatalf("AdvanceDays = %d, want 30", first.AdvanceDays())
	}

	changed, err := p.Reload()
	if err != nil || changed {
		t.Fatalf("Reload of unchanged file = %v, %v; want false, nil", changed, err)
	}
	if p.Current() != first {
		t.Fatal("unchanged reload replaced the calculator")
	}

	writeTable(t, path, tableJSON(14))
	changed, err = p.Reload()
	if err != nil || !changed {
		t.Fatalf("Reload = %v, %v; want true, nil", changed, err)
	}
	if got := p.Current().AdvanceDays(); got != 14 {
		t.Fatalf("AdvanceDays after reload = %d, want 14", got)
	}
	if first.AdvanceDays() != 30 {
		t.Fatal("previous calculator was mutated by reload")
	}
}

func TestReloadKeepsPreviousOnInvalidTable(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "table.json")
	writeTable(t, path, tableJSON(30))
	p, err := NewProvider(path, testLog())
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	before := p.Current()

	writeTable(t, path, `{"notification_settings": {"default_advance_days": -1}, "vaccinations": []}`)
	_, err = p.Reload()
	var cerr *immunization.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("Reload error = %v, want *immunization.ConfigError", err)
	}
	if cerr.Path != path {
		t.Fatalf("ConfigError.Path = %q, want %q", cerr.Path, path)
	}
	if p.Current() != before {
		t.Fatal("invalid table replaced the calculator")
	}
}

func TestNewProviderMissingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "missing.json")
	_, err := NewProvider(path, testLog())
	var cerr *immunization.ConfigError
	if !errors.As(err, &cerr) || cerr.Path != path {
		t.Fatalf("error = %v, want *immunization.ConfigError for %s", err, path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v, want it to wrap os.ErrNotExist", err)
	}
}

func TestProviderAppliesOptions(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "table.json")
	writeTable(t, path, tableJSON(30))
	now := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	p, err := NewProvider(path, testLog(), immunization.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}

	overdue, err := p.Current().OverdueVaccinations(immunization.NewDate(2024, time.January, 15), immunization.GenderUnspecified)
	if err != nil {
		t.Fatalf("OverdueVaccinations error: %v", err)
	}
	if len(overdue) != 1 {
		t.Fatalf("overdue = %d entries, want 1 under the injected clock", len(overdue))
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "table.json")
	writeTable(t, path, tableJSON(30))
	p, err := NewProvider(path, testLog())
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	p.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch returned %v", err)
		}
	}()

	// The watcher registers asynchronously; keep rewriting until it notices.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		writeTable(t, path, tableJSON(21))
		time.Sleep(50 * time.Millisecond)
		if p.Current().AdvanceDays() == 21 {
			return
		}
	}
	t.Fatalf("AdvanceDays = %d after watch, want 21", p.Current().AdvanceDays())
}
