// Command schedule prints a child's vaccination schedule computed from a reference table.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"immunization_bot/internal/domain/immunization"
	"immunization_bot/internal/infra/logger"
)

const defaultTablePath = "configs/immunization_schedule_2025.json"

var errUsage = errors.New("usage")

type options struct {
	table    string
	birth    immunization.Date
	gender   immunization.Gender
	all      bool
	upcoming int
	overdue  bool
	asJSON   bool
	today    immunization.Date
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	var birth, gender, today string
	fs.StringVar(&opts.table, "table", defaultTablePath, "reference table (JSON or YAML)")
	fs.StringVar(&birth, "birth", "", "birth date, YYYY-MM-DD (required)")
	fs.StringVar(&gender, "gender", "", "male or female; gender-restricted doses are skipped when omitted")
	fs.BoolVar(&opts.all, "all", false, "include optional-category vaccines")
	fs.IntVar(&opts.upcoming, "upcoming", -1, "only doses within N days from now")
	fs.BoolVar(&opts.overdue, "overdue", false, "only past mandatory doses")
	fs.BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	fs.StringVar(&today, "today", "", "evaluate as of this date, YYYY-MM-DD (default: now)")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}

	var err error
	if birth == "" {
		fmt.Fprintln(stderr, "-birth is required")
		fs.Usage()
		return nil, errUsage
	}
	if opts.birth, err = immunization.ParseDate(birth); err != nil {
		return nil, fmt.Errorf("-birth: %w", err)
	}
	if gender != "" {
		if opts.gender, err = immunization.ParseGender(gender); err != nil {
			return nil, fmt.Errorf("-gender: %w", err)
		}
	}
	if today != "" {
		if opts.today, err = immunization.ParseDate(today); err != nil {
			return nil, fmt.Errorf("-today: %w", err)
		}
	}
	if opts.upcoming >= 0 && opts.overdue {
		return nil, fmt.Errorf("-upcoming and -overdue are mutually exclusive")
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	var calcOpts []immunization.Option
	if !opts.today.IsZero() {
		at := opts.today.In(time.Local)
		calcOpts = append(calcOpts, immunization.WithClock(func() time.Time { return at }))
	}
	calc, err := immunization.LoadCalculator(opts.table, calcOpts...)
	if err != nil {
		return err
	}

	var (
		entries []immunization.ScheduleEntry
		title   string
	)
	switch {
	case opts.overdue:
		entries, err = calc.OverdueVaccinations(opts.birth, opts.gender)
		title = "overdue mandatory doses"
	case opts.upcoming >= 0:
		entries, err = calc.UpcomingVaccinations(opts.birth, opts.gender, opts.upcoming)
		title = fmt.Sprintf("doses within %d days", opts.upcoming)
	default:
		entries, err = calc.ChildSchedule(opts.birth, opts.gender, opts.all)
		title = "full schedule"
		if !opts.all {
			title = "mandatory-category schedule"
		}
	}
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	return writeTable(stdout, opts.birth, title, entries)
}

func writeTable(out io.Writer, birth immunization.Date, title string, entries []immunization.ScheduleEntry) error {
	fmt.Fprintf(out, "Birth date %s, %s: %d entries\n\n", birth, title, len(entries))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tNOTIFY\tVACCINE\tDOSE\tAGE\tFLAGS")
	for _, e := range entries {
		var flags []string
		if !e.Mandatory {
			flags = append(flags, "optional")
		}
		if e.Annual {
			flags = append(flags, "annual")
		}
		if e.Overdue {
			flags = append(flags, "overdue")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", e.VaccinationDate, e.NotificationDate, e.VaccineName, e.DoseNumber, e.AgeDescription, strings.Join(flags, ","))
	}
	return tw.Flush()
}

func main() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	logger.Configure(logger.Log, os.Stderr, level, os.Getenv("ENVIRONMENT"))
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		logger.Log.WithError(err).Fatal("schedule failed")
	}
}
