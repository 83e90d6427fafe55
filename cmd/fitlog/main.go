// Command fitlog logs activities and weights against the fitlog API and prints
// the dashboard.
//
// Usage:
//
//	fitlog activity "Pushups - 40"
//	fitlog weight 72.5
//	fitlog dashboard [-month 2025-03] [-tz Europe/Berlin]
//	fitlog months [-tz Europe/Berlin]
//	fitlog token [-scopes entries:read,entries:write] [-ttl 24h]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"example.com/fitlog/internal/aggregate"
	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/client"
	"example.com/fitlog/internal/config"
	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/logging"
	"example.com/fitlog/internal/state"
)

const usage = `usage: fitlog <command> [flags]

commands:
  activity "<name> - <reps>"   log an activity
  weight <kg>                  log a body weight
  dashboard [-month] [-tz]     show today's activities, weight and monthly stats
  months [-tz]                 list the months with entries
  token [-scopes] [-ttl]       issue a bearer token signed with JWT_SECRET
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %s", err)
	}
	logging.Setup(logging.SetupParams{LogLevel: "warn"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout, time.Now); err != nil {
		fmt.Fprintln(os.Stderr, "fitlog:", describe(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, args []string, out io.Writer, now func() time.Time) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("missing command")
	}

	entries := state.NewLog(client.New(cfg.APIURL, client.WithToken(cfg.APIToken)))

	switch command, rest := args[0], args[1:]; command {
	case "activity":
		text := strings.Join(rest, " ")
		entry, err := entries.SubmitActivity(ctx, text)
		if err != nil {
			return err
		}
		detail := entry.Detail()
		fmt.Fprintf(out, "logged activity %s: %d %s\n", entry.ID, detail.Reps, detail.Name)
		return nil

	case "weight":
		if len(rest) != 1 {
			return errors.New("weight takes exactly one value")
		}
		entry, err := entries.SubmitWeight(ctx, rest[0])
		if err != nil {
			return err
		}
		w, _ := entry.Weight()
		fmt.Fprintf(out, "logged weight %s: %g\n", entry.ID, w.Amount)
		return nil

	case "dashboard":
		fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
		fs.SetOutput(out)
		month := fs.String("month", aggregate.CurrentMonthKey, "month as YYYY-MM or current")
		tz := fs.String("tz", cfg.Timezone, "IANA time zone")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		loc, err := config.Config{Timezone: *tz}.Location()
		if err != nil {
			return err
		}
		at := now()
		selected, err := aggregate.ParseMonth(*month, at, loc)
		if err != nil {
			return err
		}
		if err := entries.Refresh(ctx); err != nil {
			return err
		}
		printDashboard(out, entries.Dashboard(at, loc, selected), loc)
		return nil

	case "months":
		fs := flag.NewFlagSet("months", flag.ContinueOnError)
		fs.SetOutput(out)
		tz := fs.String("tz", cfg.Timezone, "IANA time zone")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		loc, err := config.Config{Timezone: *tz}.Location()
		if err != nil {
			return err
		}
		if err := entries.Refresh(ctx); err != nil {
			return err
		}
		for _, m := range entries.Months(now(), loc) {
			fmt.Fprintf(out, "%-8s %s\n", m.Key, m.Label)
		}
		return nil

	case "token":
		fs := flag.NewFlagSet("token", flag.ContinueOnError)
		fs.SetOutput(out)
		scopes := fs.String("scopes", auth.ScopeEntriesRead+","+auth.ScopeEntriesWrite, "comma separated scopes")
		ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
		subject := fs.String("sub", "fitlog-cli", "token subject")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		token, err := auth.IssueToken(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, *subject, strings.Split(*scopes, ","), *ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, token)
		return nil
	}

	fmt.Fprint(out, usage)
	return fmt.Errorf("unknown command %q", args[0])
}

func printDashboard(out io.Writer, d aggregate.Dashboard, loc *time.Location) {
	fmt.Fprintf(out, "%s\n\n", d.Month.Label())

	fmt.Fprintln(out, "Today:")
	if len(d.TodayActivities) == 0 {
		fmt.Fprintln(out, "  no activities yet")
	}
	for _, e := range d.TodayActivities {
		a, _ := e.Activity()
		fmt.Fprintf(out, "  %s  %s\n", e.Timestamp.In(loc).Format("15:04"), a.Text)
	}

	if d.CurrentWeight != nil {
		fmt.Fprintf(out, "\nCurrent weight: %g\n", *d.CurrentWeight)
	}

	fmt.Fprintln(out, "\nMonthly totals:")
	for _, name := range sortedKeys(d.MonthlyTotals) {
		fmt.Fprintf(out, "  %-20s %6d  (record %d)\n", name, d.MonthlyTotals[name], d.PersonalRecords[name])
	}

	if len(d.WeightSeries) > 0 {
		fmt.Fprintln(out, "\nWeekly weight:")
		for _, p := range d.WeightSeries {
			fmt.Fprintf(out, "  %s  %g\n", p.Label, p.Weight)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func describe(err error) string {
	switch {
	case errors.Is(err, domain.ErrParseFailure):
		return "activity must look like 'Name - Reps', e.g. 'Pushups - 40'"
	case errors.Is(err, domain.ErrStorage):
		return "could not reach the fitlog API, please try again"
	}
	return err.Error()
}
