package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BearBump/ClaimBox/config"
	"github.com/BearBump/ClaimBox/internal/bootstrap"
	"github.com/BearBump/ClaimBox/internal/models"
	"github.com/BearBump/ClaimBox/internal/services/outcome"
	"github.com/BearBump/ClaimBox/internal/services/reorder"
	"github.com/BearBump/ClaimBox/internal/services/search"
	"github.com/pkg/errors"
)

const usage = `usage: claimctl [-config path] [-emulator] [-log-level level] <command> [flags] [tokens...]

commands:
  reorder     re-create claims into the nearest same-day interval and accept them
  accept      accept existing claims
  cancel      cancel claims, free policy first
  search      search claims by filter
  report      claims delivered or returning during a day
  sorting     external order id to route table of routed claims
  duplicates  parcels submitted more than once
`

var errUsage = errors.New("invalid usage")

type servicesFactory func(ctx context.Context, cfg *config.Config) (bootstrap.Services, func(), error)

type cli struct {
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	newServices servicesFactory
	now         func() time.Time

	cfg *config.Config
}

func newCLI() *cli {
	return &cli{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		newServices: defaultServices,
		now:         time.Now,
	}
}

func defaultServices(ctx context.Context, cfg *config.Config) (bootstrap.Services, func(), error) {
	var closers bootstrap.Closers
	api, closeAPI, err := bootstrap.NewCargoAPI(cfg)
	if err != nil {
		return bootstrap.Services{}, nil, err
	}
	closers.Add(closeAPI)

	rep, closeRep, err := bootstrap.NewReporter(ctx, cfg)
	if err != nil {
		closers.Close()
		return bootstrap.Services{}, nil, err
	}
	closers.Add(closeRep)
	return bootstrap.NewServices(cfg, api, rep), closers.Close, nil
}

func (c *cli) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("claimctl", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() { fmt.Fprint(c.stderr, usage) }
	cfgPath := fs.String("config", os.Getenv("configPath"), "path to the YAML config")
	emulator := fs.Bool("emulator", false, "serve the claims API from the in-process fake")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *emulator {
		cfg.Cargo.Emulator = true
	}
	level := *logLevel
	if level == "" {
		level = cfg.ClaimBox.LogLevel
	}
	if level == "" {
		level = "warn"
	}
	bootstrap.SetupLogger(level)
	c.cfg = cfg

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "reorder", "accept", "cancel":
		return c.runBatch(ctx, cmd, rest)
	case "search":
		return c.runSearch(ctx, rest)
	case "report":
		return c.runReport(ctx, rest)
	case "sorting":
		f, opts := search.SortingFilter()
		return c.search(ctx, f, opts)
	case "duplicates":
		return c.runDuplicates(ctx, rest)
	default:
		fmt.Fprintf(c.stderr, "unknown command %q\n\n", cmd)
		fs.Usage()
		return errUsage
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	cfg := &config.Config{}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *cli) services(ctx context.Context) (bootstrap.Services, func(), error) {
	svc, closeFn, err := c.newServices(ctx, c.cfg)
	if err != nil {
		return bootstrap.Services{}, nil, errors.Wrap(err, "init services")
	}
	if closeFn == nil {
		closeFn = func() {}
	}
	return svc, closeFn, nil
}

func (c *cli) runBatch(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	file := fs.String("file", "", "read tokens from file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	tokens, err := c.tokens(fs.Args(), *file)
	if err != nil {
		return err
	}

	svc, closeFn, err := c.services(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	var outs []outcome.Outcome
	switch cmd {
	case "reorder":
		var b reorder.Batch
		b, err = svc.Reorder.Reorder(ctx, tokens)
		outs = b.Outcomes
	case "accept":
		outs, err = svc.Reorder.Accept(ctx, tokens)
	case "cancel":
		outs, err = svc.Cancel.Cancel(ctx, tokens)
	}
	if err != nil {
		return err
	}
	c.printOutcomes(outs)
	return nil
}

func (c *cli) printOutcomes(outs []outcome.Outcome) {
	for _, o := range outs {
		fmt.Fprintln(c.stdout, outcome.Line(o, outcome.FormatterFor(o.Op)))
	}
}

// tokens joins positional tokens with the ones read from file. Tokens in a
// file are separated by whitespace or commas.
func (c *cli) tokens(args []string, file string) ([]string, error) {
	out := append([]string(nil), args...)
	if file == "" {
		return out, nil
	}
	var r io.Reader = c.stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, errors.Wrap(err, "open tokens file")
		}
		defer f.Close()
		r = f
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out = append(out, strings.Fields(strings.ReplaceAll(sc.Text(), ",", " "))...)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read tokens")
	}
	return out, nil
}

func (c *cli) runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	statuses := fs.String("status", "", "comma separated statuses")
	intervalFrom := fs.String("interval-from", "", "start of the same-day interval")
	pickup := fs.String("pickup", "", "full pickup address")
	createdFrom := fs.String("created-from", "", "created on or after, YYYY-MM-DD")
	date := fs.String("date", "", "updated during, YYYY-MM-DD")
	tz := fs.Int("tz", 0, "UTC offset of -date, hours")
	dups := fs.Bool("duplicates", false, "report repeated external order ids")
	sorting := fs.Bool("sorting", false, "print the sorting table")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	f := search.Filter{IntervalFrom: *intervalFrom, Pickup: *pickup, TZOffsetHours: *tz}
	var err error
	if f.CreatedFrom, err = parseDay("created-from", *createdFrom); err != nil {
		return err
	}
	if f.Date, err = parseDay("date", *date); err != nil {
		return err
	}
	if *statuses != "" {
		for _, s := range strings.Split(*statuses, ",") {
			st := models.ClaimStatus(strings.TrimSpace(s))
			if !st.IsKnown() {
				return errors.Errorf("unknown status %q", s)
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	return c.search(ctx, f, search.Options{CollectDuplicates: *dups, CollectSorting: *sorting})
}

func (c *cli) runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	country := fs.String("country", "", "country from claimbox.time_zones")
	date := fs.String("date", "", "YYYY-MM-DD, today by default")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	tz := 0
	if *country != "" {
		var ok bool
		if tz, ok = c.cfg.ClaimBox.TimeZone(*country); !ok {
			return errors.Errorf("unknown country %q", *country)
		}
	}
	day := search.Today(c.now(), tz)
	if d, err := parseDay("date", *date); err != nil {
		return err
	} else if d != nil {
		day = *d
	}

	f := search.ReportFilter(bootstrap.ReportStatuses(c.cfg.ClaimBox.ReportStatuses), day, tz)
	return c.search(ctx, f, search.Options{})
}

func (c *cli) runDuplicates(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("duplicates", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	since := fs.String("since", "", "created on or after, YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	d, err := parseDay("since", *since)
	if err != nil {
		return err
	}
	var day time.Time
	if d != nil {
		day = *d
	}
	f, opts := search.DuplicatesFilter(day)
	return c.search(ctx, f, opts)
}

// search prints whatever was found, even when the search stopped on an error.
func (c *cli) search(ctx context.Context, f search.Filter, opts search.Options) error {
	svc, closeFn, err := c.services(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := svc.Search.Search(ctx, f, opts)
	switch {
	case opts.CollectSorting:
		for _, row := range res.Sorting {
			fmt.Fprintf(c.stdout, "%s\t%s\n", row.ExternalOrderID, row.RouteID)
		}
	case opts.CollectDuplicates:
		for _, ext := range res.Duplicates {
			fmt.Fprintln(c.stdout, ext)
		}
	default:
		for _, id := range res.ClaimIDs {
			fmt.Fprintln(c.stdout, id)
		}
	}
	fmt.Fprintf(c.stderr, "total: %d\n", len(res.ClaimIDs))
	return err
}

func parseDay(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, errors.Errorf("-%s: expected YYYY-MM-DD, got %q", name, v)
	}
	return &t, nil
}
