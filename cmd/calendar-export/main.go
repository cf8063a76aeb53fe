// Command calendar-export retrieves a date range and merges it into a CSV file.
//
//	calendar-export -from 2025-12-02 -to 2025-12-20 -out output/economic_events.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/Sternrassler/econ-calendar-client/internal/app"
	"github.com/Sternrassler/econ-calendar-client/internal/config"
	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
	"github.com/Sternrassler/econ-calendar-client/pkg/export"
	"github.com/Sternrassler/econ-calendar-client/pkg/logging"
	"github.com/Sternrassler/econ-calendar-client/pkg/retrieval"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "calendar-export: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	from         string
	to           string
	out          string
	daysPerChunk int
	holidays     bool
}

func parseFlags(args []string) (options, error) {
	today := time.Now().UTC().Format(calendar.DateLayout)

	var o options
	fs := flag.NewFlagSet("calendar-export", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", os.Getenv("CALENDAR_CONFIG"), "path to YAML config file")
	fs.StringVar(&o.from, "from", today, "first day (YYYY-MM-DD)")
	fs.StringVar(&o.to, "to", today, "last day (YYYY-MM-DD)")
	fs.StringVar(&o.out, "out", "output/economic_events.csv", "CSV file to create or merge into")
	fs.IntVar(&o.daysPerChunk, "days-per-chunk", 0, "chunk width in days (0 uses the configured value)")
	fs.BoolVar(&o.holidays, "holidays", true, "include market holidays")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.daysPerChunk < 0 {
		return o, errors.New("-days-per-chunk must be >= 0")
	}
	return o, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Output:  os.Stderr,
		Service: "calendar-export",
	})
	logger := logging.NewLogger("export")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := app.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, rdb)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Retriever.Retrieve(ctx, retrieval.Request{
		From:         opts.from,
		To:           opts.to,
		DaysPerChunk: opts.daysPerChunk,
		Filters:      a.Filters,
		Progress: func(cr retrieval.ChunkReport) {
			logger.Info().
				Int("chunk", cr.Index).
				Str("from", cr.From).
				Str("outcome", string(cr.Outcome)).
				Int("new", cr.New).
				Msg("Chunk done")
		},
	})
	if res == nil {
		return err
	}
	if err != nil {
		// keep what was fetched before the interrupt
		logger.Warn().Err(err).Msg("Retrieval interrupted - writing partial result")
	}

	rows := exportRows(res, opts.holidays)

	added, werr := export.MergeFile(opts.out, rows)
	if werr != nil {
		return werr
	}

	fmt.Printf("%d events retrieved (%d duplicates dropped), %d new rows written to %s\n",
		len(rows), res.DuplicateCount, added, opts.out)
	if msg := res.ErrorMessage(); msg != "" {
		fmt.Fprintf(os.Stderr, "incomplete: %s\n", msg)
	}
	if res.Failed() {
		return errors.New("every chunk failed")
	}
	return err
}

// exportRows returns the rows to write, time-ordered. res is left untouched.
func exportRows(res *retrieval.Result, holidays bool) []calendar.RawEvent {
	if !holidays {
		return res.Events
	}
	rows := make([]calendar.RawEvent, 0, len(res.Events)+len(res.Holidays))
	rows = append(rows, res.Events...)
	rows = append(rows, res.Holidays...)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	return rows
}
