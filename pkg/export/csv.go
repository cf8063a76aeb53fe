// Package export writes retrieved events as CSV.
//
// The column layout is DateTime, Event, Country, Impact, Currency, Actual,
// Forecast, Previous. DateTime is UTC "2006-01-02 15:04:05"; missing values
// are written as "N/A".
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
	"github.com/Sternrassler/econ-calendar-client/pkg/dedup"
	"github.com/rs/zerolog/log"
)

// DateTimeLayout is the format of the DateTime column.
const DateTimeLayout = "2006-01-02 15:04:05"

// Missing is written for empty cells.
const Missing = "N/A"

// Header is the CSV header row.
var Header = []string{"DateTime", "Event", "Country", "Impact", "Currency", "Actual", "Forecast", "Previous"}

// ErrBadHeader is returned by Read when the first row is not Header.
var ErrBadHeader = errors.New("unexpected csv header")

// Write writes the header and one row per event.
func Write(w io.Writer, events []calendar.RawEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, ev := range events {
		if err := cw.Write(row(ev)); err != nil {
			return fmt.Errorf("write event %q: %w", ev.Title, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(ev calendar.RawEvent) []string {
	return []string{
		ev.Timestamp.UTC().Format(DateTimeLayout),
		orMissing(ev.Title),
		orMissing(ev.Country),
		orMissing(string(ev.Impact)),
		orMissing(ev.Currency),
		orMissing(ev.Actual),
		orMissing(ev.Forecast),
		orMissing(ev.Previous),
	}
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return Missing
	}
	return s
}

func fromMissing(s string) string {
	if s == Missing {
		return ""
	}
	return s
}

// Read parses a file written by Write.
func Read(r io.Reader) ([]calendar.RawEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if strings.Join(head, ",") != strings.Join(Header, ",") {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, head)
	}

	var events []calendar.RawEvent
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		ts, err := time.ParseInLocation(DateTimeLayout, rec[0], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ev := calendar.RawEvent{
			Timestamp: ts,
			Title:     fromMissing(rec[1]),
			Country:   fromMissing(rec[2]),
			Impact:    calendar.Impact(fromMissing(rec[3])),
			Currency:  fromMissing(rec[4]),
			Actual:    fromMissing(rec[5]),
			Forecast:  fromMissing(rec[6]),
			Previous:  fromMissing(rec[7]),
			Category:  calendar.CategoryEconomic,
		}
		if ev.Impact == calendar.ImpactHoliday {
			ev.Category = calendar.CategoryHoliday
		}
		events = append(events, ev)
	}
	return events, nil
}

// MergeFile merges events into the CSV at path, creating it if needed.
// Rows already in the file win over incoming duplicates; the file is
// rewritten sorted by time. It returns the number of rows added.
func MergeFile(path string, events []calendar.RawEvent) (int, error) {
	var existing []calendar.RawEvent
	f, err := os.Open(path)
	switch {
	case err == nil:
		existing, err = Read(f)
		f.Close()
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return 0, fmt.Errorf("open %s: %w", path, err)
	}

	agg := dedup.NewAggregator(nil)
	agg.Ingest(existing)
	added := agg.Ingest(events)

	merged := agg.Events()
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := Write(out, merged); err != nil {
		out.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("rename %s: %w", tmp, err)
	}

	log.Info().
		Str("component", "export").
		Str("path", path).
		Int("existing", len(existing)).
		Int("added", len(added.Accepted)).
		Int("total", len(merged)).
		Msg("CSV updated")

	return len(added.Accepted), nil
}
