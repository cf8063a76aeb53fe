package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/econ-calendar-client/internal/testutil"
	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
	"github.com/Sternrassler/econ-calendar-client/pkg/retrieval"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-from", "2025-12-02", "-to", "2025-12-20", "-days-per-chunk", "2", "-holidays=false"})
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if opts.from != "2025-12-02" || opts.to != "2025-12-20" || opts.daysPerChunk != 2 || opts.holidays {
		t.Errorf("options = %+v", opts)
	}

	if _, err := parseFlags([]string{"-days-per-chunk", "-1"}); err == nil {
		t.Error("expected error for negative chunk width")
	}
}

func TestExportRows_LeavesResultIntact(t *testing.T) {
	day := time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)
	events := make([]calendar.RawEvent, 2, 8) // spare capacity, as dedup.Split leaves it
	events[0] = calendar.RawEvent{Title: "CPI", Timestamp: day.Add(8 * time.Hour)}
	events[1] = calendar.RawEvent{Title: "GDP", Timestamp: day.Add(14 * time.Hour)}
	holiday := calendar.RawEvent{Title: "Bank Holiday", Timestamp: day.Add(12 * time.Hour), Category: calendar.CategoryHoliday}
	res := &retrieval.Result{Events: events, Holidays: []calendar.RawEvent{holiday}}

	rows := exportRows(res, true)

	if len(rows) != 3 || rows[1].Title != "Bank Holiday" {
		t.Fatalf("rows = %+v, want holiday in the middle", rows)
	}
	if res.Events[0].Title != "CPI" || res.Events[1].Title != "GDP" {
		t.Errorf("res.Events reordered: %q, %q", res.Events[0].Title, res.Events[1].Title)
	}
	if spare := res.Events[:3]; spare[2].Title != "" {
		t.Errorf("res.Events backing array written: %q", spare[2].Title)
	}

	if rows := exportRows(res, false); len(rows) != 2 {
		t.Errorf("rows without holidays = %d, want 2", len(rows))
	}
}

func TestRun_WritesCSV(t *testing.T) {
	mock := testutil.NewMockCalendar()
	defer mock.Close()

	start := time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)
	mock.AddEvents(testutil.GenerateDay(start, 4, 100)...)
	mock.AddEvents(testutil.MockEvent{
		ID: 500, Time: start.AddDate(0, 0, 1), AllDay: true, Holiday: true,
		Title: "Japan - Bank Holiday", Country: "Japan", Currency: "JPY",
	})

	t.Setenv("CALENDAR_URL", mock.DataURL())
	t.Setenv("CALENDAR_LANDING_URL", mock.LandingURL())
	t.Setenv("CALENDAR_RATE_RPS", "1000")
	t.Setenv("CALENDAR_REDIS_ADDR", "")

	out := filepath.Join(t.TempDir(), "events.csv")
	args := []string{"-from", "2025-12-02", "-to", "2025-12-03", "-out", out}
	if err := run(args); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 6 {
		t.Fatalf("lines = %d, want header + 5:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[5], "Japan - Bank Holiday") || !strings.Contains(lines[5], "Holiday") {
		t.Errorf("last line = %q", lines[5])
	}

	// a second run adds nothing
	if err := run(args); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	again, _ := os.ReadFile(out)
	if string(again) != string(data) {
		t.Error("re-running changed the file")
	}
}
