package retrieval

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
	"github.com/Sternrassler/econ-calendar-client/pkg/pagination"
)

// ChunkError describes a chunk whose fetch failed after all retries.
// The retrieval continues without that chunk's events.
type ChunkError struct {
	Index    int
	From     time.Time
	To       time.Time
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d (%s..%s) failed after %d attempts: %v",
		e.Index, e.From.Format(calendar.DateLayout), e.To.Format(calendar.DateLayout), e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Outcome of one chunk.
type Outcome string

const (
	OutcomeComplete   Outcome = "complete"
	OutcomeIncomplete Outcome = "incomplete"
	OutcomeFailed     Outcome = "failed"
)

// ChunkReport is the per-chunk progress notification.
type ChunkReport struct {
	Index        int                   `json:"index"`
	From         string                `json:"from"`
	To           string                `json:"to"`
	Outcome      Outcome               `json:"outcome"`
	// Extracted counts the chunk's distinct events; Repeated the rows its
	// later pages returned again. Duplicates are dropped across chunks.
	Extracted    int                   `json:"extracted"`
	Repeated     int                   `json:"repeated"`
	New          int                   `json:"new"`
	Duplicates   int                   `json:"duplicates"`
	Pages        int                   `json:"pages"`
	Attempts     int                   `json:"attempts"`
	Exhausted    bool                  `json:"exhausted"`
	StopReason   pagination.StopReason `json:"stop_reason,omitempty"`
	CapSuspected bool                  `json:"cap_suspected,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// ProgressFunc receives one report per chunk, in chunk order.
type ProgressFunc func(ChunkReport)

// Result is the merged outcome of one retrieval.
type Result struct {
	RetrievalID string
	Range       calendar.DateRange

	// Events are the deduplicated economic events, ascending by time.
	Events []calendar.RawEvent

	// Holidays are the deduplicated holidays, ascending by time.
	Holidays []calendar.RawEvent

	ChunkCount     int
	DuplicateCount int

	// Errors holds one entry per failed chunk, in chunk order.
	Errors []*ChunkError

	Chunks   []ChunkReport
	State    State
	Duration time.Duration
}

// Failed reports whether every planned chunk failed.
func (r *Result) Failed() bool {
	return r.ChunkCount > 0 && len(r.Errors) == r.ChunkCount
}

// Partial reports whether some chunks are missing from the result.
func (r *Result) Partial() bool {
	return len(r.Errors) > 0 || len(r.Chunks) < r.ChunkCount
}

// ErrorMessage summarises chunk failures, or "" when there are none.
func (r *Result) ErrorMessage() string {
	var parts []string
	for _, e := range r.Errors {
		parts = append(parts, e.Error())
	}
	if missing := r.ChunkCount - len(r.Chunks); missing > 0 {
		parts = append(parts, fmt.Sprintf("%d chunks not fetched (cancelled)", missing))
	}
	return strings.Join(parts, "; ")
}

// Response is the JSON shape returned by the HTTP façade.
type Response struct {
	RetrievalID   string              `json:"retrieval_id"`
	Events        []calendar.RawEvent `json:"events"`
	Holidays      []calendar.RawEvent `json:"holidays"`
	TotalEvents   int                 `json:"total_events"`
	TotalHolidays int                 `json:"total_holidays"`
	DateRange     DateRange           `json:"date_range"`
	ErrorMessage  *string             `json:"error_message"`
	Chunks        int                 `json:"chunks"`
	Duplicates    int                 `json:"duplicates"`
	Errors        []ChunkErrorInfo    `json:"errors"`
	ChunkReports  []ChunkReport       `json:"chunk_reports,omitempty"`
}

// DateRange is the JSON form of the requested range.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ChunkErrorInfo is the JSON form of a ChunkError.
type ChunkErrorInfo struct {
	Index    int    `json:"index"`
	From     string `json:"from"`
	To       string `json:"to"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

// Response maps the result to the façade JSON shape.
func (r *Result) Response() Response {
	resp := Response{
		RetrievalID:   r.RetrievalID,
		Events:        r.Events,
		Holidays:      r.Holidays,
		TotalEvents:   len(r.Events),
		TotalHolidays: len(r.Holidays),
		DateRange: DateRange{
			From: r.Range.From().Format(calendar.DateLayout),
			To:   r.Range.To().Format(calendar.DateLayout),
		},
		Chunks:       r.ChunkCount,
		Duplicates:   r.DuplicateCount,
		Errors:       make([]ChunkErrorInfo, 0, len(r.Errors)),
		ChunkReports: r.Chunks,
	}
	if resp.Events == nil {
		resp.Events = []calendar.RawEvent{}
	}
	if resp.Holidays == nil {
		resp.Holidays = []calendar.RawEvent{}
	}
	if msg := r.ErrorMessage(); msg != "" {
		resp.ErrorMessage = &msg
	}
	for _, e := range r.Errors {
		resp.Errors = append(resp.Errors, ChunkErrorInfo{
			Index:    e.Index,
			From:     e.From.Format(calendar.DateLayout),
			To:       e.To.Format(calendar.DateLayout),
			Attempts: e.Attempts,
			Error:    e.Err.Error(),
		})
	}
	return resp
}
