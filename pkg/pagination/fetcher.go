package pagination

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
	"github.com/Sternrassler/econ-calendar-client/pkg/client"
	"github.com/Sternrassler/econ-calendar-client/pkg/dedup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for chunk pagination.
var (
	pagesPerChunk = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "calendar_pages_per_chunk",
		Help:    "Number of page requests issued per chunk",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8},
	})

	capSuspectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calendar_upstream_cap_suspected_total",
		Help: "Chunks whose first page reached the suspected upstream result cap",
	})

	pageStopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_page_stops_total",
		Help: "Chunk pagination stops by reason",
	}, []string{"reason"})
)

const (
	// DefaultMaxPagesPerChunk is the follow-up budget after the initial request.
	DefaultMaxPagesPerChunk = 3

	// DefaultUpstreamCap is the observed per-response result cap.
	DefaultUpstreamCap = 200

	// DefaultTimeFilter asks for the full day, not only upcoming events.
	DefaultTimeFilter = "timeRemain"
)

// Config holds fetcher configuration.
type Config struct {
	// MaxPagesPerChunk is the number of cursor follow-ups after the initial request.
	MaxPagesPerChunk int

	// UpstreamCap is the first-page size at which truncation is suspected.
	UpstreamCap int

	// Retry applies to every page request.
	Retry client.RetryConfig

	// Key derives the identity used to tell new events from repeats. Nil means calendar.KeyOf.
	Key dedup.KeyFunc
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		MaxPagesPerChunk: DefaultMaxPagesPerChunk,
		UpstreamCap:      DefaultUpstreamCap,
		Retry:            client.DefaultRetryConfig(),
	}
}

// Result is the outcome of fetching one chunk.
type Result struct {
	// Events are unique within the chunk, in the order first received.
	Events []calendar.RawEvent

	// Exhausted is false when the page budget ran out while pages still added events.
	Exhausted bool

	// StopReason tells which rule ended pagination.
	StopReason StopReason

	// Pages is the number of successful page requests.
	Pages int

	// Attempts is the number of HTTP attempts, retries included.
	Attempts int

	// FirstPageSize is the number of events on the initial page.
	FirstPageSize int

	// Repeated counts events that came back on a later page of the same chunk.
	Repeated int

	// CapSuspected is set when the first page reached UpstreamCap.
	CapSuspected bool
}

// Fetcher retrieves the events of one chunk. It is safe for concurrent use.
type Fetcher struct {
	transport Transport
	parser    Parser
	config    Config
	policy    StopPolicy
	logger    zerolog.Logger
}

// NewFetcher creates a chunk fetcher.
func NewFetcher(transport Transport, parser Parser, config Config) *Fetcher {
	if config.MaxPagesPerChunk < 0 {
		config.MaxPagesPerChunk = 0
	}
	if config.UpstreamCap <= 0 {
		config.UpstreamCap = DefaultUpstreamCap
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = client.DefaultRetryConfig()
	}
	if config.Key == nil {
		config.Key = calendar.KeyOf
	}

	return &Fetcher{
		transport: transport,
		parser:    parser,
		config:    config,
		policy:    StopPolicy{MaxFollowUps: config.MaxPagesPerChunk},
		logger:    log.With().Str("component", "chunk-fetcher").Logger(),
	}
}

// Fetch enumerates one chunk. On error the returned Result still carries
// the attempts spent and any events collected before the failing page.
func (f *Fetcher) Fetch(ctx context.Context, ch calendar.Chunk, filters calendar.Filters, cookies []*http.Cookie) (Result, error) {
	logger := f.logger.With().
		Int("chunk", ch.Index).
		Str("from", ch.From.Format(calendar.DateLayout)).
		Str("to", ch.To.Format(calendar.DateLayout)).
		Logger()

	seen := dedup.NewSeenSet()
	var res Result
	var cursor []string

	for page := 1; ; page++ {
		form := BuildForm(ch, filters, cursor)

		var events []calendar.RawEvent
		attempts, err := client.Retry(ctx, f.config.Retry, logger, func(ctx context.Context) error {
			body, err := f.transport.Post(ctx, form, cookies)
			if err != nil {
				return err
			}
			parsed, err := f.parser.Parse(body, ch.From)
			if err != nil {
				return client.NewParseError(err)
			}
			events = parsed
			return nil
		})
		res.Attempts += attempts
		if err != nil {
			pagesPerChunk.Observe(float64(res.Pages))
			return res, fmt.Errorf("fetch chunk %d page %d: %w", ch.Index, page, err)
		}
		res.Pages++

		ingest := dedup.Ingest(seen, events, f.config.Key)
		res.Events = append(res.Events, ingest.Accepted...)
		res.Repeated += ingest.DuplicateCount

		if page == 1 {
			res.FirstPageSize = len(events)
			if len(events) >= f.config.UpstreamCap {
				res.CapSuspected = true
				capSuspectedTotal.Inc()
				logger.Warn().
					Int("first_page_size", len(events)).
					Int("upstream_cap", f.config.UpstreamCap).
					Msg("First page reached upstream cap - results may be truncated")
			}
		}

		cursor = CursorIDs(res.Events)

		logger.Debug().
			Int("page", page).
			Int("extracted", len(events)).
			Int("new", len(ingest.Accepted)).
			Int("repeated", ingest.DuplicateCount).
			Msg("Page fetched")

		if reason := f.policy.Next(page, len(ingest.Accepted), len(cursor)); reason != StopNone {
			res.StopReason = reason
			res.Exhausted = reason.Exhausted()
			break
		}

		if err := ctx.Err(); err != nil {
			pagesPerChunk.Observe(float64(res.Pages))
			return res, fmt.Errorf("fetch chunk %d: %w", ch.Index, err)
		}
	}

	pagesPerChunk.Observe(float64(res.Pages))
	pageStopsTotal.WithLabelValues(string(res.StopReason)).Inc()

	if !res.Exhausted {
		logger.Warn().
			Int("pages", res.Pages).
			Int("events", len(res.Events)).
			Msg("Page budget spent while pages still added events - chunk may be incomplete")
	}

	return res, nil
}

// CursorIDs returns the source ids usable as pagination cursor, in order.
func CursorIDs(events []calendar.RawEvent) []string {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.SourceID != "" {
			ids = append(ids, ev.SourceID)
		}
	}
	return ids
}

// BuildForm assembles the form for one page. A non-empty cursor turns the
// request into a follow-up (limit_from=1 plus pids[]).
func BuildForm(ch calendar.Chunk, filters calendar.Filters, cursor []string) url.Values {
	form := url.Values{}

	countries := filters.Countries
	if len(countries) == 0 {
		countries = calendar.DefaultCountries
	}
	for _, c := range countries {
		form.Add("country[]", strconv.Itoa(c))
	}
	for _, c := range filters.Categories {
		form.Add("category[]", c)
	}
	for _, i := range filters.Importance {
		form.Add("importance[]", strconv.Itoa(i))
	}

	form.Set("dateFrom", ch.From.Format(calendar.DateLayout))
	form.Set("dateTo", ch.To.Format(calendar.DateLayout))

	tz := filters.TimeZone
	if tz == 0 {
		tz = calendar.DefaultTimeZone
	}
	form.Set("timeZone", strconv.Itoa(tz))

	timeFilter := filters.TimeFilter
	if timeFilter == "" {
		timeFilter = DefaultTimeFilter
	}
	form.Set("timeFilter", timeFilter)
	form.Set("currentTab", "custom")

	if len(cursor) == 0 {
		form.Set("limit_from", "0")
		return form
	}
	form.Set("limit_from", "1")
	for _, id := range cursor {
		form.Add("pids[]", "event-"+id+":")
	}
	return form
}
