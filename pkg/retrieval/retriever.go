package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
	"github.com/Sternrassler/econ-calendar-client/pkg/chunk"
	"github.com/Sternrassler/econ-calendar-client/pkg/dedup"
	"github.com/Sternrassler/econ-calendar-client/pkg/pagination"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for retrievals.
var (
	chunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_chunks_total",
		Help: "Total chunks processed by outcome",
	}, []string{"outcome"})

	chunkFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calendar_chunk_failures_total",
		Help: "Total chunks that failed after all retries",
	})

	eventsExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calendar_events_extracted_total",
		Help: "Total events extracted from chunks before cross-chunk deduplication",
	})

	retrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_retrievals_total",
		Help: "Total retrievals by status",
	}, []string{"status"})

	retrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "calendar_retrieval_duration_seconds",
		Help:    "Retrieval duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)

// DefaultMaxRangeDays bounds one retrieval to roughly a year of daily chunks.
const DefaultMaxRangeDays = 366

// State of a retrieval.
type State string

const (
	StatePlanning    State = "PLANNING"
	StateFetching    State = "FETCHING"
	StateAggregating State = "AGGREGATING"
	StateChunkFailed State = "CHUNK_FAILED"
	StateDone        State = "DONE"
	StateCancelled   State = "CANCELLED"
)

// ChunkFetcher fetches all events of one chunk.
type ChunkFetcher interface {
	Fetch(ctx context.Context, ch calendar.Chunk, filters calendar.Filters, cookies []*http.Cookie) (pagination.Result, error)
}

// Config holds orchestrator settings.
type Config struct {
	// DaysPerChunk is the default chunk width.
	DaysPerChunk int

	// Concurrency is the number of chunk fetches in flight. 1 fetches sequentially.
	Concurrency int

	// ChunkTimeout bounds one chunk fetch, all pages and retries included.
	// Zero derives it from RequestTimeout, RetryAttempts and MaxPagesPerChunk.
	ChunkTimeout time.Duration

	RequestTimeout   time.Duration
	RetryAttempts    int
	MaxPagesPerChunk int

	// MaxRangeDays rejects longer ranges with calendar.ErrInvalidRange. 0 means no limit.
	MaxRangeDays int

	// Key is the identity used for cross-chunk deduplication. Nil means calendar.KeyOf.
	Key dedup.KeyFunc
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		DaysPerChunk:     chunk.DefaultDaysPerChunk,
		Concurrency:      1,
		RequestTimeout:   30 * time.Second,
		RetryAttempts:    3,
		MaxPagesPerChunk: pagination.DefaultMaxPagesPerChunk,
		MaxRangeDays:     DefaultMaxRangeDays,
	}
}

// EffectiveChunkTimeout returns ChunkTimeout or the value derived from the request budget.
func (c Config) EffectiveChunkTimeout() time.Duration {
	if c.ChunkTimeout > 0 {
		return c.ChunkTimeout
	}
	attempts := c.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	pages := c.MaxPagesPerChunk
	if pages < 0 {
		pages = 0
	}
	return c.RequestTimeout * time.Duration(attempts*(pages+1))
}

// Request describes one retrieval.
type Request struct {
	// From and To are YYYY-MM-DD, inclusive. Ignored when Range is set.
	From string
	To   string

	Range calendar.DateRange

	Filters calendar.Filters

	// DaysPerChunk overrides Config.DaysPerChunk when non-zero.
	DaysPerChunk int

	// Progress, if set, is called once per chunk in chunk order.
	Progress ProgressFunc
}

func (r Request) dateRange() (calendar.DateRange, error) {
	if !r.Range.IsZero() {
		return r.Range, nil
	}
	return calendar.ParseDateRange(r.From, r.To)
}

// Retriever drives planning, fetching and aggregation of a date range.
type Retriever struct {
	fetcher ChunkFetcher
	cookies pagination.CookieSource
	config  Config
	logger  zerolog.Logger
}

// New creates a retriever. cookies may be nil.
func New(fetcher ChunkFetcher, cookies pagination.CookieSource, config Config) *Retriever {
	if config.DaysPerChunk == 0 {
		config.DaysPerChunk = chunk.DefaultDaysPerChunk
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	return &Retriever{
		fetcher: fetcher,
		cookies: cookies,
		config:  config,
		logger:  log.With().Str("component", "retriever").Logger(),
	}
}

type slot struct {
	res     pagination.Result
	err     error
	skipped bool
	done    chan struct{}
}

// Retrieve fetches every chunk of the requested range and merges the results.
//
// Planning errors (calendar.ErrInvalidRange, calendar.ErrInvalidConfig) are
// returned before any network call. Failed chunks are recorded in
// Result.Errors and do not fail the call. If ctx is cancelled, the chunks
// aggregated so far are returned together with ctx.Err().
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	id := uuid.NewString()
	logger := r.logger.With().Str("retrieval_id", id).Logger()

	logger.Debug().Str("state", string(StatePlanning)).Msg("Retrieval state")

	rng, err := req.dateRange()
	if err == nil && r.config.MaxRangeDays > 0 && rng.Days() > r.config.MaxRangeDays {
		err = fmt.Errorf("%w: %s spans %d days, limit is %d", calendar.ErrInvalidRange, rng, rng.Days(), r.config.MaxRangeDays)
	}
	if err != nil {
		retrievalsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("plan retrieval: %w", err)
	}
	days := req.DaysPerChunk
	if days == 0 {
		days = r.config.DaysPerChunk
	}
	chunks, err := chunk.Plan(rng, days)
	if err != nil {
		retrievalsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("plan retrieval: %w", err)
	}

	result := &Result{
		RetrievalID: id,
		Range:       rng,
		ChunkCount:  len(chunks),
		State:       StatePlanning,
	}

	logger.Info().
		Str("from", rng.From().Format(calendar.DateLayout)).
		Str("to", rng.To().Format(calendar.DateLayout)).
		Int("days", rng.Days()).
		Int("days_per_chunk", days).
		Int("chunks", len(chunks)).
		Int("concurrency", r.config.Concurrency).
		Msg("Starting retrieval")

	cookies := r.sessionCookies(ctx, logger)

	slots := r.dispatch(ctx, chunks, req.Filters, cookies, logger)
	defer func() {
		// drain in-flight fetches before returning
		for i := range slots {
			<-slots[i].done
		}
	}()

	agg := dedup.NewAggregator(r.config.Key)
	cancelled := false

	for i, ch := range chunks {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		<-slots[i].done
		s := &slots[i]
		if s.skipped || (s.err != nil && ctx.Err() != nil) {
			cancelled = true
			break
		}

		report := ChunkReport{
			Index:        ch.Index,
			From:         ch.From.Format(calendar.DateLayout),
			To:           ch.To.Format(calendar.DateLayout),
			Pages:        s.res.Pages,
			Attempts:     s.res.Attempts,
			Exhausted:    s.res.Exhausted,
			StopReason:   s.res.StopReason,
			CapSuspected: s.res.CapSuspected,
		}

		if s.err != nil {
			result.State = StateChunkFailed
			ce := &ChunkError{Index: ch.Index, From: ch.From, To: ch.To, Attempts: s.res.Attempts, Err: s.err}
			result.Errors = append(result.Errors, ce)
			report.Outcome = OutcomeFailed
			report.Error = ce.Error()

			chunkFailuresTotal.Inc()
			logger.Error().
				Err(s.err).
				Str("state", string(StateChunkFailed)).
				Int("chunk", ch.Index).
				Str("from", report.From).
				Str("to", report.To).
				Int("attempts", s.res.Attempts).
				Msg("Chunk failed - continuing without its events")
		} else {
			result.State = StateAggregating
			ingest := agg.Ingest(s.res.Events)
			report.Extracted = len(s.res.Events)
			report.Repeated = s.res.Repeated
			report.New = len(ingest.Accepted)
			report.Duplicates = ingest.DuplicateCount
			report.Outcome = OutcomeComplete
			if !s.res.Exhausted {
				report.Outcome = OutcomeIncomplete
			}
			eventsExtractedTotal.Add(float64(report.Extracted))

			logger.Info().
				Str("state", string(StateAggregating)).
				Int("chunk", ch.Index).
				Str("from", report.From).
				Str("to", report.To).
				Int("extracted", report.Extracted).
				Int("repeated", report.Repeated).
				Int("new", report.New).
				Int("duplicates", report.Duplicates).
				Int("pages", report.Pages).
				Bool("exhausted", report.Exhausted).
				Msg("Chunk aggregated")
		}

		// release the chunk's events; the aggregator holds the accepted copies
		s.res.Events = nil

		chunksTotal.WithLabelValues(string(report.Outcome)).Inc()
		result.Chunks = append(result.Chunks, report)
		if req.Progress != nil {
			req.Progress(report)
		}
	}

	events := agg.Events()
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	result.Events, result.Holidays = dedup.Split(events)
	_, _, result.DuplicateCount = agg.Stats()
	result.Duration = time.Since(start)
	retrievalDuration.Observe(result.Duration.Seconds())

	if cancelled {
		result.State = StateCancelled
		retrievalsTotal.WithLabelValues("cancelled").Inc()
		logger.Warn().
			Str("state", string(StateCancelled)).
			Int("chunks_aggregated", len(result.Chunks)).
			Int("chunks_planned", len(chunks)).
			Msg("Retrieval cancelled - returning partial result")
		return result, ctx.Err()
	}

	result.State = StateDone
	status := "complete"
	switch {
	case result.Failed():
		status = "failed"
	case result.Partial():
		status = "partial"
	}
	retrievalsTotal.WithLabelValues(status).Inc()

	logger.Info().
		Str("state", string(StateDone)).
		Int("events", len(result.Events)).
		Int("holidays", len(result.Holidays)).
		Int("duplicates", result.DuplicateCount).
		Int("failed_chunks", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Retrieval complete")

	return result, nil
}

// dispatch starts chunk fetches with at most Concurrency in flight. Each
// slot's done channel is closed when its fetch finished or was skipped.
func (r *Retriever) dispatch(ctx context.Context, chunks []calendar.Chunk, filters calendar.Filters, cookies []*http.Cookie, logger zerolog.Logger) []slot {
	slots := make([]slot, len(chunks))
	for i := range slots {
		slots[i].done = make(chan struct{})
	}

	logger.Debug().Str("state", string(StateFetching)).Msg("Retrieval state")

	timeout := r.config.EffectiveChunkTimeout()
	var g errgroup.Group
	g.SetLimit(r.config.Concurrency)

	go func() {
		for i := range chunks {
			i := i
			g.Go(func() error {
				s := &slots[i]
				defer close(s.done)
				if ctx.Err() != nil {
					s.skipped = true
					return nil
				}
				chunkCtx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				s.res, s.err = r.fetcher.Fetch(chunkCtx, chunks[i], filters, cookies)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return slots
}

func (r *Retriever) sessionCookies(ctx context.Context, logger zerolog.Logger) []*http.Cookie {
	if r.cookies == nil {
		return nil
	}
	cookies, err := r.cookies.Cookies(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("No session cookies - requests go out without a session")
		return nil
	}
	return cookies
}
