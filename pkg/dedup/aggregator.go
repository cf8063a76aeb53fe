// Package dedup merges chunk results into one duplicate-free event list.
package dedup

import (
	"sync"

	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for aggregation.
var (
	eventsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calendar_events_accepted_total",
		Help: "Total events accepted after deduplication",
	})

	eventsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calendar_events_duplicate_total",
		Help: "Total events discarded as duplicates",
	})
)

// KeyFunc derives the identity key of an event.
type KeyFunc func(calendar.RawEvent) calendar.IdentityKey

// SeenSet is the set of identity keys accepted during one retrieval.
// It is not safe for concurrent use; Aggregator serializes access to it.
type SeenSet struct {
	keys map[calendar.IdentityKey]struct{}
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{keys: make(map[calendar.IdentityKey]struct{})}
}

// Contains reports whether k has been accepted.
func (s *SeenSet) Contains(k calendar.IdentityKey) bool {
	_, ok := s.keys[k]
	return ok
}

// Len returns the number of distinct keys.
func (s *SeenSet) Len() int {
	return len(s.keys)
}

// add inserts k and reports whether it was new.
func (s *SeenSet) add(k calendar.IdentityKey) bool {
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	return true
}

// IngestResult is the outcome of one Ingest call.
type IngestResult struct {
	Accepted       []calendar.RawEvent
	DuplicateCount int
}

// Ingest appends to Accepted every event whose key is not in seen, in input
// order, and records its key. Events already in seen, or repeated within
// events, are counted in DuplicateCount and dropped.
// A nil key uses calendar.KeyOf.
func Ingest(seen *SeenSet, events []calendar.RawEvent, key KeyFunc) IngestResult {
	if key == nil {
		key = calendar.KeyOf
	}

	res := IngestResult{Accepted: make([]calendar.RawEvent, 0, len(events))}
	for _, e := range events {
		if !seen.add(key(e)) {
			res.DuplicateCount++
			continue
		}
		res.Accepted = append(res.Accepted, e)
	}
	return res
}

// Split separates economic events from holidays, preserving relative order.
func Split(events []calendar.RawEvent) (economic, holidays []calendar.RawEvent) {
	economic = make([]calendar.RawEvent, 0, len(events))
	for _, e := range events {
		if e.IsHoliday() {
			holidays = append(holidays, e)
			continue
		}
		economic = append(economic, e)
	}
	return economic, holidays
}

// Aggregator owns the SeenSet of one retrieval and the merged event list.
// Ingest calls are serialized so chunks fetched in parallel can be merged
// from any goroutine, provided the caller feeds them in chunk order.
type Aggregator struct {
	mu         sync.Mutex
	seen       *SeenSet
	key        KeyFunc
	events     []calendar.RawEvent
	duplicates int
	extracted  int
}

// NewAggregator returns an Aggregator with a fresh SeenSet.
func NewAggregator(key KeyFunc) *Aggregator {
	if key == nil {
		key = calendar.KeyOf
	}
	return &Aggregator{seen: NewSeenSet(), key: key}
}

// Ingest merges one chunk's events and returns what was accepted from it.
func (a *Aggregator) Ingest(events []calendar.RawEvent) IngestResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := Ingest(a.seen, events, a.key)
	a.events = append(a.events, res.Accepted...)
	a.duplicates += res.DuplicateCount
	a.extracted += len(events)

	eventsAcceptedTotal.Add(float64(len(res.Accepted)))
	eventsDuplicateTotal.Add(float64(res.DuplicateCount))
	return res
}

// Events returns a copy of all accepted events in acceptance order.
func (a *Aggregator) Events() []calendar.RawEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]calendar.RawEvent, len(a.events))
	copy(out, a.events)
	return out
}

// Stats returns the running totals: extracted (pre-dedup), accepted, duplicates.
func (a *Aggregator) Stats() (extracted, accepted, duplicates int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.extracted, len(a.events), a.duplicates
}
