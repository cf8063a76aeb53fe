// Package chunk splits a date range into request-sized chunks.
//
// Upstream truncates every response at an undocumented cap and its cursor
// pagination stops returning new rows after the second page. Narrowing the
// queried window is the only dependable way to stay below the cap, so the
// default chunk is a single day: two-day windows already overflow in busy weeks.
package chunk

import (
	"fmt"

	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
)

// DefaultDaysPerChunk is the default chunk width.
const DefaultDaysPerChunk = 1

// Plan cuts r into consecutive chunks of at most daysPerChunk days.
// Chunks are ordered chronologically, start at Index 0 and cover r without
// gaps or overlaps; len(result) == ceil(r.Days() / daysPerChunk).
func Plan(r calendar.DateRange, daysPerChunk int) ([]calendar.Chunk, error) {
	if daysPerChunk < 1 {
		return nil, fmt.Errorf("%w: days_per_chunk must be >= 1 (got %d)", calendar.ErrInvalidConfig, daysPerChunk)
	}
	if r.IsZero() {
		return nil, fmt.Errorf("%w: empty range", calendar.ErrInvalidRange)
	}
	if r.From().After(r.To()) {
		return nil, fmt.Errorf("%w: %s", calendar.ErrInvalidRange, r)
	}

	total := r.Days()
	if daysPerChunk > total {
		daysPerChunk = total
	}
	chunks := make([]calendar.Chunk, 0, (total+daysPerChunk-1)/daysPerChunk)

	width := daysPerChunk - 1
	for cursor, i := r.From(), 0; !cursor.After(r.To()); i++ {
		end := cursor.AddDate(0, 0, width)
		if end.After(r.To()) {
			end = r.To()
		}
		chunks = append(chunks, calendar.Chunk{From: cursor, To: end, Index: i})
		cursor = end.AddDate(0, 0, 1)
	}

	return chunks, nil
}
