package pagination

// StopReason explains why pagination of a chunk ended.
type StopReason string

const (
	// StopNone means another page should be requested.
	StopNone StopReason = ""

	// StopNoNewEvents means the last page added nothing new to the chunk.
	StopNoNewEvents StopReason = "no_new_events"

	// StopNoCursor means no collected event has an id usable as cursor.
	StopNoCursor StopReason = "no_cursor"

	// StopPageBudget means the follow-up budget is spent.
	StopPageBudget StopReason = "page_budget"
)

// Exhausted reports whether the chunk is known to be fully enumerated.
func (r StopReason) Exhausted() bool {
	return r == StopNoNewEvents || r == StopNoCursor
}

// StopPolicy decides after each page whether to request another one.
type StopPolicy struct {
	// MaxFollowUps is the number of cursor requests allowed after the initial one.
	MaxFollowUps int
}

// Next is called after page number pagesDone (1-based) added newOnPage events
// and the chunk holds cursorSize events with a source id.
func (p StopPolicy) Next(pagesDone, newOnPage, cursorSize int) StopReason {
	switch {
	case newOnPage == 0:
		return StopNoNewEvents
	case cursorSize == 0:
		return StopNoCursor
	case pagesDone >= 1+p.MaxFollowUps:
		return StopPageBudget
	}
	return StopNone
}
