package calendar

import (
	"strings"
	"time"
)

// IdentityKey identifies one logical calendar event across chunks and pages.
type IdentityKey string

// KeyOf derives the identity key of an event.
//
// The key is built from (timestamp, normalized title, country). Upstream has been
// seen to emit the same release under two different row ids, so SourceID is only
// used when the tuple is unusable: no title or no timestamp.
func KeyOf(e RawEvent) IdentityKey {
	title := NormalizeTitle(e.Title)
	if title == "" || e.Timestamp.IsZero() {
		if e.SourceID != "" {
			return IdentityKey("id:" + e.SourceID)
		}
	}

	origin := strings.ToUpper(strings.TrimSpace(e.Country))
	if origin == "" {
		origin = strings.ToUpper(strings.TrimSpace(e.Currency))
	}

	var b strings.Builder
	b.Grow(len(title) + len(origin) + 32)
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339))
	b.WriteByte('|')
	b.WriteString(title)
	b.WriteByte('|')
	b.WriteString(origin)
	return IdentityKey(b.String())
}

// NormalizeTitle lower-cases a title, replaces non-breaking spaces and
// collapses whitespace runs.
func NormalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\u00a0", " ")
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
