package pagination

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
)

// Transport sends one form-encoded calendar query.
type Transport interface {
	Post(ctx context.Context, form url.Values, cookies []*http.Cookie) ([]byte, error)
}

// Parser decodes a response body into events. reference is the first day of
// the chunk, used for rows without their own date.
type Parser interface {
	Parse(raw []byte, reference time.Time) ([]calendar.RawEvent, error)
}

// CookieSource supplies the session cookies shared by all requests of a retrieval.
type CookieSource interface {
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}
