// Package testutil provides testing utilities for the economic calendar client.
package testutil

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Paths served by MockCalendar.
const (
	LandingPath   = "/economic-calendar/"
	DataPath      = "/economic-calendar/Service/getCalendarFilteredData"
	SessionCookie = "PHPSESSID"
)

// DefaultMockCap is the number of rows returned per page.
const DefaultMockCap = 200

// MockResponse defines a canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockEvent is one calendar row served by MockCalendar.
type MockEvent struct {
	ID       int
	Time     time.Time
	AllDay   bool
	Title    string
	Country  string
	Currency string

	// Bulls is the impact level 1..3. Ignored for holidays.
	Bulls   int
	Holiday bool

	Actual   string
	Forecast string
	Previous string
}

func (e MockEvent) day() time.Time {
	y, m, d := e.Time.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MockCalendar is a configurable mock of the calendar endpoint. It serves a
// landing page that sets session cookies and a data endpoint that answers
// form queries with a {"data": "<tr>..."} envelope, paginated by pids[].
type MockCalendar struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	events   []MockEvent
	failures map[string][]MockResponse
	cap      int

	requireSession bool

	// Tracking
	RequestCount      int
	PageRequests      int
	BootstrapCount    int
	LastForm          map[string][]string
	LastRequestHeader http.Header
}

// NewMockCalendar creates a new mock calendar server.
func NewMockCalendar() *MockCalendar {
	mock := &MockCalendar{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		failures: make(map[string][]MockResponse),
		cap:      DefaultMockCap,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		switch r.URL.Path {
		case LandingPath:
			mock.landingHandler(w, r)
		case DataPath:
			mock.dataHandler(w, r)
		default:
			http.NotFound(w, r)
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCalendar) URL() string {
	return m.server.URL
}

// DataURL returns the URL of the data endpoint.
func (m *MockCalendar) DataURL() string {
	return m.server.URL + DataPath
}

// LandingURL returns the URL of the landing page.
func (m *MockCalendar) LandingURL() string {
	return m.server.URL + LandingPath
}

// Close shuts down the mock server.
func (m *MockCalendar) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCalendar) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PageRequests = 0
	m.BootstrapCount = 0
	m.LastForm = nil
	m.LastRequestHeader = nil
}

// SetCap sets the number of rows per page.
func (m *MockCalendar) SetCap(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cap = n
}

// AddEvents adds rows to the served dataset.
func (m *MockCalendar) AddEvents(events ...MockEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCalendar) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockCalendar) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetRequireSession makes data requests without the session cookie fail with 403.
func (m *MockCalendar) SetRequireSession(require bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireSession = require
}

// FailNext queues responses for the next data requests whose dateFrom is
// day (YYYY-MM-DD). Each queued response is used once.
func (m *MockCalendar) FailNext(day string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[day] = append(m.failures[day], responses...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCalendar) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPageRequests returns the number of data endpoint requests.
func (m *MockCalendar) GetPageRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PageRequests
}

// GetBootstrapCount returns the number of landing page requests.
func (m *MockCalendar) GetBootstrapCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.BootstrapCount
}

// GetLastForm returns the form of the last data request.
func (m *MockCalendar) GetLastForm() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastForm
}

func (m *MockCalendar) landingHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.BootstrapCount++
	n := m.BootstrapCount
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: fmt.Sprintf("mock-session-%d", n), Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: "geoC", Value: "DE", Path: "/"})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("<html><body><table id=\"economicCalendarData\"></table></body></html>"))
}

func (m *MockCalendar) dataHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.PageRequests++
	m.LastForm = r.PostForm
	requireSession := m.requireSession
	var queued *MockResponse
	day := r.PostForm.Get("dateFrom")
	if q := m.failures[day]; len(q) > 0 {
		queued = &q[0]
		m.failures[day] = q[1:]
	}
	m.mu.Unlock()

	if queued != nil {
		writeResponse(w, *queued)
		return
	}
	if requireSession {
		if c, err := r.Cookie(SessionCookie); err != nil || c.Value == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	from, err1 := time.Parse("2006-01-02", r.PostForm.Get("dateFrom"))
	to, err2 := time.Parse("2006-01-02", r.PostForm.Get("dateTo"))
	if err1 != nil || err2 != nil {
		http.Error(w, "bad date", http.StatusBadRequest)
		return
	}

	page := m.page(from, to, r.PostForm["pids[]"])

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]any{
		"data":                renderRows(page),
		"rows_num":            len(page),
		"bind_scroll_handler": len(page) > 0,
	})
}

// page returns the rows of [from, to] after the last cursor id, at most cap.
func (m *MockCalendar) page(from, to time.Time, pids []string) []MockEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var window []MockEvent
	for _, e := range m.events {
		d := e.day()
		if d.Before(from) || d.After(to) {
			continue
		}
		window = append(window, e)
	}
	sort.SliceStable(window, func(i, j int) bool {
		if !window[i].Time.Equal(window[j].Time) {
			return window[i].Time.Before(window[j].Time)
		}
		return window[i].ID < window[j].ID
	})

	start := 0
	if len(pids) > 0 {
		last := strings.TrimSuffix(strings.TrimPrefix(pids[len(pids)-1], "event-"), ":")
		start = len(window)
		for i, e := range window {
			if strconv.Itoa(e.ID) == last {
				start = i + 1
				break
			}
		}
	}

	end := start + m.cap
	if end > len(window) {
		end = len(window)
	}
	return window[start:end]
}

func renderRows(events []MockEvent) string {
	var b strings.Builder
	var current time.Time
	for _, e := range events {
		if d := e.day(); !d.Equal(current) {
			current = d
			fmt.Fprintf(&b, `<tr><td colspan="9" class="theDay" id="theDay%d">%s</td></tr>`,
				d.Unix(), d.Format("Monday, January 2, 2006"))
		}

		if e.AllDay || e.Holiday {
			fmt.Fprintf(&b, `<tr id="eventRowId_%d" class="js-event-item">`, e.ID)
		} else {
			fmt.Fprintf(&b, `<tr id="eventRowId_%d" class="js-event-item" data-event-datetime="%s">`,
				e.ID, e.Time.UTC().Format("2006/01/02 15:04:05"))
		}
		fmt.Fprintf(&b, `<td class="left flagCur noWrap"><span title="%s"></span>&nbsp;%s</td>`,
			html.EscapeString(e.Country), html.EscapeString(e.Currency))
		if e.Holiday {
			b.WriteString(`<td class="left textNum sentiment"><span class="bold">Holiday</span></td>`)
		} else {
			bulls := e.Bulls
			if bulls < 1 || bulls > 3 {
				bulls = 2
			}
			fmt.Fprintf(&b, `<td class="left textNum sentiment" data-img_key="bull%d"></td>`, bulls)
		}
		fmt.Fprintf(&b, `<td class="left event"><a href="/economic-calendar/event-%d">%s</a></td>`,
			e.ID, html.EscapeString(e.Title))
		fmt.Fprintf(&b, `<td class="act" id="eventActual_%d">%s</td>`, e.ID, html.EscapeString(e.Actual))
		fmt.Fprintf(&b, `<td class="fore" id="eventForecast_%d">%s</td>`, e.ID, html.EscapeString(e.Forecast))
		fmt.Fprintf(&b, `<td class="prev" id="eventPrevious_%d">%s</td>`, e.ID, html.EscapeString(e.Previous))
		b.WriteString("</tr>")
	}
	return b.String()
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// GenerateDay returns n timed US events on day, ids starting at firstID,
// spaced ten minutes apart from 00:00 UTC.
func GenerateDay(day time.Time, n, firstID int) []MockEvent {
	y, m, d := day.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	events := make([]MockEvent, 0, n)
	for i := 0; i < n; i++ {
		id := firstID + i
		events = append(events, MockEvent{
			ID:       id,
			Time:     start.Add(time.Duration(i%144) * 10 * time.Minute),
			Title:    fmt.Sprintf("Indicator %d", id),
			Country:  "United States",
			Currency: "USD",
			Bulls:    1 + i%3,
		})
	}
	return events
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       "Too Many Requests",
		Headers: map[string]string{
			"Retry-After": strconv.Itoa(int(retryAfter.Seconds())),
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal Server Error",
	}
}

// NewGatewayTimeoutResponse creates a 504 Gateway Timeout response.
func NewGatewayTimeoutResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusGatewayTimeout,
		Body:       "Gateway Timeout",
	}
}

// NewMalformedResponse creates a 200 response the parser cannot decode.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data": 42}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
