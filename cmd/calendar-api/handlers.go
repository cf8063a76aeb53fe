package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
	"github.com/Sternrassler/econ-calendar-client/pkg/export"
	"github.com/Sternrassler/econ-calendar-client/pkg/logging"
	"github.com/Sternrassler/econ-calendar-client/pkg/retrieval"
	"github.com/redis/go-redis/v9"
)

// Retriever is the part of retrieval.Retriever the handlers use.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

// calendarQuery is the JSON body accepted by POST /calendar.
type calendarQuery struct {
	DateFrom     string   `json:"date_from"`
	DateTo       string   `json:"date_to"`
	DaysPerChunk int      `json:"days_per_chunk"`
	Countries    []int    `json:"countries"`
	Importance   []int    `json:"importance"`
	Categories   []string `json:"categories"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 while the configured Redis is unreachable.
func readyHandler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func calendarHandler(ret Retriever, defaults calendar.Filters) http.HandlerFunc {
	logger := logging.NewLogger("server")

	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseRequest(r, defaults)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := ret.Retrieve(r.Context(), req)
		status, ok := resultStatus(res, err)
		if !ok {
			logger.Warn().Err(err).Str("from", req.From).Str("to", req.To).Msg("Calendar request rejected")
			writeError(w, status, err.Error())
			return
		}

		resp := res.Response()
		if err != nil {
			msg := err.Error()
			if resp.ErrorMessage != nil {
				msg = *resp.ErrorMessage + "; " + msg
			}
			resp.ErrorMessage = &msg
		}
		writeJSON(w, status, resp)
	}
}

// calendarCSVHandler serves events and holidays as one time-ordered CSV.
func calendarCSVHandler(ret Retriever, defaults calendar.Filters) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseRequest(r, defaults)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := ret.Retrieve(r.Context(), req)
		status, ok := resultStatus(res, err)
		if !ok {
			writeError(w, status, err.Error())
			return
		}
		if status != http.StatusOK {
			writeJSON(w, status, res.Response())
			return
		}

		rows := append(append([]calendar.RawEvent{}, res.Events...), res.Holidays...)
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		})

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="economic_events_%s_%s.csv"`, req.From, req.To))
		if res.Partial() {
			w.Header().Set("X-Calendar-Partial", "true")
		}
		if err := export.Write(w, rows); err != nil {
			logger := logging.NewLogger("server")
			logger.Error().Err(err).Msg("Failed to write CSV")
		}
	}
}

// resultStatus maps a Retrieve outcome to an HTTP status. ok is false when
// there is no result to render.
func resultStatus(res *retrieval.Result, err error) (int, bool) {
	switch {
	case errors.Is(err, calendar.ErrInvalidRange), errors.Is(err, calendar.ErrInvalidConfig):
		return http.StatusBadRequest, false
	case res == nil && err != nil:
		return http.StatusInternalServerError, false
	case res.Failed():
		return http.StatusBadGateway, true
	}
	return http.StatusOK, true
}

func parseRequest(r *http.Request, defaults calendar.Filters) (retrieval.Request, error) {
	var q calendarQuery

	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"):
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			return retrieval.Request{}, fmt.Errorf("invalid JSON body: %w", err)
		}
	case r.Method == http.MethodGet || r.Method == http.MethodPost:
		if err := r.ParseForm(); err != nil {
			return retrieval.Request{}, fmt.Errorf("invalid form: %w", err)
		}
		var err error
		if q, err = queryFromForm(r); err != nil {
			return retrieval.Request{}, err
		}
	default:
		return retrieval.Request{}, fmt.Errorf("method %s not allowed", r.Method)
	}

	if q.DateFrom == "" || q.DateTo == "" {
		return retrieval.Request{}, errors.New("date_from and date_to are required (YYYY-MM-DD)")
	}
	if q.DaysPerChunk < 0 {
		return retrieval.Request{}, errors.New("days_per_chunk must be >= 1")
	}
	for _, imp := range q.Importance {
		if imp < 1 || imp > 3 {
			return retrieval.Request{}, fmt.Errorf("importance must be 1..3, got %d", imp)
		}
	}

	filters := defaults
	if len(q.Countries) > 0 {
		filters.Countries = q.Countries
	}
	if len(q.Importance) > 0 {
		filters.Importance = q.Importance
	}
	if len(q.Categories) > 0 {
		filters.Categories = q.Categories
	}

	return retrieval.Request{
		From:         q.DateFrom,
		To:           q.DateTo,
		DaysPerChunk: q.DaysPerChunk,
		Filters:      filters,
	}, nil
}

func queryFromForm(r *http.Request) (calendarQuery, error) {
	q := calendarQuery{
		DateFrom:   r.Form.Get("date_from"),
		DateTo:     r.Form.Get("date_to"),
		Categories: splitList(r.Form["category"]),
	}

	if v := r.Form.Get("days_per_chunk"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, fmt.Errorf("days_per_chunk must be a positive integer, got %q", v)
		}
		q.DaysPerChunk = n
	}

	var err error
	if q.Countries, err = intList("country", r.Form["country"]); err != nil {
		return q, err
	}
	if q.Importance, err = intList("importance", r.Form["importance"]); err != nil {
		return q, err
	}
	return q, nil
}

// splitList accepts both repeated parameters and comma-separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intList(name string, values []string) ([]int, error) {
	var out []int
	for _, part := range splitList(values) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%s must be integers, got %q", name, part)
		}
		out = append(out, n)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := logging.NewLogger("server")
		logger.Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
