package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
)

// jsonEvent is the loose object shape of JSON-array responses. Field names
// vary between endpoint revisions, hence the alternates.
type jsonEvent struct {
	ID         flexString `json:"id"`
	EventID    flexString `json:"event_id"`
	Title      string     `json:"title"`
	Event      string     `json:"event"`
	Name       string     `json:"name"`
	Timestamp  flexString `json:"timestamp"`
	Date       string     `json:"date"`
	Time       string     `json:"time"`
	CountryID  flexString `json:"countryId"`
	Country    flexString `json:"country"`
	Currency   string     `json:"currency"`
	Code       string     `json:"code"`
	Impact     flexString `json:"impact"`
	Importance flexString `json:"importance"`
	Actual     flexString `json:"actual"`
	Forecast   flexString `json:"forecast"`
	Previous   flexString `json:"previous"`
	URL        string     `json:"url"`
}

// flexString accepts JSON strings, numbers and null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*f = ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
	default:
		*f = flexString(s)
	}
	return nil
}

var jsonDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"02.01.2006",
	"2006/01/02",
}

func (p *Parser) parseJSONEvents(raw []byte, reference time.Time) ([]calendar.RawEvent, error) {
	var items []jsonEvent
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: decode event array: %v", ErrMalformed, err)
	}

	events := make([]calendar.RawEvent, 0, len(items))
	for _, it := range items {
		ev, ok := p.fromJSON(it, reference)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	p.logger.Debug().
		Int("items", len(items)).
		Int("events", len(events)).
		Msg("Parsed JSON response")

	return events, nil
}

func (p *Parser) fromJSON(it jsonEvent, reference time.Time) (calendar.RawEvent, bool) {
	title := cleanText(firstNonEmpty(it.Title, it.Event, it.Name))
	if title == "" {
		return calendar.RawEvent{}, false
	}

	country := firstNonEmpty(string(it.CountryID), string(it.Country))
	ev := calendar.RawEvent{
		SourceID: firstNonEmpty(string(it.ID), string(it.EventID)),
		Title:    title,
		Country:  calendar.CountryName(country),
		Currency: firstNonEmpty(it.Currency, it.Code, calendar.CurrencyForCountry(country)),
		Category: calendar.CategoryEconomic,
		Actual:   string(it.Actual),
		Forecast: string(it.Forecast),
		Previous: string(it.Previous),
		URL:      it.URL,
	}

	impact := firstNonEmpty(string(it.Impact), string(it.Importance))
	if isKnownImpact(impact) {
		ev.Impact = calendar.ParseImpact(impact)
	} else if calendar.LooksLikeHoliday(title) {
		ev.Impact = calendar.ImpactHoliday
	} else {
		ev.Impact = calendar.ParseImpact(impact)
	}
	if ev.Impact == calendar.ImpactHoliday {
		ev.Category = calendar.CategoryHoliday
	}

	ev.Timestamp, ev.AllDay = p.jsonTimestamp(it, reference)
	return ev, true
}

// jsonTimestamp resolves unix seconds or milliseconds, then a date string
// optionally combined with a separate clock time. A bare clock time is
// placed on the reference day. allDay is set when only a day is known.
func (p *Parser) jsonTimestamp(it jsonEvent, reference time.Time) (ts time.Time, allDay bool) {
	if n, err := strconv.ParseInt(string(it.Timestamp), 10, 64); err == nil && n > 0 {
		if n > 1_000_000_000_000 {
			return time.UnixMilli(n).UTC(), false
		}
		return time.Unix(n, 0).UTC(), false
	}

	var base time.Time
	for _, layout := range jsonDateLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(it.Date), p.location); err == nil {
			base = t
			break
		}
	}

	hour, minute, hasClock := parseClock(it.Time)
	midnight := base.Hour() == 0 && base.Minute() == 0 && base.Second() == 0
	switch {
	case !base.IsZero() && midnight && hasClock:
		return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, p.location), false
	case !base.IsZero() && midnight:
		return noon(base, p.location), true
	case !base.IsZero():
		return base, false
	case hasClock && !reference.IsZero():
		r := reference.In(p.location)
		return time.Date(r.Year(), r.Month(), r.Day(), hour, minute, 0, 0, p.location), false
	}
	return noon(reference, p.location), true
}

// parseClock reads "08:30", "8:30 PM" and similar. "All Day" yields false.
func parseClock(s string) (hour, minute int, ok bool) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	pm := strings.HasSuffix(upper, "PM")
	am := strings.HasSuffix(upper, "AM")
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(upper, "PM"), "AM"))

	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	if pm && h < 12 {
		h += 12
	} else if am && h == 12 {
		h = 0
	}
	return h, m, true
}

func isKnownImpact(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "low", "medium", "high", "holiday", "1", "2", "3", "bull1", "bull2", "bull3":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
