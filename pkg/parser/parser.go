// Package parser decodes calendar endpoint responses into RawEvents.
//
// The endpoint answers with a JSON envelope whose "data" member is either an
// HTML fragment of table rows or an array of event objects. Bare HTML and a
// bare JSON array are accepted too.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrMalformed is returned when a response is neither JSON nor HTML.
var ErrMalformed = errors.New("malformed calendar response")

// EventDateTimeLayout is the layout of the data-event-datetime row attribute.
const EventDateTimeLayout = "2006/01/02 15:04:05"

var currencyPattern = regexp.MustCompile(`\b[A-Z]{3,4}\b`)

// Parser converts raw responses to events. The zero value is not usable; use New.
type Parser struct {
	location *time.Location
	logger   zerolog.Logger
}

// New creates a parser interpreting naive upstream timestamps in loc
// (UTC when nil). It should match the timeZone form field.
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{
		location: loc,
		logger:   log.With().Str("component", "parser").Logger(),
	}
}

// Parse decodes one response. reference is the chunk start day, used for
// rows that carry no date of their own.
func (p *Parser) Parse(raw []byte, reference time.Time) ([]calendar.RawEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: decode envelope: %v", ErrMalformed, err)
		}
		return p.parseData(env.payload(), reference)
	case '[':
		return p.parseJSONEvents(trimmed, reference)
	case '<':
		return p.parseHTML(string(trimmed), reference)
	}
	return nil, fmt.Errorf("%w: unexpected leading byte %q", ErrMalformed, trimmed[0])
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Events json.RawMessage `json:"events"`
}

func (e envelope) payload() json.RawMessage {
	if len(e.Data) > 0 && string(e.Data) != "null" && string(e.Data) != `""` && string(e.Data) != "[]" {
		return e.Data
	}
	return e.Events
}

func (p *Parser) parseData(data json.RawMessage, reference time.Time) ([]calendar.RawEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	switch data[0] {
	case '[':
		return p.parseJSONEvents(data, reference)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%w: decode data string: %v", ErrMalformed, err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		if strings.HasPrefix(s, "[") {
			return p.parseJSONEvents([]byte(s), reference)
		}
		return p.parseHTML(s, reference)
	}
	return nil, fmt.Errorf("%w: unsupported data member", ErrMalformed)
}

// parseHTML walks the table rows in document order, tracking the current
// day header so all-day rows land on the right date.
func (p *Parser) parseHTML(html string, reference time.Time) ([]calendar.RawEvent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(wrapRows(html)))
	if err != nil {
		return nil, fmt.Errorf("%w: html: %v", ErrMalformed, err)
	}

	currentDay := reference
	var events []calendar.RawEvent
	rows, headers := 0, 0

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if day := row.Find("td.theDay"); day.Length() > 0 {
			headers++
			if d, ok := parseDayHeader(day, p.location); ok {
				currentDay = d
			}
			return
		}

		id, _ := row.Attr("id")
		if !strings.HasPrefix(id, "eventRowId") {
			return
		}
		rows++
		if ev, ok := p.parseRow(row, id, currentDay); ok {
			events = append(events, ev)
		}
	})

	p.logger.Debug().
		Int("day_headers", headers).
		Int("event_rows", rows).
		Int("events", len(events)).
		Msg("Parsed HTML response")

	return events, nil
}

// wrapRows puts bare <tr> fragments into a table so the HTML parser keeps them.
func wrapRows(html string) string {
	lower := strings.ToLower(strings.TrimSpace(html))
	if strings.HasPrefix(lower, "<tr") {
		return "<table><tbody>" + html + "</tbody></table>"
	}
	return html
}

func parseDayHeader(cell *goquery.Selection, loc *time.Location) (time.Time, bool) {
	id, _ := cell.Attr("id")
	if unix, err := strconv.ParseInt(strings.TrimPrefix(id, "theDay"), 10, 64); err == nil && strings.HasPrefix(id, "theDay") {
		y, m, d := time.Unix(unix, 0).In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), true
	}
	text := strings.TrimSpace(cell.Text())
	for _, layout := range []string{"Monday, January 2, 2006", "Monday, 2 January 2006"} {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (p *Parser) parseRow(row *goquery.Selection, rowID string, day time.Time) (calendar.RawEvent, bool) {
	ev := calendar.RawEvent{
		SourceID: strings.TrimPrefix(strings.TrimPrefix(rowID, "eventRowId"), "_"),
		Category: calendar.CategoryEconomic,
	}

	eventCell := row.Find("td.event").First()
	if link := eventCell.Find("a").First(); link.Length() > 0 {
		ev.Title = cleanText(link.Text())
		if href, ok := link.Attr("href"); ok {
			ev.URL = href
		}
	} else {
		ev.Title = cleanText(eventCell.Text())
	}
	if ev.Title == "" {
		p.logger.Debug().Str("row_id", rowID).Msg("Skipping row without title")
		return ev, false
	}

	if attr, ok := row.Attr("data-event-datetime"); ok && attr != "" {
		if t, err := time.ParseInLocation(EventDateTimeLayout, attr, p.location); err == nil {
			ev.Timestamp = t
		}
	}

	flag := row.Find("td.flagCur").First()
	if title, ok := flag.Find("span[title]").First().Attr("title"); ok {
		ev.Country = strings.TrimSpace(title)
	}
	ev.Currency = currencyPattern.FindString(cleanText(flag.Text()))

	ev.Impact = rowImpact(row.Find("td.sentiment").First())
	if ev.Impact == "" {
		if calendar.LooksLikeHoliday(ev.Title) {
			ev.Impact = calendar.ImpactHoliday
		} else {
			ev.Impact = calendar.ImpactMedium
		}
	}

	ev.Actual = cellValue(row, "eventActual_", "td.act")
	ev.Forecast = cellValue(row, "eventForecast_", "td.fore")
	ev.Previous = cellValue(row, "eventPrevious_", "td.prev")

	if ev.Timestamp.IsZero() {
		ev.AllDay = true
		ev.Timestamp = noon(day, p.location)
	}
	if ev.Impact == calendar.ImpactHoliday {
		ev.Category = calendar.CategoryHoliday
	}
	return ev, true
}

// rowImpact returns "" when the sentiment cell gives no usable hint.
func rowImpact(cell *goquery.Selection) calendar.Impact {
	if cell.Length() == 0 {
		return ""
	}
	if strings.Contains(strings.ToLower(cell.Text()), "holiday") {
		return calendar.ImpactHoliday
	}
	if key, ok := cell.Attr("data-img_key"); ok && key != "" {
		return calendar.ParseImpact(key)
	}
	if title, ok := cell.Attr("title"); ok && title != "" {
		return calendar.ParseImpact(title)
	}
	return ""
}

func cellValue(row *goquery.Selection, idPrefix, fallback string) string {
	cell := row.Find(`td[id^="` + idPrefix + `"]`).First()
	if cell.Length() == 0 {
		cell = row.Find(fallback).First()
	}
	return cleanText(cell.Text())
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// noon anchors an all-day event to midday so timezone shifts keep it on its day.
func noon(day time.Time, loc *time.Location) time.Time {
	if day.IsZero() {
		return time.Time{}
	}
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc)
}
