package calendar

import (
	"strconv"
	"strings"
)

// DefaultCountries is the upstream country id list queried when filters leave it empty.
var DefaultCountries = []int{25, 32, 6, 37, 72, 22, 17, 39, 14, 10, 35, 43, 56, 36, 110, 11, 26, 12, 4, 5}

// DefaultTimeZone is the upstream timezone id for UTC.
const DefaultTimeZone = 55

var countryNames = map[int]string{
	25: "United States", 32: "Eurozone", 6: "Australia", 37: "Japan",
	72: "Germany", 22: "United Kingdom", 17: "Canada", 39: "Switzerland",
	14: "China", 10: "New Zealand", 35: "Sweden", 43: "Norway",
	56: "France", 36: "South Korea", 110: "India", 11: "Brazil",
	26: "Italy", 12: "Russia", 4: "South Africa", 5: "Mexico",
}

var countryCurrencies = map[int]string{
	25: "USD", 32: "EUR", 6: "AUD", 37: "JPY",
	72: "EUR", 22: "GBP", 17: "CAD", 39: "CHF",
	14: "CNY", 10: "NZD", 35: "SEK", 43: "NOK",
	56: "EUR", 36: "KRW", 110: "INR", 11: "BRL",
	26: "EUR", 12: "RUB", 4: "ZAR", 5: "MXN",
}

// CountryName resolves an upstream country id or name.
// Non-numeric input is returned as is; unknown ids map to "Country_<id>".
func CountryName(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "Unknown"
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return v
	}
	if name, ok := countryNames[id]; ok {
		return name
	}
	return "Country_" + v
}

// CurrencyForCountry returns the currency of a numeric country id, or "".
func CurrencyForCountry(v string) string {
	id, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return ""
	}
	return countryCurrencies[id]
}

var holidayKeywords = []string{
	"holiday", "christmas", "new year", "thanksgiving", "easter", "independence day",
}

// LooksLikeHoliday reports whether a title names a market holiday.
func LooksLikeHoliday(title string) bool {
	t := strings.ToLower(title)
	for _, kw := range holidayKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// ParseImpact maps upstream impact notations to an Impact.
// Accepts "bull1".."bull3", "1".."3", and Low/Medium/High/Holiday in any case.
// Unrecognized values default to Medium.
func ParseImpact(v string) Impact {
	s := strings.ToLower(strings.TrimSpace(v))
	switch {
	case s == "":
		return ImpactMedium
	case strings.Contains(s, "holiday"):
		return ImpactHoliday
	case strings.Contains(s, "high"), strings.Contains(s, "3"):
		return ImpactHigh
	case strings.Contains(s, "medium"), strings.Contains(s, "2"):
		return ImpactMedium
	case strings.Contains(s, "low"), strings.Contains(s, "1"):
		return ImpactLow
	}
	return ImpactMedium
}
