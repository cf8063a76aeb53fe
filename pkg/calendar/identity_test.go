package calendar

import (
	"errors"
	"testing"
	"time"
)

func TestKeyOf(t *testing.T) {
	ts := time.Date(2025, 12, 5, 13, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		a, b  RawEvent
		equal bool
	}{
		{
			name:  "same tuple different source ids",
			a:     RawEvent{SourceID: "520101", Title: "Nonfarm Payrolls", Timestamp: ts, Country: "United States"},
			b:     RawEvent{SourceID: "520199", Title: "Nonfarm Payrolls", Timestamp: ts, Country: "United States"},
			equal: true,
		},
		{
			name:  "title whitespace and case ignored",
			a:     RawEvent{Title: "Nonfarm  Payrolls", Timestamp: ts, Country: "United States"},
			b:     RawEvent{Title: " nonfarm payrolls ", Timestamp: ts, Country: "united states"},
			equal: true,
		},
		{
			name:  "different time",
			a:     RawEvent{Title: "CPI", Timestamp: ts, Country: "Japan"},
			b:     RawEvent{Title: "CPI", Timestamp: ts.Add(time.Hour), Country: "Japan"},
			equal: false,
		},
		{
			name:  "different country",
			a:     RawEvent{Title: "CPI", Timestamp: ts, Country: "Japan"},
			b:     RawEvent{Title: "CPI", Timestamp: ts, Country: "Germany"},
			equal: false,
		},
		{
			name:  "currency used when country missing",
			a:     RawEvent{Title: "CPI", Timestamp: ts, Currency: "JPY"},
			b:     RawEvent{Title: "CPI", Timestamp: ts, Currency: "jpy"},
			equal: true,
		},
		{
			name:  "same instant in other zone",
			a:     RawEvent{Title: "CPI", Timestamp: ts, Country: "Japan"},
			b:     RawEvent{Title: "CPI", Timestamp: ts.In(time.FixedZone("CET", 3600)), Country: "Japan"},
			equal: true,
		},
		{
			name:  "source id fallback without timestamp",
			a:     RawEvent{SourceID: "1", Title: "CPI"},
			b:     RawEvent{SourceID: "2", Title: "CPI"},
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, kb := KeyOf(tt.a), KeyOf(tt.b)
			if (ka == kb) != tt.equal {
				t.Errorf("KeyOf equality = %v, want %v (%q vs %q)", ka == kb, tt.equal, ka, kb)
			}
		})
	}
}

func TestKeyOf_SourceIDFallback(t *testing.T) {
	k := KeyOf(RawEvent{SourceID: "42"})
	if k != "id:42" {
		t.Errorf("KeyOf = %q, want id:42", k)
	}
}

func TestNewDateRange(t *testing.T) {
	from := time.Date(2025, 12, 2, 15, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 20, 1, 0, 0, 0, time.UTC)

	r, err := NewDateRange(from, to)
	if err != nil {
		t.Fatalf("NewDateRange failed: %v", err)
	}
	if r.Days() != 19 {
		t.Errorf("Days = %d, want 19", r.Days())
	}
	if r.From().Hour() != 0 || r.To().Hour() != 0 {
		t.Errorf("range not truncated to midnight: %s", r)
	}

	if _, err := NewDateRange(to, from); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("reversed range error = %v, want ErrInvalidRange", err)
	}

	single, err := NewDateRange(from, from)
	if err != nil {
		t.Fatalf("single-day range failed: %v", err)
	}
	if single.Days() != 1 {
		t.Errorf("single-day Days = %d, want 1", single.Days())
	}
}

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr bool
	}{
		{"valid", "2025-12-02", "2025-12-20", false},
		{"same day", "2025-12-02", "2025-12-02", false},
		{"reversed", "2025-12-20", "2025-12-02", true},
		{"bad from", "02/12/2025", "2025-12-20", true},
		{"bad to", "2025-12-02", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDateRange(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRange) {
				t.Errorf("err = %v, want ErrInvalidRange", err)
			}
		})
	}
}

func TestParseImpact(t *testing.T) {
	tests := map[string]Impact{
		"bull1":   ImpactLow,
		"bull2":   ImpactMedium,
		"bull3":   ImpactHigh,
		"3":       ImpactHigh,
		"HIGH":    ImpactHigh,
		"low":     ImpactLow,
		"Holiday": ImpactHoliday,
		"":        ImpactMedium,
		"weird":   ImpactMedium,
	}
	for in, want := range tests {
		if got := ParseImpact(in); got != want {
			t.Errorf("ParseImpact(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestCountryName(t *testing.T) {
	if got := CountryName("25"); got != "United States" {
		t.Errorf("CountryName(25) = %q", got)
	}
	if got := CountryName("999"); got != "Country_999" {
		t.Errorf("CountryName(999) = %q", got)
	}
	if got := CountryName("Japan"); got != "Japan" {
		t.Errorf("CountryName(Japan) = %q", got)
	}
	if got := CurrencyForCountry("22"); got != "GBP" {
		t.Errorf("CurrencyForCountry(22) = %q", got)
	}
	if !LooksLikeHoliday("Christmas Day") || LooksLikeHoliday("CPI (YoY)") {
		t.Error("LooksLikeHoliday misclassified")
	}
}
