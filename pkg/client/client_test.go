package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/econ-calendar-client/pkg/ratelimit"
)

func testConfig(serverURL string) Config {
	return Config{
		URL:        serverURL + "/economic-calendar/Service/getCalendarFilteredData",
		LandingURL: serverURL + "/economic-calendar/",
		UserAgent:  "TestApp/1.0.0",
		Timeout:    5 * time.Second,
		RateLimit:  ratelimit.Config{RequestsPerSecond: 0},
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig(),
			expectError: false,
		},
		{
			name: "empty url",
			config: Config{
				UserAgent: "TestApp/1.0.0",
			},
			expectError: true,
			errorMsg:    "url is required",
		},
		{
			name: "empty user agent",
			config: Config{
				URL: DefaultURL,
			},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error, got nil")
				} else if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Expected error %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Error("Expected client, got nil")
			}
		})
	}
}

func TestClient_PostSendsBrowserRequest(t *testing.T) {
	var got *http.Request
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":""}`))
	}))
	defer server.Close()

	client, err := New(testConfig(server.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer client.Close()

	form := url.Values{}
	form.Set("dateFrom", "2025-12-01")
	form.Set("dateTo", "2025-12-01")
	form.Add("pids[]", "event-1:")

	resp, err := client.Post(context.Background(), form, []*http.Cookie{{Name: "PHPSESSID", Value: "abc"}})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if string(resp) != `{"data":""}` {
		t.Errorf("body = %q", resp)
	}

	if got.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", got.Method)
	}
	if ct := got.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", ct)
	}
	if xr := got.Header.Get("X-Requested-With"); xr != "XMLHttpRequest" {
		t.Errorf("X-Requested-With = %q", xr)
	}
	if ua := got.Header.Get("User-Agent"); ua != "TestApp/1.0.0" {
		t.Errorf("User-Agent = %q", ua)
	}
	if ref := got.Header.Get("Referer"); !strings.HasSuffix(ref, "/economic-calendar/") {
		t.Errorf("Referer = %q", ref)
	}
	if ck, err := got.Cookie("PHPSESSID"); err != nil || ck.Value != "abc" {
		t.Errorf("session cookie not forwarded: %v", err)
	}

	values, err := url.ParseQuery(body)
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	if values.Get("dateFrom") != "2025-12-01" || values.Get("pids[]") != "event-1:" {
		t.Errorf("form = %v", values)
	}
}

func TestClient_PostErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		class      ErrorClass
		wantAfter  time.Duration
	}{
		{"forbidden", http.StatusForbidden, "", ErrorClassClient, 0},
		{"server error", http.StatusBadGateway, "", ErrorClassServer, 0},
		{"throttled", http.StatusTooManyRequests, "3", ErrorClassRateLimit, 3 * time.Second},
		{"throttled without header", http.StatusTooManyRequests, "", ErrorClassRateLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client, err := New(testConfig(server.URL))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			_, err = client.Post(context.Background(), url.Values{}, nil)
			var ue *UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
			}
			if ue.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", ue.StatusCode, tt.status)
			}
			if ue.ErrorClass != tt.class {
				t.Errorf("ErrorClass = %q, want %q", ue.ErrorClass, tt.class)
			}
			if ue.RetryAfter != tt.wantAfter {
				t.Errorf("RetryAfter = %v, want %v", ue.RetryAfter, tt.wantAfter)
			}

			throttles := client.RateLimiter().GetState().ConsecutiveThrottles
			if tt.class == ErrorClassRateLimit && throttles != 1 {
				t.Errorf("ConsecutiveThrottles = %d, want 1", throttles)
			}
			if tt.class != ErrorClassRateLimit && throttles != 0 {
				t.Errorf("ConsecutiveThrottles = %d, want 0", throttles)
			}
		})
	}
}

func TestClient_PostNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	cfg := testConfig(server.URL)
	server.Close()

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.Post(context.Background(), url.Values{}, nil)
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if ClassOf(err) != ErrorClassNetwork {
		t.Errorf("ClassOf = %q, want network", ClassOf(err))
	}
}

func TestClient_PostContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client, err := New(testConfig(server.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Post(ctx, url.Values{}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestClient_Bootstrap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "s1", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "geoC", Value: "DE", Path: "/"})
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	client, err := New(testConfig(server.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cookies, err := client.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if len(cookies) != 2 {
		t.Fatalf("cookies = %d, want 2", len(cookies))
	}
	if cookies[0].Name != "PHPSESSID" || cookies[0].Value != "s1" {
		t.Errorf("first cookie = %s=%s", cookies[0].Name, cookies[0].Value)
	}
}

func TestClient_BootstrapRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, err := New(testConfig(server.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.Bootstrap(context.Background())
	if ClassOf(err) != ErrorClassClient {
		t.Errorf("ClassOf = %q, want client (err: %v)", ClassOf(err), err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{" 12 ", 12 * time.Second},
		{"-1", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
