package integration

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/econ-calendar-client/internal/app"
	"github.com/Sternrassler/econ-calendar-client/internal/config"
	"github.com/Sternrassler/econ-calendar-client/internal/testutil"
	"github.com/Sternrassler/econ-calendar-client/pkg/retrieval"
	"github.com/Sternrassler/econ-calendar-client/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func mockConfig(mock *testutil.MockCalendar) *config.Config {
	cfg := config.Default()
	cfg.Upstream.URL = mock.DataURL()
	cfg.Upstream.LandingURL = mock.LandingURL()
	cfg.Rate.RequestsPerSecond = 1000
	cfg.Rate.Burst = 10
	cfg.Retry.InitialBackoff = 5 * time.Millisecond
	cfg.Retry.MaxBackoff = 20 * time.Millisecond
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

func seedDays(mock *testutil.MockCalendar, start time.Time, days, perDay int) {
	for d := 0; d < days; d++ {
		mock.AddEvents(testutil.GenerateDay(start.AddDate(0, 0, d), perDay, 1000*(d+1))...)
	}
}

// TestFullRetrievalFlow runs chunking, paging, dedup and the Redis-backed session together.
func TestFullRetrievalFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockCalendar()
	defer mock.Close()
	mock.SetRequireSession(true)
	mock.SetCap(4)

	start := time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)
	seedDays(mock, start, 4, 6)

	cfg := mockConfig(mock)
	cfg.Retrieval.DaysPerChunk = 2
	cfg.Upstream.Cap = 4

	a, err := app.New(cfg, redisClient)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	defer a.Close()

	var reports []retrieval.ChunkReport
	res, err := a.Retriever.Retrieve(context.Background(), retrieval.Request{
		From:     "2025-12-02",
		To:       "2025-12-05",
		Filters:  a.Filters,
		Progress: func(r retrieval.ChunkReport) { reports = append(reports, r) },
	})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(res.Events) != 24 {
		t.Errorf("events = %d, want 24", len(res.Events))
	}
	if res.ChunkCount != 2 || len(reports) != 2 {
		t.Fatalf("chunks = %d, reports = %d, want 2", res.ChunkCount, len(reports))
	}
	for _, r := range reports {
		// 12 rows at 4 per page need more than one request
		if r.Pages < 3 {
			t.Errorf("chunk %d pages = %d, want >= 3", r.Index, r.Pages)
		}
		if !r.CapSuspected {
			t.Errorf("chunk %d: first page at cap should be flagged", r.Index)
		}
	}
	for i := 1; i < len(res.Events); i++ {
		if res.Events[i].Timestamp.Before(res.Events[i-1].Timestamp) {
			t.Fatalf("events not ordered at %d", i)
		}
	}

	entry, err := session.NewStore(redisClient, cfg.Session.Key).Get(context.Background())
	if err != nil {
		t.Fatalf("session not stored in Redis: %v", err)
	}
	if len(entry.Cookies) == 0 {
		t.Error("stored session has no cookies")
	}
}

// TestSessionSharedAcrossInstances checks that a second process reuses the Redis session.
func TestSessionSharedAcrossInstances(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockCalendar()
	defer mock.Close()
	mock.SetRequireSession(true)
	seedDays(mock, time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC), 2, 3)

	req := retrieval.Request{From: "2025-12-02", To: "2025-12-03"}

	for i := 0; i < 2; i++ {
		a, err := app.New(mockConfig(mock), redisClient)
		if err != nil {
			t.Fatalf("instance %d: %v", i, err)
		}
		res, err := a.Retriever.Retrieve(context.Background(), req)
		a.Close()
		if err != nil {
			t.Fatalf("instance %d: Retrieve failed: %v", i, err)
		}
		if len(res.Events) != 6 || res.Failed() {
			t.Errorf("instance %d: events = %d, errors = %v", i, len(res.Events), res.Errors)
		}
	}

	if got := mock.GetBootstrapCount(); got != 1 {
		t.Errorf("bootstraps = %d, want 1", got)
	}
}

// TestRateLimitRecovery checks that a 429 with Retry-After is waited out and retried.
func TestRateLimitRecovery(t *testing.T) {
	mock := testutil.NewMockCalendar()
	defer mock.Close()
	seedDays(mock, time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC), 1, 5)
	mock.FailNext("2025-12-02", testutil.NewRateLimitResponse(time.Second))

	a, err := app.New(mockConfig(mock), nil)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	defer a.Close()

	began := time.Now()
	res, err := a.Retriever.Retrieve(context.Background(), retrieval.Request{From: "2025-12-02", To: "2025-12-02"})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(res.Events) != 5 || len(res.Errors) != 0 {
		t.Errorf("events = %d, errors = %v", len(res.Events), res.Errors)
	}
	if elapsed := time.Since(began); elapsed < 900*time.Millisecond {
		t.Errorf("elapsed = %v, want Retry-After to be honoured", elapsed)
	}
}

// TestMalformedResponseRetried checks that an undecodable page is retried like a transient failure.
func TestMalformedResponseRetried(t *testing.T) {
	mock := testutil.NewMockCalendar()
	defer mock.Close()
	seedDays(mock, time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC), 1, 4)
	mock.FailNext("2025-12-02", testutil.NewMalformedResponse())

	a, err := app.New(mockConfig(mock), nil)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	defer a.Close()

	var report retrieval.ChunkReport
	res, err := a.Retriever.Retrieve(context.Background(), retrieval.Request{
		From:     "2025-12-02",
		To:       "2025-12-02",
		Progress: func(r retrieval.ChunkReport) { report = r },
	})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(res.Events) != 4 {
		t.Errorf("events = %d, want 4", len(res.Events))
	}
	if report.Attempts < 2 {
		t.Errorf("attempts = %d, want the malformed page retried", report.Attempts)
	}
}
