// Package retrieval turns a date range into one deduplicated list of
// calendar events.
//
// A Retriever plans the range into chunks (package chunk), fetches each chunk
// through a ChunkFetcher (normally a *pagination.Fetcher), and merges the
// chunk results in chunk order through a dedup.Aggregator. Fetches may run
// concurrently; aggregation never does, so the output is identical for any
// Concurrency setting.
//
// A chunk that fails after all retries is recorded as a ChunkError and the
// retrieval continues. Cancelling the context stops at the next chunk
// boundary and returns the partial result together with the context error.
//
// Usage:
//
//	r := retrieval.New(fetcher, sessions, retrieval.DefaultConfig())
//	res, err := r.Retrieve(ctx, retrieval.Request{From: "2025-12-02", To: "2025-12-20"})
//	if err != nil {
//	    return err
//	}
//	for _, ev := range res.Events {
//	    fmt.Println(ev.Timestamp, ev.Title)
//	}
package retrieval
