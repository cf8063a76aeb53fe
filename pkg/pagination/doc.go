// Package pagination fetches every event of one chunk from the calendar endpoint.
//
// The endpoint caps each response and offers an unreliable cursor: follow-up
// requests carry the ids of events already seen (pids[]=event-<id>:) and are
// supposed to return the next slice. In practice page 3 and later often
// repeat page 2. The Fetcher therefore issues an initial request and at most
// MaxPagesPerChunk follow-ups, stopping as soon as a page adds nothing new.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(httpClient, parser.New(nil), pagination.DefaultConfig())
//	res, err := fetcher.Fetch(ctx, chunk, filters, cookies)
//	if err != nil {
//	    // res.Attempts tells how many requests were spent before giving up
//	}
//	if !res.Exhausted {
//	    // page budget ran out while pages still produced new events
//	}
//
// Each page request is retried with exponential backoff via client.Retry.
// The fetcher keeps no state between calls.
package pagination
