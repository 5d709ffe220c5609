// Package fanout expands listing stubs into full documents in parallel.
//
// A listing from the SRD API only carries index, name and url for each
// entry. Filters on type or challenge rating need the detail document, so
// the gateway fetches one detail per stub. This package runs those fetches
// through a bounded worker pool and joins the outcomes.
//
// Example usage:
//
//	config := fanout.DefaultConfig()
//	fetcher := fanout.NewBatchFetcher(fanout.FetcherFunc(fetchDetail), config)
//	docs := fetcher.Expand(ctx, stubs)
//
// The batch fetcher:
//   - Truncates the input to MaxItems stubs
//   - Runs at most MaxConcurrency fetches at a time
//   - Gives every fetch its own timeout
//   - Records one Outcome per stub
//   - Returns the successes in input order; failures are logged and dropped
package fanout
