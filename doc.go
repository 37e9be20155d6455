// Package incidentwire implements a concurrent ingest-extract-rank-stream
// pipeline: a search query fans out to configured content sources,
// discovered items are deduplicated, fetched and run through a rate-limited
// LLM extraction step, and the resulting records are scored against the
// query and streamed to the client as they complete.
//
// The two concurrency domains, outbound fetches and calls against the
// extraction backend, are bounded independently, cancellation is
// cooperative, and partial results survive both cancellation and per-item
// failures.
package incidentwire
