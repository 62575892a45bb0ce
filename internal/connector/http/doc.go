// Package http provides the rate-limited, retry-capable HTTP client shared
// by source connectors. Retry is bounded by a total attempt budget so the
// caller can reason about how many times a remote endpoint is hit.
package http
