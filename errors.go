package rl4

import "errors"

// Error kinds per spec §7. Anything that can be isolated to a single record
// is swallowed at the point of parsing instead of returned as one of these;
// these are the errors that propagate to a caller.
var (
	// ErrNotFound is returned for a missing blob, workspace, or document.
	ErrNotFound = errors.New("rl4: not found")

	// ErrCacheMiss is internal: it triggers a rebuild and is never returned
	// to a caller of a public operation.
	ErrCacheMiss = errors.New("rl4: cache miss")

	// ErrTruncated flags a workspace scan that hit its size or time cap.
	// It is carried on the scan result rather than returned as an error.
	ErrTruncated = errors.New("rl4: scan truncated")

	// ErrAuthExpired is returned by the context-sync client when the
	// remote bearer token has expired and a refresh is required.
	ErrAuthExpired = errors.New("rl4: remote auth expired")

	// ErrReconnectRequired is returned when a request is rejected as
	// AuthExpired again right after a token refresh and retry.
	ErrReconnectRequired = errors.New("rl4: remote session requires reconnect")

	// ErrRateLimited is returned by the per-tool fixed-window limiter.
	ErrRateLimited = errors.New("rl4: rate limited")

	// ErrSafetyFrozen is non-fatal: selection continues to serve lessons
	// but the CRE stops updating its counters until recovery.
	ErrSafetyFrozen = errors.New("rl4: CRE scorer is safety-frozen")

	// ErrNoResults is returned when retrieval yields no matching chunks.
	ErrNoResults = errors.New("rl4: no results found")

	// ErrEmptyQuery is returned by the search operations for an empty or
	// over-length query.
	ErrEmptyQuery = errors.New("rl4: empty or invalid query")

	// ErrWorkspaceNotSet is returned when a workspace is selected by an id
	// that is not registered.
	ErrWorkspaceNotSet = errors.New("rl4: no workspace selected")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("rl4: invalid configuration")
)
