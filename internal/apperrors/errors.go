package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
var (
	// ErrFundClassNotFound indicates that no fund class row exists for the given class ID.
	ErrFundClassNotFound = errors.New("fund class not found")

	// ErrInvalidClassID indicates that a class ID parameter is empty or not numeric.
	ErrInvalidClassID = errors.New("invalid class ID")
)

// Upstream errors describe failures talking to the public fund API.
// Per-task upstream failures are logged by the sync runner and never abort a run.
var (
	// ErrUpstreamUnavailable indicates that the master list could not be retrieved
	// after the HTTP layer exhausted its retry budget.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedResponse indicates that a response body did not parse as the expected envelope.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrRateLimited indicates HTTP 429. Callers must back off and retry, not skip.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrUnreachable indicates that every attempt ended in a timeout or connection error.
	ErrUnreachable = errors.New("upstream unreachable")

	// ErrTransportTimeout marks a single attempt that exceeded the client timeout.
	ErrTransportTimeout = errors.New("upstream request timed out")
)

// Storage and run-control errors.
var (
	// ErrStorageFailure indicates that a storage transaction could not commit.
	// It is fatal for a sync run: continuing would desynchronize the checkpoint
	// from what is actually persisted.
	ErrStorageFailure = errors.New("storage failure")

	// ErrSyncInProgress indicates that another sync run holds the single-instance lock.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrUnsupportedDriver indicates an unknown DB_DRIVER value.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)
