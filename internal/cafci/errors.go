package cafci

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/ndewijer/fci-sync/internal/apperrors"
)

// StatusError is a non-2xx, non-429 upstream response that survived retries.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d %s for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}

// IsUpstreamError reports whether err is a *StatusError.
func IsUpstreamError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// classifyTransport wraps a transport-level failure, marking timeouts.
func classifyTransport(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", apperrors.ErrTransportTimeout, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return fmt.Errorf("%w: %w", apperrors.ErrTransportTimeout, err)
	}
	return err
}

// ErrorKind labels an upstream error for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, apperrors.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, apperrors.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, apperrors.ErrTransportTimeout):
		return "timeout"
	case errors.Is(err, apperrors.ErrUnreachable):
		return "unreachable"
	case IsUpstreamError(err):
		return "upstream_status"
	}
	return "other"
}
