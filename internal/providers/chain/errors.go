package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// StatusError is an HTTP-level provider failure.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider status %d", e.Code)
	}
	return fmt.Sprintf("provider status %d: %s", e.Code, e.Message)
}

// IsTransient classifies an error for retry purposes. Network resets,
// timeouts and 5xx responses are transient; everything else (auth failures,
// rate limits, content-policy rejections) is permanent and must not burn
// retry budget.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return false
}
