package jobs

import (
	"context"
	"errors"
	"strings"

	"mediaforge/internal/providers/chain"
)

// Messages already phrased for end users pass through verbatim.
var passThrough = []string{
	"no face detected",
	"content policy violation",
	"generation timeout",
}

// SanitizeError turns an execution failure into a user-facing summary,
// stripping provider and stack detail.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "generation timeout"
	}
	lower := strings.ToLower(err.Error())
	for _, p := range passThrough {
		if strings.Contains(lower, p) {
			return p
		}
	}
	var se *chain.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == 429:
			return "provider is rate limiting requests, please try again later"
		case se.Code >= 500:
			return "provider is temporarily unavailable"
		}
	}
	return "generation failed after trying all available providers"
}
