// Package resilience classifies upstream AI-provider failures. The planner
// core never retries internally; classification only determines how a
// failure is labeled and logged so callers can decide their own policy.
package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// IsUpstreamUnavailable returns true if the error indicates the AI provider
// was unreachable, overloaded, or timed out. These are the conditions
// reported to callers as the upstream-unavailable failure reason; anything
// else is a permanent error for this request.
func IsUpstreamUnavailable(err error) bool {
	if err == nil {
		return false
	}

	// Cancelled or deadline-exceeded calls count as unavailable: the round
	// trip did not complete.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// SDK API errors carry the HTTP status of the failed request.
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		return isTransientHTTPStatus(apierr.StatusCode)
	}

	// Network-level timeouts.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Connection reset / refused / aborted.
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP transports.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"overloaded",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// isTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue.
func isTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504, // Gateway Timeout
		529: // Anthropic: overloaded
		return true
	default:
		return false
	}
}
