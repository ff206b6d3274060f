package agent

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorClass is the category of an agent failure, used for logs and metric
// labels.
type ErrorClass int

const (
	// Examples: network timeout, upstream 5xx.
	ErrorClassTransient ErrorClass = iota

	// Examples: invalid API key, unknown model, empty completion.
	ErrorClassPermanent

	// The caller went away or the run deadline passed.
	ErrorClassCanceled
)

// String returns the string representation of ErrorClass.
func (e ErrorClass) String() string {
	switch e {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassPermanent:
		return "permanent"
	case ErrorClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ClassifyError analyzes an error returned by an agent turn.
func ClassifyError(err error) ErrorClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassCanceled
	}
	if isNetworkError(err) {
		return ErrorClassTransient
	}

	errMsg := strings.ToLower(err.Error())
	for _, pattern := range []string{"status code: 5", "rate limit", "429", "overloaded", "timeout"} {
		if strings.Contains(errMsg, pattern) {
			return ErrorClassTransient
		}
	}

	return ErrorClassPermanent
}

// isNetworkError checks if an error is network-related.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"network is unreachable",
		"no such host",
		"dial tcp",
		"eof",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
