package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"os"
)

// httpStatusError is implemented by remote API errors carrying a status code.
type httpStatusError interface {
	HTTPStatus() int
}

// ClassifyError returns the error weight of a remote call outcome.
//
// Weights:
//   - nil, caller cancellation -> 0.0
//   - 4xx except 429 -> 0.0 (the request was bad, the API is fine)
//   - 429 (quota exhausted) -> 1.0, further calls fail the same way
//   - 5xx, network errors -> 1.0
//   - timeouts -> 1.5
func ClassifyError(err error) float64 {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return 1.5
	}

	var he httpStatusError
	if errors.As(err, &he) {
		return classifyStatus(he.HTTPStatus())
	}
	return 1.0
}

func classifyStatus(code int) float64 {
	switch {
	case code == http.StatusTooManyRequests, code >= 500:
		return 1.0
	default:
		return 0
	}
}
