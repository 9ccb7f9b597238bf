package upstream

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	ipscope "github.com/eugener/ipscope/internal"
)

// APIError represents an error response from the remote API.
type APIError struct {
	Op         string
	StatusCode int
	Reason     string
	Body       string
}

// Error returns a formatted error string including operation, status and reason.
func (e *APIError) Error() string {
	if e.StatusCode == http.StatusTooManyRequests {
		return fmt.Sprintf("upstream %s: request quota exceeded", e.Op)
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream %s: HTTP %d %s", e.Op, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("upstream %s: HTTP %d %s: %s", e.Op, e.StatusCode, e.Reason, e.Body)
}

// HTTPStatus returns the upstream HTTP status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Unwrap maps the status code onto the domain sentinel errors, so callers can
// tell quota exhaustion apart from other failures with errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return ipscope.ErrQuotaExceeded
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ipscope.ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ipscope.ErrNotFound
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return ipscope.ErrBadRequest
	default:
		return ipscope.ErrUpstream
	}
}

// ParseAPIError reads up to 4KB from the response body and returns an APIError.
func ParseAPIError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
		Body:       strings.TrimSpace(string(body)),
	}
}

// reasonPhrase extracts the reason from a status line such as "404 Not Found".
func reasonPhrase(resp *http.Response) string {
	if r, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); ok && r != "" {
		return r
	}
	return http.StatusText(resp.StatusCode)
}
