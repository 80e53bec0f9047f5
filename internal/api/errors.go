package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Common errors returned by the client.
var (
	// ErrNetwork indicates the backend could not be reached.
	ErrNetwork = errors.New("network error communicating with CodebaseQA")

	// ErrInvalidResponse indicates a 2xx response whose body could not be decoded.
	ErrInvalidResponse = errors.New("invalid response from CodebaseQA")
)

// CodeNetwork is the Code of errors produced by transport failures.
const CodeNetwork = "network_error"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// APIError is the single normalized error shape for failed requests. Status is 0
// for transport failures.
type APIError struct {
	Status            int
	Code              string
	Message           string
	RetryAfterSeconds int

	err error
}

func (e *APIError) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("CodebaseQA unreachable: %s", e.Message)
	case e.Code != "":
		return fmt.Sprintf("CodebaseQA API error (status %d, code %s): %s", e.Status, e.Code, e.Message)
	default:
		return fmt.Sprintf("CodebaseQA API error (status %d): %s", e.Status, e.Message)
	}
}

func (e *APIError) Unwrap() error { return e.err }

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsConflict returns true if the error is a 409, e.g. adding a repository twice.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusTooManyRequests ||
		strings.Contains(strings.ToLower(apiErr.Code), "rate_limited")
}

// IsNetwork returns true if the backend could not be reached.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// RetryAfter returns how long the server asked the client to wait.
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.RetryAfterSeconds <= 0 {
		return 0, false
	}
	return time.Duration(apiErr.RetryAfterSeconds) * time.Second, true
}

func networkError(err error) *APIError {
	return &APIError{
		Code:    CodeNetwork,
		Message: err.Error(),
		err:     fmt.Errorf("%w: %w", ErrNetwork, err),
	}
}

// errorBody covers the three JSON error shapes the backend produces:
// {"detail": {...}}, {"detail": "..."} and {"detail": [{"msg": ...}]}.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type errorDetail struct {
	Message           string   `json:"message"`
	Error             string   `json:"error"`
	Code              string   `json:"code"`
	RetryAfterSeconds *float64 `json:"retry_after_seconds"`
}

type validationIssue struct {
	Msg string `json:"msg"`
	Loc []any  `json:"loc"`
}

// parseError normalizes a non-2xx response. It never fails: anything it cannot
// decode becomes the message verbatim.
func parseError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	decodeErrorBody(body, apiErr)
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	if apiErr.RetryAfterSeconds == 0 {
		apiErr.RetryAfterSeconds = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return apiErr
}

func decodeErrorBody(body []byte, apiErr *APIError) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return
	}

	var text string
	if err := json.Unmarshal(eb.Detail, &text); err == nil {
		apiErr.Message = text
		return
	}

	var detail errorDetail
	if err := json.Unmarshal(eb.Detail, &detail); err == nil {
		apiErr.Message = detail.Message
		if apiErr.Message == "" {
			apiErr.Message = detail.Error
		}
		apiErr.Code = detail.Code
		if detail.RetryAfterSeconds != nil && *detail.RetryAfterSeconds > 0 {
			apiErr.RetryAfterSeconds = int(math.Ceil(*detail.RetryAfterSeconds))
		}
		return
	}

	var issues []validationIssue
	if err := json.Unmarshal(eb.Detail, &issues); err == nil && len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for _, is := range issues {
			if is.Msg != "" {
				msgs = append(msgs, is.Msg)
			}
		}
		apiErr.Code = "validation_error"
		apiErr.Message = strings.Join(msgs, "; ")
	}
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return max(secs, 0)
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(int(math.Ceil(t.Sub(now).Seconds())), 0)
	}
	return 0
}
