package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call
// without touching the network.
var ErrCircuitOpen = errors.New("gateway: circuit open")

// ErrorKind classifies gateway API failures.
type ErrorKind string

const (
	// KindAPI is the generic 4xx failure.
	KindAPI ErrorKind = "api"
	// KindAuth is a 401 or credential failure.
	KindAuth ErrorKind = "authentication"
	// KindNotFound is a 404.
	KindNotFound ErrorKind = "not_found"
	// KindConflict is a 409.
	KindConflict ErrorKind = "conflict"
	// KindRateLimit is a 429. Callers may retry after honoring Retry-After.
	KindRateLimit ErrorKind = "rate_limit"
	// KindServer is any 5xx. The client retries these locally.
	KindServer ErrorKind = "server"
)

// docsBaseURL anchors the remediation documentation for typed errors.
const docsBaseURL = "https://altairalabs.github.io/chatkit/errors"

// APIError is the typed error for gateway REST failures. Kind selects
// the class; DocsURL points at a stable remediation anchor.
type APIError struct {
	Kind    ErrorKind
	Message string
	Status  int
	Code    string
	Body    []byte
	DocsURL string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s (%s, status %d): %s", e.Kind, e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("gateway: %s (status %d): %s", e.Kind, e.Status, e.Message)
}

// Is lets errors.Is match on kind: errors.Is(err, &APIError{Kind: KindAuth}).
func (e *APIError) Is(target error) bool {
	var other *APIError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == "" || other.Kind == e.Kind
}

// IsRetryable reports whether the failure is transient. Only server
// errors are retried by the client; rate limits are surfaced so the
// caller can honor Retry-After.
func (e *APIError) IsRetryable() bool {
	return e.Kind == KindServer
}

// errorCodeEntry maps a gateway error code to its class and docs anchor.
type errorCodeEntry struct {
	kind   ErrorKind
	anchor string
}

// errorCodeTable maps normalized gateway error codes (uppercase with
// underscores) to typed classes. Codes not listed here fall back to
// status-based mapping.
var errorCodeTable = map[string]errorCodeEntry{
	"UNAUTHORIZED":         {KindAuth, "authentication"},
	"INVALID_CREDENTIALS":  {KindAuth, "authentication"},
	"CAPTCHA_REQUIRED":     {KindAuth, "captcha"},
	"UNKNOWN_RECIPIENT":    {KindNotFound, "unknown-recipient"},
	"UNKNOWN_GROUP":        {KindNotFound, "unknown-group"},
	"ATTACHMENT_NOT_FOUND": {KindNotFound, "attachments"},
	"GROUP_EXISTS":         {KindConflict, "group-exists"},
	"STALE_DEVICES":        {KindConflict, "stale-devices"},
	"RATE_LIMITED":         {KindRateLimit, "rate-limits"},
	"PROOF_REQUIRED":       {KindRateLimit, "rate-limits"},
	"INTERNAL_ERROR":       {KindServer, "server-errors"},
	"SERVICE_UNAVAILABLE":  {KindServer, "server-errors"},
}

// errorBody is the error shape the gateway returns for failed calls.
type errorBody struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classifyError builds the typed error for a non-2xx/3xx response.
func classifyError(status int, body []byte, url string) *APIError {
	apiErr := &APIError{
		Status: status,
		Body:   body,
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Message = eb.Message
		if apiErr.Message == "" {
			apiErr.Message = eb.Error
		}
		if eb.Code != "" {
			apiErr.Code = normalizeErrorCode(eb.Code)
			if entry, ok := errorCodeTable[apiErr.Code]; ok {
				apiErr.Kind = entry.kind
				apiErr.DocsURL = docsBaseURL + "#" + entry.anchor
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("request to %s failed: %s", url, strings.TrimSpace(string(body)))
	}

	if apiErr.Kind == "" {
		apiErr.Kind = kindForStatus(status)
		apiErr.DocsURL = docsBaseURL + "#" + string(apiErr.Kind)
	}
	return apiErr
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= http.StatusInternalServerError:
		return KindServer
	default:
		return KindAPI
	}
}

// normalizeErrorCode uppercases a code and squashes separators to
// underscores ("rate-limited" -> "RATE_LIMITED").
func normalizeErrorCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ToUpper(code)
	code = strings.ReplaceAll(code, "-", "_")
	code = strings.ReplaceAll(code, " ", "_")
	return code
}
