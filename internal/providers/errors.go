package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ollama/ollama/api"
)

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
)

// StatusError is a non-2xx reply from an embedding endpoint.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s embedding error %d: %s", e.Provider, e.Code, e.Body)
}

// ClassifyError decides how the batch workflow reacts to a provider failure.
// Typed status codes win; errors that crossed an activity boundary only keep
// their message, so those fall back to matching on the text.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient
	}
	var se *StatusError
	if errors.As(err, &se) {
		return classifyStatus(se.Code, se.Body)
	}
	var oe api.StatusError
	if errors.As(err, &oe) {
		return classifyStatus(oe.StatusCode, oe.ErrorMessage)
	}
	return classifyMessage(strings.ToLower(err.Error()))
}

func classifyStatus(code int, body string) ErrorType {
	low := strings.ToLower(body)
	switch {
	case code == http.StatusPaymentRequired, strings.Contains(low, "quota"):
		return ErrorQuota
	case code == http.StatusTooManyRequests:
		return ErrorRate
	case code == http.StatusRequestEntityTooLarge:
		return ErrorContext
	case code == http.StatusRequestTimeout, code >= 500:
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

func classifyMessage(e string) ErrorType {
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "context length"), strings.Contains(e, "context too long"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "deadline exceeded"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"), strings.Contains(e, "connection refused"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}
