package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ollama/ollama/api"
)

func TestClassifyErrorMessages(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":           ErrorQuota,
		"429 rate":                     ErrorRate,
		"context too long":             ErrorContext,
		"timeout":                      ErrorTransient,
		"service unavailable":          ErrorTransient,
		"bad request":                  ErrorPermanent,
		"openai embedding error 429: ": ErrorRate,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
	if got := ClassifyError(nil); got != "" {
		t.Fatalf("classify nil: got %s", got)
	}
}

func TestClassifyErrorStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorType
	}{
		{&StatusError{Provider: "openai", Code: 429, Body: `{"error":"slow down"}`}, ErrorRate},
		{&StatusError{Provider: "openai", Code: 429, Body: `{"error":{"code":"insufficient_quota"}}`}, ErrorQuota},
		{&StatusError{Provider: "openai", Code: 503}, ErrorTransient},
		{&StatusError{Provider: "openai", Code: 401, Body: "invalid key"}, ErrorPermanent},
		{fmt.Errorf("ollama embedding request failed: %w", api.StatusError{StatusCode: 500, ErrorMessage: "model loading"}), ErrorTransient},
		{fmt.Errorf("ollama embedding request failed: %w", api.StatusError{StatusCode: 413}), ErrorContext},
		{fmt.Errorf("embed: %w", context.DeadlineExceeded), ErrorTransient},
	}
	for _, c := range cases {
		if got := ClassifyError(c.err); got != c.want {
			t.Fatalf("classify %v: got %s want %s", c.err, got, c.want)
		}
	}
}
