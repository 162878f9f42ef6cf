package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status  int
		message string
		want    FailureKind
	}{
		{401, "unauthorized", FailureInvalidKey},
		{403, "forbidden", FailureInvalidKey},
		{400, "API key not valid", FailureInvalidKey},
		{400, "malformed request", FailureTransient},
		{429, "quota exceeded for quota metric", FailureQuota},
		{429, "resource exhausted", FailureRateLimited},
		{500, "internal", FailureTransient},
		{503, "unavailable", FailureTransient},
	}
	for _, tc := range cases {
		if got := classifyStatus(tc.status, tc.message); got != tc.want {
			t.Errorf("classifyStatus(%d, %q) = %s, want %s", tc.status, tc.message, got, tc.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	ue := &UpstreamError{Kind: FailureRateLimited, Provider: "gemini", Err: fmt.Errorf("429")}
	if got := KindOf(ue); got != FailureRateLimited {
		t.Errorf("KindOf(upstream) = %s, want rate_limited", got)
	}
	if got := KindOf(fmt.Errorf("wrapped: %w", ue)); got != FailureRateLimited {
		t.Errorf("KindOf(wrapped upstream) = %s, want rate_limited", got)
	}
	if got := KindOf(fmt.Errorf("plain failure")); got != FailureTransient {
		t.Errorf("KindOf(plain) = %s, want transient", got)
	}
}

func TestClassifyGeminiErrorFromGoogleAPI(t *testing.T) {
	gerr := &googleapi.Error{Code: 429, Message: "quota exceeded"}
	ue := classifyGeminiError("gemini", fmt.Errorf("call failed: %w", gerr))
	if ue.Kind != FailureQuota {
		t.Errorf("kind = %s, want quota", ue.Kind)
	}
	if ue.StatusCode != 429 || ue.Provider != "gemini" {
		t.Errorf("status = %d provider = %s, want 429/gemini", ue.StatusCode, ue.Provider)
	}
}

func TestClassifyGeminiErrorSniffsMessage(t *testing.T) {
	ue := classifyGeminiError("gemini", fmt.Errorf("googleapi: Error: API key not valid. Please pass a valid API key."))
	if ue.Kind != FailureInvalidKey {
		t.Errorf("kind = %s, want invalid_key from message sniffing", ue.Kind)
	}
}

func TestClassifyGeminiErrorTimeout(t *testing.T) {
	ue := classifyGeminiError("gemini", context.DeadlineExceeded)
	if ue.Kind != FailureTransient {
		t.Errorf("kind = %s, want transient for timeouts", ue.Kind)
	}
}

func TestUpstreamErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	ue := &UpstreamError{Kind: FailureTransient, Provider: "openrouter", Err: cause}
	if !errors.Is(ue, cause) {
		t.Errorf("UpstreamError must unwrap to its cause")
	}
}
