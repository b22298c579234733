package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestRetryDoSucceedsAfterRetryableErrors(t *testing.T) {
	attempts := 0
	got, err := RetryDo(context.Background(), fastRetryConfig(), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", &HTTPError{Status: http.StatusServiceUnavailable}
		}
		return "done", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "done" {
		t.Errorf("result = %q", got)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	_, err := RetryDo(context.Background(), fastRetryConfig(), func() (string, error) {
		attempts++
		return "", &HTTPError{Status: http.StatusUnauthorized}
	})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := RetryDo(context.Background(), fastRetryConfig(), func() (int, error) {
		attempts++
		return 0, &HTTPError{Status: http.StatusTooManyRequests}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestRetryDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := RetryDo(ctx, fastRetryConfig(), func() (int, error) {
		attempts++
		cancel()
		return 0, &HTTPError{Status: http.StatusBadGateway}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestHTTPErrorRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusPaymentRequired, false},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		e := &HTTPError{Status: tt.status}
		if got := e.Retryable(); got != tt.want {
			t.Errorf("Retryable(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{"0", 0},
		{"-5", 0},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := ParseRetryAfter(tt.in); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
