package audible

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Factor: 2}
}

func TestWithRetryRetriesTransientFailures(t *testing.T) {
	attempts := 0
	var notified []error
	value, err := withRetry(context.Background(), fastPolicy(3), func(err error, _ time.Duration) {
		notified = append(notified, err)
	}, func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &StatusError{StatusCode: http.StatusServiceUnavailable, Status: "503 Service Unavailable"}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if value != "ok" || attempts != 3 {
		t.Fatalf("expected ok after 3 attempts, got %q after %d", value, attempts)
	}
	if len(notified) != 2 {
		t.Fatalf("expected 2 retry notifications, got %d", len(notified))
	}
}

func TestWithRetryStopsOnPermanentFailure(t *testing.T) {
	attempts := 0
	_, err := withRetry(context.Background(), fastPolicy(3), nil, func(context.Context) (int, error) {
		attempts++
		return 0, &StatusError{StatusCode: http.StatusBadRequest, Status: "400 Bad Request"}
	})
	var status *StatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected the 400 status error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := withRetry(context.Background(), fastPolicy(2), nil, func(context.Context) (int, error) {
		attempts++
		return 0, &StatusError{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}
	})
	var status *StatusError
	if !errors.As(err, &status) {
		t.Fatalf("expected the last status error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := withRetry(ctx, RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Factor: 2}, nil, func(context.Context) (int, error) {
		attempts++
		cancel()
		return 0, errors.New("connection reset by peer")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryPolicyNormalized(t *testing.T) {
	p := RetryPolicy{MaxRetries: -1, BaseDelay: 0, MaxDelay: 0, Factor: 0}.normalized()
	def := DefaultRetryPolicy()
	if p.MaxRetries != 0 || p.BaseDelay != def.BaseDelay || p.MaxDelay != def.MaxDelay || p.Factor != def.Factor {
		t.Fatalf("unexpected normalized policy %+v", p)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("7"); got != 7*time.Second {
		t.Fatalf("parseRetryAfter(7) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Fatalf("parseRetryAfter(\"\") = %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Fatalf("parseRetryAfter(soon) = %v", got)
	}
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 58*time.Minute {
		t.Fatalf("parseRetryAfter(date) = %v", got)
	}
}
