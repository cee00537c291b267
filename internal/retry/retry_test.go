package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  5 * time.Millisecond,
		MaxDelay:   50 * time.Millisecond,
		Timeout:    time.Second,
	}
}

func TestWithRetrySuccess(t *testing.T) {
	callCount := 0
	result, err := WithRetry(context.Background(), testConfig(), func(ctx context.Context) (string, error) {
		callCount++
		return "success", nil
	})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("Expected 'success', got %s", result)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestWithRetrySuccessAfterRetries(t *testing.T) {
	callCount := 0
	result, err := WithRetry(context.Background(), testConfig(), func(ctx context.Context) (string, error) {
		callCount++
		if callCount < 3 {
			return "", errors.New("temporary failure")
		}
		return "success", nil
	})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("Expected 'success', got %s", result)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestWithRetryExhausted(t *testing.T) {
	callCount := 0
	_, err := WithRetry(context.Background(), testConfig(), func(ctx context.Context) (int, error) {
		callCount++
		return 0, errors.New("persistent failure")
	})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if callCount != 4 {
		t.Errorf("Expected 4 calls (initial + 3 retries), got %d", callCount)
	}
}

func TestWithRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	callCount := 0
	_, err := WithRetry(ctx, testConfig(), func(ctx context.Context) (int, error) {
		callCount++
		return 0, errors.New("should not retry")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if callCount != 0 {
		t.Errorf("Expected 0 calls after cancellation, got %d", callCount)
	}
}

func TestWithRetryInfiniteEventuallySucceeds(t *testing.T) {
	cfg := Config{
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Timeout:       time.Second,
		InfiniteRetry: true,
	}

	callCount := 0
	result, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (string, error) {
		callCount++
		if callCount < 10 {
			return "", errors.New("not yet")
		}
		return "done", nil
	})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if result != "done" {
		t.Errorf("Expected 'done', got %s", result)
	}
	if callCount != 10 {
		t.Errorf("Expected 10 calls, got %d", callCount)
	}
}

func TestBackoffDelayWithinBounds(t *testing.T) {
	base := 10 * time.Millisecond
	max := 100 * time.Millisecond
	for attempt := 0; attempt < 40; attempt++ {
		d := backoffDelay(attempt, base, max)
		if d > max {
			t.Errorf("attempt %d: delay %v exceeds max %v", attempt, d, max)
		}
		if d < base/2 {
			t.Errorf("attempt %d: delay %v below half base %v", attempt, d, base)
		}
	}
}
