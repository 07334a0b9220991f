package shared

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestWithRetry(t *testing.T) {
	rateLimited := &RateLimitError{Source: "apple music"}

	t.Run("succeeds after rate limits", func(t *testing.T) {
		sleeps := &recordedSleeps{}
		policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, Sleep: sleeps.sleep}

		calls := 0
		got, err := WithRetry(context.Background(), policy, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", rateLimited
			}
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "ok" {
			t.Errorf("expected ok, got %q", got)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}

		want := []time.Duration{time.Second, 2 * time.Second}
		if len(sleeps.delays) != len(want) {
			t.Fatalf("expected %d sleeps, got %v", len(want), sleeps.delays)
		}
		for i, d := range want {
			if sleeps.delays[i] != d {
				t.Errorf("sleep %d: expected %s, got %s", i, d, sleeps.delays[i])
			}
		}
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		sleeps := &recordedSleeps{}
		policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, Sleep: sleeps.sleep}
		boom := errors.New("boom")

		calls := 0
		_, err := WithRetry(context.Background(), policy, func(context.Context) (int, error) {
			calls++
			return 0, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
		if len(sleeps.delays) != 0 {
			t.Errorf("expected no sleeps, got %v", sleeps.delays)
		}
	})

	t.Run("returns last rate limit error when exhausted", func(t *testing.T) {
		sleeps := &recordedSleeps{}
		policy := RetryPolicy{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, Sleep: sleeps.sleep}

		calls := 0
		_, err := WithRetry(context.Background(), policy, func(context.Context) (int, error) {
			calls++
			return 0, fmt.Errorf("attempt %d: %w", calls, rateLimited)
		})
		if !IsRateLimited(err) {
			t.Fatalf("expected rate limit error, got %v", err)
		}
		if !strings.Contains(err.Error(), "attempt 3") {
			t.Errorf("expected last error, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
		if len(sleeps.delays) != 2 {
			t.Errorf("expected 2 sleeps, got %v", sleeps.delays)
		}
	})

	t.Run("stops when sleep is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		policy := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour}

		calls := 0
		_, err := WithRetry(ctx, policy, func(context.Context) (int, error) {
			calls++
			return 0, rateLimited
		})
		if !IsRateLimited(err) {
			t.Errorf("expected rate limit error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("OnRetry", func(t *testing.T) {
		var attempts []int
		policy := RetryPolicy{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			Sleep:        (&recordedSleeps{}).sleep,
			OnRetry: func(attempt int, _ time.Duration, _ error) {
				attempts = append(attempts, attempt)
			},
		}

		_, _ = WithRetry(context.Background(), policy, func(context.Context) (int, error) {
			return 0, rateLimited
		})
		if len(attempts) != 1 || attempts[0] != 1 {
			t.Errorf("expected one retry callback for attempt 1, got %v", attempts)
		}
	})

	t.Run("zero policy uses defaults", func(t *testing.T) {
		p := RetryPolicy{}.normalized()
		if p.MaxAttempts != DefaultMaxAttempts || p.InitialDelay != DefaultInitialDelay || p.Sleep == nil {
			t.Errorf("unexpected normalized policy: %+v", p)
		}
	})
}

func TestErrors(t *testing.T) {
	t.Run("RateLimitError matches sentinel", func(t *testing.T) {
		err := fmt.Errorf("fetch: %w", &RateLimitError{Source: "news", RetryAfter: 2 * time.Second})
		if !errors.Is(err, ErrRateLimited) {
			t.Error("expected wrapped RateLimitError to match ErrRateLimited")
		}

		var rle *RateLimitError
		if !errors.As(err, &rle) || rle.RetryAfter != 2*time.Second {
			t.Errorf("expected RetryAfter 2s, got %+v", rle)
		}
		if !strings.Contains(err.Error(), "retry after 2s") {
			t.Errorf("unexpected message: %s", err)
		}
	})

	t.Run("APIError unwraps to ErrAPIRequest", func(t *testing.T) {
		err := &APIError{Source: "apple music", StatusCode: 500, Message: "boom"}
		if !errors.Is(err, ErrAPIRequest) {
			t.Error("expected APIError to match ErrAPIRequest")
		}
		if IsRateLimited(err) || IsUnauthorized(err) {
			t.Error("APIError should not classify as rate limit or unauthorized")
		}
	})

	t.Run("IsUnauthorized", func(t *testing.T) {
		if !IsUnauthorized(fmt.Errorf("%w: token expired", ErrUnauthorized)) {
			t.Error("expected wrapped ErrUnauthorized to be detected")
		}
	})
}

func TestLogger(t *testing.T) {
	t.Run("NewLoggerFromConfig level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerFromConfig(&buf, LogConfig{Level: "warn"})

		logger.Info("hidden")
		logger.Warn("visible")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("info should be filtered at warn level: %s", out)
		}
		if !strings.Contains(out, "visible") {
			t.Errorf("warn should be logged: %s", out)
		}
	})

	t.Run("NewLoggerFromConfig file", func(t *testing.T) {
		var buf bytes.Buffer
		path := filepath.Join(t.TempDir(), "mdash.log")
		logger := NewLoggerFromConfig(&buf, LogConfig{File: path, MaxSizeMB: 1})
		SetLogLevel(logger, log.DebugLevel)

		logger.Debug("to both")
		if !strings.Contains(buf.String(), "to both") {
			t.Errorf("expected entry on writer: %s", buf.String())
		}
	})

	t.Run("GenerateID", func(t *testing.T) {
		a, b := GenerateID(), GenerateID()
		if a == b || len(a) != 36 {
			t.Errorf("unexpected ids %q %q", a, b)
		}
	})

	t.Run("MarshalJSON", func(t *testing.T) {
		compact, _ := MarshalJSON(map[string]int{"a": 1}, false)
		pretty, _ := MarshalJSON(map[string]int{"a": 1}, true)
		if string(compact) != `{"a":1}` {
			t.Errorf("unexpected compact output %s", compact)
		}
		if !strings.Contains(string(pretty), "\n  \"a\": 1") {
			t.Errorf("unexpected pretty output %s", pretty)
		}
	})
}
