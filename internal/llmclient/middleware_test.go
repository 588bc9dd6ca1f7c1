package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type flakyClient struct {
	failures int
	calls    int
	err      error
}

func (f *flakyClient) Name() string { return "flaky" }
func (f *flakyClient) Close() error { return nil }

func (f *flakyClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return json.RawMessage(`{}`), nil
}

func TestRetry_RecoversFromTransientErrors(t *testing.T) {
	inner := &flakyClient{failures: 2, err: errors.New("rate limited")}
	cli := Wrap(inner, Retry(3, time.Millisecond))

	raw, err := cli.GenerateJSON(context.Background(), "p", nil)
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("raw: got=%s want={}", raw)
	}
	if inner.calls != 3 {
		t.Fatalf("calls: got=%d want=3", inner.calls)
	}
}

func TestRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	inner := &flakyClient{failures: 10, err: NewPermanentError(errors.New("malformed response"))}
	cli := Wrap(inner, Retry(5, time.Millisecond))

	_, err := cli.GenerateJSON(context.Background(), "p", nil)
	var pErr *PermanentError
	if !errors.As(err, &pErr) {
		t.Fatalf("error: got=%v want PermanentError", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls: got=%d want=1", inner.calls)
	}
}

func TestRetry_StopsOnCanceledContext(t *testing.T) {
	inner := &flakyClient{failures: 10, err: errors.New("timeout")}
	cli := Wrap(inner, Retry(5, time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cli.GenerateJSON(ctx, "p", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error: got=%v want context.Canceled", err)
	}
}

func TestRateLimiter_BurstThenBlocks(t *testing.T) {
	// Refill is one token per ~17 minutes, so only the burst is available.
	l := newRPSLimiter(0.001, 2)
	for i := 0; i < 2; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("burst acquire %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("drained acquire: got=%v want context.Canceled", err)
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	l := newRPSLimiter(1000, 1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	// The bucket is empty; at 1000 rps the next token accrues within ~1ms.
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("refilled acquire: %v", err)
	}
}

func TestRateLimiter_DisabledWhenRateNonPositive(t *testing.T) {
	l := newRPSLimiter(0, 4)
	if l != nil {
		t.Fatalf("limiter: got=%v want nil", l)
	}
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("nil limiter acquire: %v", err)
	}
}

func TestFakeClient_StagePayloads(t *testing.T) {
	fake := NewFakeClient()

	raw, err := fake.GenerateJSON(WithStage(context.Background(), "dim_market_potential"), "p", nil)
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	var out struct {
		Score      float64 `json:"score"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Score != 7 {
		t.Fatalf("score: got=%v want=7", out.Score)
	}
	if fake.Calls() != 1 {
		t.Fatalf("calls: got=%d want=1", fake.Calls())
	}
}
