package llmclient

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
)

// FakeClient returns deterministic, minimal JSON payloads per stage for
// offline runs and tests.
type FakeClient struct {
	// Score is returned for every dimension evaluation. Defaults to 7.
	Score float64
	// Responses overrides the canned payload for a specific stage tag.
	Responses map[string]json.RawMessage

	calls atomic.Int64
}

func NewFakeClient() *FakeClient {
	return &FakeClient{Score: 7}
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

// Calls reports how many GenerateJSON invocations the fake has served.
func (f *FakeClient) Calls() int64 { return f.calls.Load() }

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	f.calls.Add(1)
	stage := StageFrom(ctx)
	if raw, ok := f.Responses[stage]; ok {
		return raw, nil
	}

	var obj any
	switch {
	case stage == "extract":
		obj = map[string]any{
			"market_context": "fake market context",
			"key_insights":   []string{"fake insight"},
		}
	case stage == "ideas":
		obj = map[string]any{
			"ideas": []map[string]any{
				{
					"title":           "Fake Venture",
					"description":     "fake description",
					"target_customer": "fake customer",
				},
			},
		}
	case strings.HasPrefix(stage, "dim_"):
		score := f.Score
		if score == 0 {
			score = 7
		}
		obj = map[string]any{
			"score":      score,
			"reasoning":  "fake reasoning for " + strings.TrimPrefix(stage, "dim_"),
			"confidence": 0.8,
		}
	case stage == "synth_summary":
		obj = map[string]any{"summary": "fake summary"}
	case stage == "synth_strengths":
		obj = map[string]any{"strengths": []string{"fake strength"}}
	case stage == "synth_concerns":
		obj = map[string]any{"concerns": []string{"fake concern"}}
	case stage == "consolidate":
		obj = map[string]any{"rationale": "fake rationale"}
	default:
		obj = map[string]any{}
	}
	b, _ := json.Marshal(obj)
	return json.RawMessage(b), nil
}
