package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"ventureval/internal/evaluation"
	"ventureval/internal/llmclient"
)

type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) Publish(ev ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) byStatus(status ProgressStatus) []ProgressEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ProgressEvent
	for _, ev := range l.events {
		if ev.Status == status {
			out = append(out, ev)
		}
	}
	return out
}

func (l *eventLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func testDoc() Document {
	return Document{Source: "report.pdf", Text: "a market report about fintech infrastructure"}
}

func testConfig() RunConfig {
	return RunConfig{
		Sector:   "fintech",
		Provider: "fake",
		Model:    "fake-1",
	}
}

func sanitize(r *evaluation.Report) evaluation.Report {
	out := *r
	out.ProcessingSeconds = 0
	out.Timestamp = ""
	out.StageTimings = nil
	return out
}

func TestOrchestrator_FullRunEmitsAllSteps(t *testing.T) {
	events := &eventLog{}
	o := &Orchestrator{
		LLM:         llmclient.NewFakeClient(),
		Checkpoints: NewMemoryCheckpointStore(),
		Observer:    events,
	}
	report, err := o.Run(context.Background(), testDoc(), testConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.DimensionScores) != len(evaluation.Dimensions) {
		t.Fatalf("scores: got=%d want=%d", len(report.DimensionScores), len(evaluation.Dimensions))
	}
	for i, d := range evaluation.Dimensions {
		if report.DimensionScores[i].Dimension != d.Name {
			t.Fatalf("score order at %d: got=%s want=%s", i, report.DimensionScores[i].Dimension, d.Name)
		}
	}
	if report.OverallScore != 7.0 {
		t.Fatalf("overall: got=%v want=7.0", report.OverallScore)
	}
	// Uniform 7.0 scores sit below the 7.5 Strong Pursue threshold and every
	// critical dimension clears 5, so the run lands in the middle tier.
	if report.Recommendation != evaluation.RecommendationConsider {
		t.Fatalf("recommendation: got=%s want=%s", report.Recommendation, evaluation.RecommendationConsider)
	}
	if report.Rationale == "" || report.IdeaSummary == "" {
		t.Fatalf("narrative fields missing: %+v", report)
	}
	if report.GeneratedIdeasCount != 1 || report.EvaluatedIdeaIndex != 0 {
		t.Fatalf("idea metadata: count=%d index=%d", report.GeneratedIdeasCount, report.EvaluatedIdeaIndex)
	}
	if len(report.StageTimings) != TotalSteps {
		t.Fatalf("stage timings: got=%d want=%d", len(report.StageTimings), TotalSteps)
	}

	running := events.byStatus(ProgressRunning)
	completed := events.byStatus(ProgressCompleted)
	if len(running) != TotalSteps || len(completed) != TotalSteps {
		t.Fatalf("events: running=%d completed=%d want=%d each", len(running), len(completed), TotalSteps)
	}
	seen := map[int]bool{}
	for _, ev := range completed {
		if ev.Step < 1 || ev.Step > TotalSteps {
			t.Fatalf("step out of range: %+v", ev)
		}
		seen[ev.Step] = true
	}
	if len(seen) != TotalSteps {
		t.Fatalf("distinct completed steps: got=%d want=%d", len(seen), TotalSteps)
	}
}

func TestOrchestrator_SecondRunSkipsEverything(t *testing.T) {
	fake := llmclient.NewFakeClient()
	store := NewMemoryCheckpointStore()
	o := &Orchestrator{LLM: fake, Checkpoints: store}

	first, err := o.Run(context.Background(), testDoc(), testConfig())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	callsAfterFirst := fake.Calls()

	events := &eventLog{}
	o.Observer = events
	second, err := o.Run(context.Background(), testDoc(), testConfig())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if fake.Calls() != callsAfterFirst {
		t.Fatalf("second run invoked the LLM: calls=%d want=%d", fake.Calls(), callsAfterFirst)
	}
	skipped := events.byStatus(ProgressSkipped)
	if len(skipped) != TotalSteps {
		t.Fatalf("skipped events: got=%d want=%d", len(skipped), TotalSteps)
	}
	if events.len() != TotalSteps {
		t.Fatalf("total events: got=%d want=%d (skips only)", events.len(), TotalSteps)
	}
	for _, ev := range skipped {
		if ev.Status != ProgressSkipped {
			t.Fatalf("event: %+v", ev)
		}
	}
	if !reflect.DeepEqual(sanitize(first), sanitize(second)) {
		t.Fatalf("reports differ:\nfirst:  %+v\nsecond: %+v", sanitize(first), sanitize(second))
	}
	for _, timing := range second.StageTimings {
		if !timing.Skipped {
			t.Fatalf("stage %s ran on the second pass", timing.Stage)
		}
	}
}

func TestOrchestrator_ConfigChangeInvalidatesCheckpoints(t *testing.T) {
	fake := llmclient.NewFakeClient()
	o := &Orchestrator{LLM: fake, Checkpoints: NewMemoryCheckpointStore()}

	if _, err := o.Run(context.Background(), testDoc(), testConfig()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	callsAfterFirst := fake.Calls()

	cfg := testConfig()
	cfg.Model = "fake-2"
	if _, err := o.Run(context.Background(), testDoc(), cfg); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if fake.Calls() != callsAfterFirst*2 {
		t.Fatalf("model change must re-run all stages: calls=%d want=%d", fake.Calls(), callsAfterFirst*2)
	}
}

func TestOrchestrator_ForceRefreshReruns(t *testing.T) {
	fake := llmclient.NewFakeClient()
	o := &Orchestrator{LLM: fake, Checkpoints: NewMemoryCheckpointStore()}

	if _, err := o.Run(context.Background(), testDoc(), testConfig()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	callsAfterFirst := fake.Calls()

	cfg := testConfig()
	cfg.ForceRefresh = true
	if _, err := o.Run(context.Background(), testDoc(), cfg); err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if fake.Calls() != callsAfterFirst*2 {
		t.Fatalf("forced run must bypass checkpoints: calls=%d want=%d", fake.Calls(), callsAfterFirst*2)
	}
}

func TestOrchestrator_ProvidedExtractionSkipsStageOne(t *testing.T) {
	fake := llmclient.NewFakeClient()
	events := &eventLog{}
	store := NewMemoryCheckpointStore()
	o := &Orchestrator{LLM: fake, Checkpoints: store, Observer: events}

	cfg := testConfig()
	cfg.ExtractedText = "pre-extracted market context"
	report, err := o.Run(context.Background(), testDoc(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.ExtractionProvided {
		t.Fatal("report must flag the provided extraction")
	}

	skipped := events.byStatus(ProgressSkipped)
	if len(skipped) != 1 || skipped[0].Stage != StageExtract {
		t.Fatalf("skipped: got=%+v want one extract skip", skipped)
	}
	// Provided output is not checkpointed under this identity.
	id := ComputeIdentity([]byte(testDoc().Text), cfg.Provider, cfg.Model, cfg.Sector)
	if _, ok, _ := store.Get(context.Background(), CheckpointKey{Identity: id, Stage: StageExtract}); ok {
		t.Fatal("provided extraction must not be persisted")
	}
}

func TestOrchestrator_DimensionFailureStopsRun(t *testing.T) {
	fake := llmclient.NewFakeClient()
	fake.Responses = map[string]json.RawMessage{
		"dim_competitive_advantage": json.RawMessage(`not json`),
	}
	o := &Orchestrator{LLM: fake, Checkpoints: NewMemoryCheckpointStore()}

	_, err := o.Run(context.Background(), testDoc(), testConfig())
	if err == nil {
		t.Fatal("expected run failure")
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("error type: got=%T want *StageError", err)
	}
	if se.Stage != "dim_competitive_advantage" {
		t.Fatalf("failed stage: got=%s", se.Stage)
	}
}

// blockingClient parks dimension calls until the context is cancelled so the
// cancellation path can be observed mid-fan-out.
type blockingClient struct {
	inner *llmclient.FakeClient
}

func (c *blockingClient) Name() string { return "blocking" }
func (c *blockingClient) Close() error { return nil }

func (c *blockingClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if strings.HasPrefix(llmclient.StageFrom(ctx), "dim_") {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return c.inner.GenerateJSON(ctx, prompt, input)
}

func TestOrchestrator_CancellationProducesNoReportAndNoLateEvents(t *testing.T) {
	events := &eventLog{}
	store := NewMemoryCheckpointStore()
	o := &Orchestrator{
		LLM:         &blockingClient{inner: llmclient.NewFakeClient()},
		Checkpoints: store,
		Observer:    events,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	report, err := o.Run(ctx, testDoc(), testConfig())
	if report != nil {
		t.Fatal("cancelled run must not produce a report")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error: got=%v want context.Canceled", err)
	}

	countAtReturn := events.len()
	time.Sleep(50 * time.Millisecond)
	if events.len() != countAtReturn {
		t.Fatal("events emitted after cancellation")
	}
	if len(events.byStatus(ProgressError)) != 0 {
		t.Fatal("cancellation must not surface as stage error events")
	}

	// No dimension checkpoint was written.
	id := ComputeIdentity([]byte(testDoc().Text), "fake", "fake-1", "fintech")
	for _, d := range evaluation.Dimensions {
		key := CheckpointKey{Identity: id, Stage: DimensionStageID(d.Key)}
		if _, ok, _ := store.Get(context.Background(), key); ok {
			t.Fatalf("checkpoint written for %s after cancel", key.Stage)
		}
	}
}

func TestOrchestrator_RunTimeout(t *testing.T) {
	o := &Orchestrator{
		LLM:         &blockingClient{inner: llmclient.NewFakeClient()},
		Checkpoints: NewMemoryCheckpointStore(),
	}
	cfg := testConfig()
	cfg.RunTimeout = 50 * time.Millisecond
	_, err := o.Run(context.Background(), testDoc(), cfg)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error: got=%v want context.DeadlineExceeded", err)
	}
}
