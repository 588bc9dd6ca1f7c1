package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"ventureval/internal/config"
	"ventureval/internal/llmclient"
	"ventureval/internal/pipeline"
	"ventureval/internal/store"
)

func testService(t *testing.T) *AnalysisService {
	t.Helper()
	return &AnalysisService{
		LLM:         llmclient.NewFakeClient(),
		Checkpoints: pipeline.NewMemoryCheckpointStore(),
		Store:       store.New(filepath.Join(t.TempDir(), "analyses.json")),
		Broker:      NewEventBroker(time.Minute),
		Pipeline: config.PipelineConfig{
			Provider:    "fake",
			Model:       "fake-1",
			NumIdeas:    3,
			MaxParallel: 4,
		},
	}
}

func submit(t *testing.T, mux http.Handler, body map[string]any) store.Analysis {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("submit: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var rec store.Analysis
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	return rec
}

func waitCompleted(t *testing.T, svc *AnalysisService, id string) store.Analysis {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := svc.Store.Get(id); ok &&
			(rec.Status == store.StatusCompleted || rec.Status == store.StatusFailed) {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("analysis did not finish in time")
	return store.Analysis{}
}

func TestSubmitAndGet_CompletesWithReport(t *testing.T) {
	svc := testService(t)
	mux := NewMux(NewAnalysisHandler(svc))

	rec := submit(t, mux, map[string]any{
		"source": "report.pdf",
		"text":   "a market report",
		"sector": "fintech",
	})
	if rec.Status != store.StatusPending || rec.ID == "" {
		t.Fatalf("submitted record: %+v", rec)
	}

	done := waitCompleted(t, svc, rec.ID)
	if done.Status != store.StatusCompleted {
		t.Fatalf("status: got=%s err=%s", done.Status, done.Error)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/analyses/"+rec.ID, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: status=%d", rr.Code)
	}
	var got store.Analysis
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var report map[string]any
	if err := json.Unmarshal(got.Report, &report); err != nil {
		t.Fatalf("report: %v", err)
	}
	if report["overall_score"] != 7.0 {
		t.Fatalf("overall_score: %v", report["overall_score"])
	}
}

func TestSubmit_RejectsMissingFields(t *testing.T) {
	mux := NewMux(NewAnalysisHandler(testService(t)))

	for name, body := range map[string]map[string]any{
		"no text":   {"sector": "fintech"},
		"no sector": {"text": "doc"},
	} {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/v1/analyses", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", name, rr.Code)
		}
	}
}

func TestGet_UnknownAnalysisIs404(t *testing.T) {
	mux := NewMux(NewAnalysisHandler(testService(t)))
	req := httptest.NewRequest(http.MethodGet, "/v1/analyses/an_missing", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: %d", rr.Code)
	}
}

func TestCheckpointEndpoints(t *testing.T) {
	svc := testService(t)
	mux := NewMux(NewAnalysisHandler(svc))

	rec := submit(t, mux, map[string]any{"text": "doc", "sector": "fintech"})
	waitCompleted(t, svc, rec.ID)

	req := httptest.NewRequest(http.MethodGet, "/v1/analyses/"+rec.ID+"/checkpoints", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("stages: status=%d", rr.Code)
	}
	var body struct {
		Stages []string `json:"stages"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Stages) != pipeline.TotalSteps {
		t.Fatalf("stages: got=%d want=%d", len(body.Stages), pipeline.TotalSteps)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/analyses/"+rec.ID+"/checkpoints", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("clear: status=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/analyses/"+rec.ID+"/checkpoints", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Stages) != 0 {
		t.Fatalf("stages after clear: %v", body.Stages)
	}
}

func TestHealthz(t *testing.T) {
	mux := NewMux(NewAnalysisHandler(testService(t)))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: %d", rr.Code)
	}
}

func TestEventBroker_ReplayAndLive(t *testing.T) {
	b := NewEventBroker(time.Minute)
	b.Allocate("a1")

	b.Publish("a1", pipeline.ProgressEvent{Stage: "extract", Status: pipeline.ProgressRunning})
	b.Publish("a1", pipeline.ProgressEvent{Stage: "extract", Status: pipeline.ProgressCompleted})

	history, live, cancel, ok := b.Subscribe("a1")
	if !ok {
		t.Fatal("subscribe failed")
	}
	defer cancel()
	if len(history) != 2 {
		t.Fatalf("history: got=%d want=2", len(history))
	}

	b.Publish("a1", pipeline.ProgressEvent{Stage: "ideas", Status: pipeline.ProgressRunning})
	select {
	case ev := <-live:
		if ev.Stage != "ideas" {
			t.Fatalf("live event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no live event delivered")
	}

	b.Complete("a1")
	select {
	case _, open := <-live:
		if open {
			t.Fatal("expected closed channel after completion")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after completion")
	}
}

func TestEventBroker_LateSubscriberAfterCompletion(t *testing.T) {
	b := NewEventBroker(time.Minute)
	b.Allocate("a1")
	b.Publish("a1", pipeline.ProgressEvent{Stage: "extract", Status: pipeline.ProgressCompleted})
	b.Complete("a1")

	history, live, cancel, ok := b.Subscribe("a1")
	if !ok {
		t.Fatal("subscribe failed")
	}
	defer cancel()
	if len(history) != 1 {
		t.Fatalf("history: got=%d want=1", len(history))
	}
	if _, open := <-live; open {
		t.Fatal("live channel must be closed for finished runs")
	}
}

func TestEventBroker_UnknownAnalysis(t *testing.T) {
	b := NewEventBroker(time.Minute)
	if _, _, _, ok := b.Subscribe("nope"); ok {
		t.Fatal("unknown analysis must not subscribe")
	}
	// Publishing to an unknown analysis is a no-op.
	b.Publish("nope", pipeline.ProgressEvent{})
}
