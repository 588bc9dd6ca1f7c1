package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"ventureval/internal/config"
	"ventureval/internal/docstore"
	"ventureval/internal/llmclient"
	"ventureval/internal/pipeline"
	"ventureval/internal/store"
)

// SubmitRequest is one evaluation submission after transport decoding.
type SubmitRequest struct {
	Source        string
	Text          string
	Sector        string
	NumIdeas      int
	IdeaIndex     int
	ExtractedText string
	ForceRefresh  bool

	// SourceContent, when present, is the raw uploaded document kept in the
	// document store alongside the analysis.
	SourceContent []byte
}

// AnalysisService owns the lifecycle of analyses: it records submissions,
// runs the pipeline in the background, streams progress through the broker,
// and persists the final report.
type AnalysisService struct {
	LLM         llmclient.LLMClient
	Checkpoints pipeline.CheckpointStore
	Store       *store.Store
	Docs        docstore.Store
	Broker      *EventBroker
	Pipeline    config.PipelineConfig
}

// Submit validates and registers a new analysis, then starts its run.
func (s *AnalysisService) Submit(ctx context.Context, req SubmitRequest) (store.Analysis, error) {
	req.Text = strings.TrimSpace(req.Text)
	req.Sector = strings.TrimSpace(req.Sector)
	if req.Text == "" {
		return store.Analysis{}, fmt.Errorf("document text is required")
	}
	if req.Sector == "" {
		return store.Analysis{}, fmt.Errorf("sector is required")
	}
	if req.Source == "" {
		req.Source = "inline"
	}

	id := newAnalysisID()
	identity := pipeline.ComputeIdentity([]byte(req.Text), s.Pipeline.Provider, s.Pipeline.Model, req.Sector)
	rec := store.Analysis{
		ID:        id,
		Source:    req.Source,
		Sector:    req.Sector,
		Provider:  s.Pipeline.Provider,
		Model:     s.Pipeline.Model,
		Status:    store.StatusPending,
		Identity:  string(identity),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.Put(rec); err != nil {
		return store.Analysis{}, fmt.Errorf("record analysis: %w", err)
	}
	s.Broker.Allocate(id)

	if s.Docs != nil && len(req.SourceContent) > 0 {
		if err := s.Docs.Put(ctx, id, req.Source, req.SourceContent); err != nil {
			log.Printf("analysis %s: keep source document: %v", id, err)
		}
	}

	go s.run(id, req)
	return rec, nil
}

// run executes the pipeline detached from the submitting request.
func (s *AnalysisService) run(id string, req SubmitRequest) {
	ctx := context.Background()
	s.Store.Update(id, func(a *store.Analysis) { a.Status = store.StatusRunning })

	orch := &pipeline.Orchestrator{
		LLM:         s.LLM,
		Checkpoints: s.Checkpoints,
		Observer: pipeline.ObserverFunc(func(ev pipeline.ProgressEvent) {
			s.Broker.Publish(id, ev)
		}),
	}
	report, err := orch.Run(ctx, pipeline.Document{Source: req.Source, Text: req.Text}, pipeline.RunConfig{
		Sector:        req.Sector,
		Provider:      s.Pipeline.Provider,
		Model:         s.Pipeline.Model,
		NumIdeas:      orDefault(req.NumIdeas, s.Pipeline.NumIdeas),
		IdeaIndex:     req.IdeaIndex,
		ExtractedText: req.ExtractedText,
		ForceRefresh:  req.ForceRefresh,
		MaxParallel:   s.Pipeline.MaxParallel,
		StageTimeout:  s.Pipeline.StageTimeout,
		RunTimeout:    s.Pipeline.RunTimeout,
	})
	defer s.Broker.Complete(id)

	if err != nil {
		log.Printf("analysis %s: run failed: %v", id, err)
		s.Store.Update(id, func(a *store.Analysis) {
			a.Status = store.StatusFailed
			a.Error = err.Error()
			a.CompletedAt = time.Now().UTC()
		})
		return
	}

	raw, err := json.Marshal(report)
	if err != nil {
		s.Store.Update(id, func(a *store.Analysis) {
			a.Status = store.StatusFailed
			a.Error = "encode report: " + err.Error()
			a.CompletedAt = time.Now().UTC()
		})
		return
	}
	s.Store.Update(id, func(a *store.Analysis) {
		a.Status = store.StatusCompleted
		a.Report = raw
		a.CompletedAt = time.Now().UTC()
	})
	if s.Docs != nil {
		if err := s.Docs.Put(ctx, id, "report.json", raw); err != nil {
			log.Printf("analysis %s: keep report: %v", id, err)
		}
	}
}

// CheckpointStages lists the checkpointed stage IDs for an analysis.
func (s *AnalysisService) CheckpointStages(ctx context.Context, id string) ([]string, error) {
	rec, ok := s.Store.Get(id)
	if !ok {
		return nil, fmt.Errorf("analysis %s not found", id)
	}
	maint, ok := s.Checkpoints.(pipeline.CheckpointMaintenance)
	if !ok {
		return nil, fmt.Errorf("checkpoint store does not support maintenance")
	}
	return maint.Stages(ctx, pipeline.Identity(rec.Identity))
}

// ClearCheckpoints removes every checkpoint under the analysis identity.
func (s *AnalysisService) ClearCheckpoints(ctx context.Context, id string) error {
	rec, ok := s.Store.Get(id)
	if !ok {
		return fmt.Errorf("analysis %s not found", id)
	}
	maint, ok := s.Checkpoints.(pipeline.CheckpointMaintenance)
	if !ok {
		return fmt.Errorf("checkpoint store does not support maintenance")
	}
	return maint.Clear(ctx, pipeline.Identity(rec.Identity))
}

func newAnalysisID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("an_%d", time.Now().UnixNano())
	}
	return "an_" + hex.EncodeToString(b[:])
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
