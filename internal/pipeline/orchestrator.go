package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ventureval/internal/agents"
	"ventureval/internal/evaluation"
	"ventureval/internal/llmclient"
)

// Document is the evaluated input: its raw text plus a display name for the
// report. Text is the basis of the checkpoint identity.
type Document struct {
	Source string
	Text   string
}

// RunConfig controls one pipeline run.
type RunConfig struct {
	Sector   string
	Provider string
	Model    string

	// NumIdeas is how many candidate ideas to generate. Defaults to 3.
	NumIdeas int
	// IdeaIndex selects which generated idea to evaluate. Out-of-range
	// values clamp.
	IdeaIndex int

	// ExtractedText, when set, replaces the extraction stage output and the
	// stage is skipped as provided.
	ExtractedText string

	// ForceRefresh re-runs every stage and overwrites its checkpoints.
	ForceRefresh bool

	// MaxParallel bounds the dimension fan-out. Defaults to 4.
	MaxParallel int

	// StageTimeout bounds each stage; RunTimeout bounds the whole run.
	// Zero disables the respective bound.
	StageTimeout time.Duration
	RunTimeout   time.Duration
}

// Orchestrator drives a full evaluation run: extraction, idea generation,
// the dimension fan-out, synthesis, and consolidation. It is the only writer
// of progress events and checkpoints for its runs.
type Orchestrator struct {
	LLM         llmclient.LLMClient
	Checkpoints CheckpointStore
	// Observer receives progress events. May be nil.
	Observer Observer
}

// Run executes the pipeline and returns the final report. A cancelled run
// returns the context error and no report.
func (o *Orchestrator) Run(ctx context.Context, doc Document, cfg RunConfig) (*evaluation.Report, error) {
	started := time.Now()
	if cfg.NumIdeas <= 0 {
		cfg.NumIdeas = 3
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	id := ComputeIdentity([]byte(doc.Text), cfg.Provider, cfg.Model, cfg.Sector)
	log.Printf("run %s: starting (%s, sector=%s)", shortID(id), doc.Source, cfg.Sector)

	exec := &Executor{
		Checkpoints:  o.Checkpoints,
		StageTimeout: cfg.StageTimeout,
		Force:        cfg.ForceRefresh,
		Emit:         o.emit,
	}

	var timings []StageTimingRec
	record := func(res StageResult) {
		timings = append(timings, StageTimingRec{
			Stage:    res.Stage,
			Skipped:  res.Status == StageSkipped,
			Duration: res.Duration,
		})
	}

	// Stage 1: extraction, unless the caller supplied the extracted text.
	var extraction agents.ExtractionOut
	extractionProvided := cfg.ExtractedText != ""
	if extractionProvided {
		extraction = agents.ExtractionOut{MarketContext: cfg.ExtractedText}
		payload, _ := json.Marshal(extraction)
		record(exec.SkipProvided(StageExtract, payload))
	} else {
		ex := &agents.Extraction{LLM: o.LLM}
		res := exec.Execute(ctx, id, StageExtract, func(ctx context.Context) (any, error) {
			return ex.Run(ctx, agents.ExtractionIn{Document: doc.Text, Sector: cfg.Sector})
		})
		record(res)
		if res.Err != nil {
			return nil, o.fail(ctx, res)
		}
		if err := json.Unmarshal(res.Output, &extraction); err != nil {
			return nil, &StageError{Stage: StageExtract, Err: fmt.Errorf("decode output: %w", err)}
		}
	}

	// Stage 2: idea generation.
	gen := &agents.IdeaGeneration{LLM: o.LLM}
	ideasRes := exec.Execute(ctx, id, StageIdeas, func(ctx context.Context) (any, error) {
		return gen.Run(ctx, agents.IdeasIn{
			MarketContext: extraction.MarketContext,
			KeyInsights:   extraction.KeyInsights,
			Sector:        cfg.Sector,
			NumIdeas:      cfg.NumIdeas,
		})
	})
	record(ideasRes)
	if ideasRes.Err != nil {
		return nil, o.fail(ctx, ideasRes)
	}
	var ideas agents.IdeasOut
	if err := json.Unmarshal(ideasRes.Output, &ideas); err != nil {
		return nil, &StageError{Stage: StageIdeas, Err: fmt.Errorf("decode output: %w", err)}
	}
	idea, ideaIndex, err := agents.SelectIdea(ideas.Ideas, cfg.IdeaIndex)
	if err != nil {
		return nil, &StageError{Stage: StageIdeas, Err: err}
	}

	// Stages 3-13: one evaluation per dimension, fanned out.
	scores, dimTimings, err := o.runDimensions(ctx, exec, id, idea, extraction, cfg)
	timings = append(timings, dimTimings...)
	if err != nil {
		return nil, err
	}

	// Stages 14-16: synthesis sub-stages, fanned out.
	summary, strengths, concerns, synTimings, err := o.runSynthesis(ctx, exec, id, idea, scores, cfg)
	timings = append(timings, synTimings...)
	if err != nil {
		return nil, err
	}

	// Deterministic aggregation, then stage 17: rationale.
	agg, err := evaluation.Aggregate(scores)
	if err != nil {
		return nil, &StageError{Stage: StageConsolidate, Err: err}
	}
	cons := &agents.Consolidation{LLM: o.LLM}
	consRes := exec.Execute(ctx, id, StageConsolidate, func(ctx context.Context) (any, error) {
		return cons.Run(ctx, agents.ConsolidationIn{
			Idea:           idea,
			Scores:         scores,
			OverallScore:   agg.OverallScore,
			Recommendation: agg.Recommendation,
		})
	})
	record(consRes)
	if consRes.Err != nil {
		return nil, o.fail(ctx, consRes)
	}
	var consolidation agents.ConsolidationOut
	if err := json.Unmarshal(consRes.Output, &consolidation); err != nil {
		return nil, &StageError{Stage: StageConsolidate, Err: fmt.Errorf("decode output: %w", err)}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &evaluation.Report{
		IdeaSummary:         summary,
		Source:              doc.Source,
		Sector:              cfg.Sector,
		DimensionScores:     scores,
		OverallScore:        agg.OverallScore,
		Recommendation:      agg.Recommendation,
		Rationale:           consolidation.Rationale,
		Strengths:           strengths,
		Concerns:            concerns,
		ModelUsed:           cfg.Provider + "/" + cfg.Model,
		GeneratedIdeasCount: len(ideas.Ideas),
		EvaluatedIdeaIndex:  ideaIndex,
		ExtractionProvided:  extractionProvided,
		ProcessingSeconds:   time.Since(started).Seconds(),
		Timestamp:           time.Now().UTC().Format(time.RFC3339),
		StageTimings:        toStageTimings(timings),
	}
	log.Printf("run %s: %s (%.1f/10) in %.1fs", shortID(id),
		report.Recommendation, report.OverallScore, report.ProcessingSeconds)
	return report, nil
}

// StageTimingRec is the orchestrator's internal timing record before it is
// flattened into the report.
type StageTimingRec struct {
	Stage    string
	Skipped  bool
	Duration time.Duration
}

func (o *Orchestrator) runDimensions(
	ctx context.Context,
	exec *Executor,
	id Identity,
	idea agents.BusinessIdea,
	extraction agents.ExtractionOut,
	cfg RunConfig,
) ([]evaluation.DimensionScore, []StageTimingRec, error) {
	eval := &agents.DimensionEval{LLM: o.LLM}
	scores := make([]evaluation.DimensionScore, len(evaluation.Dimensions))
	timings := make([]StageTimingRec, len(evaluation.Dimensions))
	var mu sync.Mutex
	var firstFail *StageResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxParallel)
	for i, dim := range evaluation.Dimensions {
		g.Go(func() error {
			stage := DimensionStageID(dim.Key)
			res := exec.Execute(gctx, id, stage, func(ctx context.Context) (any, error) {
				return eval.Run(ctx, agents.DimensionIn{
					Dimension:     dim,
					Idea:          idea,
					MarketContext: extraction.MarketContext,
					Sector:        cfg.Sector,
				})
			})
			timings[i] = StageTimingRec{
				Stage:    res.Stage,
				Skipped:  res.Status == StageSkipped,
				Duration: res.Duration,
			}
			if res.Err != nil {
				mu.Lock()
				if firstFail == nil {
					firstFail = &res
				}
				mu.Unlock()
				return res.Err
			}
			var out agents.DimensionOut
			if err := json.Unmarshal(res.Output, &out); err != nil {
				return fmt.Errorf("decode %s output: %w", stage, err)
			}
			scores[i] = evaluation.DimensionScore{
				Dimension:  dim.Name,
				Score:      out.Score,
				Reasoning:  out.Reasoning,
				Confidence: out.Confidence,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, timings, ctx.Err()
		}
		if firstFail != nil {
			return nil, timings, o.fail(ctx, *firstFail)
		}
		return nil, timings, err
	}
	return scores, timings, nil
}

func (o *Orchestrator) runSynthesis(
	ctx context.Context,
	exec *Executor,
	id Identity,
	idea agents.BusinessIdea,
	scores []evaluation.DimensionScore,
	cfg RunConfig,
) (summary string, strengths, concerns []string, timings []StageTimingRec, err error) {
	syn := &agents.Synthesis{LLM: o.LLM}
	in := agents.SynthesisIn{Idea: idea, Scores: scores, Sector: cfg.Sector}
	timings = make([]StageTimingRec, 3)
	var mu sync.Mutex
	var firstFail *StageResult

	type subStage struct {
		stage string
		work  WorkFunc
		apply func(json.RawMessage) error
	}
	subs := []subStage{
		{
			stage: StageSynthSummary,
			work:  func(ctx context.Context) (any, error) { return syn.Summary(ctx, in) },
			apply: func(raw json.RawMessage) error {
				var out agents.SummaryOut
				if e := json.Unmarshal(raw, &out); e != nil {
					return e
				}
				summary = out.Summary
				return nil
			},
		},
		{
			stage: StageSynthStrengths,
			work:  func(ctx context.Context) (any, error) { return syn.Strengths(ctx, in) },
			apply: func(raw json.RawMessage) error {
				var out agents.StrengthsOut
				if e := json.Unmarshal(raw, &out); e != nil {
					return e
				}
				strengths = out.Strengths
				return nil
			},
		},
		{
			stage: StageSynthConcerns,
			work:  func(ctx context.Context) (any, error) { return syn.Concerns(ctx, in) },
			apply: func(raw json.RawMessage) error {
				var out agents.ConcernsOut
				if e := json.Unmarshal(raw, &out); e != nil {
					return e
				}
				concerns = out.Concerns
				return nil
			},
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range subs {
		g.Go(func() error {
			res := exec.Execute(gctx, id, sub.stage, sub.work)
			timings[i] = StageTimingRec{
				Stage:    res.Stage,
				Skipped:  res.Status == StageSkipped,
				Duration: res.Duration,
			}
			if res.Err != nil {
				mu.Lock()
				if firstFail == nil {
					firstFail = &res
				}
				mu.Unlock()
				return res.Err
			}
			if e := sub.apply(res.Output); e != nil {
				return fmt.Errorf("decode %s output: %w", sub.stage, e)
			}
			return nil
		})
	}
	if werr := g.Wait(); werr != nil {
		if ctx.Err() != nil {
			return "", nil, nil, timings, ctx.Err()
		}
		if firstFail != nil {
			return "", nil, nil, timings, o.fail(ctx, *firstFail)
		}
		return "", nil, nil, timings, werr
	}
	return summary, strengths, concerns, timings, nil
}

// fail converts a failed stage result into the run error. Cancellation wins
// over the stage error so callers see context.Canceled, not a wrapped stage
// failure.
func (o *Orchestrator) fail(ctx context.Context, res StageResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return &StageError{Stage: res.Stage, Err: res.Err}
}

func (o *Orchestrator) emit(stage string, status ProgressStatus, d time.Duration, errMsg string) {
	if o.Observer == nil {
		return
	}
	o.Observer.Publish(eventFor(stage, status, d, errMsg))
}

func toStageTimings(recs []StageTimingRec) []evaluation.StageTiming {
	out := make([]evaluation.StageTiming, 0, len(recs))
	for _, r := range recs {
		out = append(out, evaluation.StageTiming{
			Stage:      r.Stage,
			Skipped:    r.Skipped,
			DurationMS: r.Duration.Milliseconds(),
			Duration:   r.Duration,
		})
	}
	return out
}

func shortID(id Identity) string {
	if len(id) > 12 {
		return string(id[:12])
	}
	return string(id)
}
