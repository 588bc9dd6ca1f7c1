package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ventureval/internal/llmclient"
)

// StageStatus is the terminal state of one stage execution.
type StageStatus string

const (
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// Skip reasons recorded on skipped stage results.
const (
	SkipReasonCheckpoint = "checkpoint"
	SkipReasonProvided   = "provided"
)

// StageResult is the outcome of executing (or skipping) one stage.
type StageResult struct {
	Stage       string
	Status      StageStatus
	Output      json.RawMessage
	Err         error
	SkipReason  string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
}

// StageError wraps a stage failure with the stage that produced it. The
// pipeline stops at the first failed stage, so callers can attribute a run
// failure to exactly one stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// WorkFunc produces a stage output. The returned value must marshal to JSON
// deterministically since it becomes the checkpoint payload.
type WorkFunc func(ctx context.Context) (any, error)

// Executor runs stages with checkpoint short-circuiting. On a checkpoint hit
// the stage is skipped and the stored payload returned; on a miss the work
// function runs and its output is persisted before the result is reported.
type Executor struct {
	Checkpoints CheckpointStore
	// StageTimeout bounds one work invocation. Zero means no per-stage bound.
	StageTimeout time.Duration
	// Force bypasses checkpoint reads. Completed stages re-run and their
	// fresh output replaces nothing: a divergent payload is a conflict.
	Force bool
	// Emit receives every stage transition. May be nil.
	Emit func(stage string, status ProgressStatus, d time.Duration, errMsg string)
}

// Execute runs one stage under an identity. Cancellation is checked before
// the checkpoint read, before the work runs, and again before the checkpoint
// write, so a cancelled run never persists partial state or emits further
// events.
func (e *Executor) Execute(ctx context.Context, id Identity, stage string, work WorkFunc) StageResult {
	if err := ctx.Err(); err != nil {
		return StageResult{Stage: stage, Status: StageFailed, Err: err}
	}

	key := CheckpointKey{Identity: id, Stage: stage}
	if !e.Force && e.Checkpoints != nil {
		rec, ok, err := e.Checkpoints.Get(ctx, key)
		if err != nil {
			e.emit(stage, ProgressError, 0, err.Error())
			return StageResult{Stage: stage, Status: StageFailed, Err: fmt.Errorf("checkpoint read: %w", err)}
		}
		if ok {
			log.Printf("stage %s: checkpoint hit, skipping", stage)
			e.emit(stage, ProgressSkipped, 0, "")
			return StageResult{
				Stage:      stage,
				Status:     StageSkipped,
				Output:     rec.Payload,
				SkipReason: SkipReasonCheckpoint,
			}
		}
	}

	e.emit(stage, ProgressRunning, 0, "")
	started := time.Now()

	workCtx := llmclient.WithStage(ctx, stage)
	cancel := context.CancelFunc(func() {})
	if e.StageTimeout > 0 {
		workCtx, cancel = context.WithTimeout(workCtx, e.StageTimeout)
	}
	out, err := work(workCtx)
	cancel()

	completed := time.Now()
	res := StageResult{
		Stage:       stage,
		StartedAt:   started,
		CompletedAt: completed,
		Duration:    completed.Sub(started),
	}
	if err != nil {
		res.Status = StageFailed
		res.Err = err
		// A cancelled run fails silently: no event, no checkpoint.
		if ctx.Err() == nil {
			e.emit(stage, ProgressError, res.Duration, err.Error())
		}
		return res
	}

	payload, err := json.Marshal(out)
	if err != nil {
		res.Status = StageFailed
		res.Err = fmt.Errorf("marshal output: %w", err)
		e.emit(stage, ProgressError, res.Duration, res.Err.Error())
		return res
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.Status = StageFailed
		res.Err = ctxErr
		return res
	}
	if e.Checkpoints != nil {
		if e.Force {
			if err := e.Checkpoints.Invalidate(ctx, key); err != nil {
				res.Status = StageFailed
				res.Err = fmt.Errorf("checkpoint invalidate: %w", err)
				e.emit(stage, ProgressError, res.Duration, res.Err.Error())
				return res
			}
		}
		if err := e.Checkpoints.Put(ctx, key, payload); err != nil {
			res.Status = StageFailed
			res.Err = fmt.Errorf("checkpoint write: %w", err)
			e.emit(stage, ProgressError, res.Duration, res.Err.Error())
			return res
		}
	}

	res.Status = StageCompleted
	res.Output = payload
	e.emit(stage, ProgressCompleted, res.Duration, "")
	return res
}

// SkipProvided reports a stage as skipped because its output was supplied by
// the caller instead of computed. The payload is not checkpointed: it was
// never produced under this identity.
func (e *Executor) SkipProvided(stage string, payload json.RawMessage) StageResult {
	e.emit(stage, ProgressSkipped, 0, "")
	return StageResult{
		Stage:      stage,
		Status:     StageSkipped,
		Output:     payload,
		SkipReason: SkipReasonProvided,
	}
}

func (e *Executor) emit(stage string, status ProgressStatus, d time.Duration, errMsg string) {
	if e.Emit == nil {
		return
	}
	e.Emit(stage, status, d, errMsg)
}
