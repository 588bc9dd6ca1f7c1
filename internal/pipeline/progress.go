package pipeline

import (
	"sync"
	"time"

	"ventureval/internal/evaluation"
)

// ProgressStatus is the lifecycle state carried by a progress event.
type ProgressStatus string

const (
	ProgressRunning   ProgressStatus = "running"
	ProgressCompleted ProgressStatus = "completed"
	ProgressSkipped   ProgressStatus = "skipped"
	ProgressError     ProgressStatus = "error"
)

// ProgressEvent is one observable step transition of a run. Step numbers are
// fixed per stage so consumers can render a stable progress bar.
type ProgressEvent struct {
	Step        int            `json:"step"`
	TotalSteps  int            `json:"total_steps"`
	Stage       string         `json:"stage"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      ProgressStatus `json:"status"`
	DurationMS  int64          `json:"duration_ms,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Stage IDs for the non-dimension stages. Dimension stages use
// DimensionStageID.
const (
	StageExtract        = "extract"
	StageIdeas          = "ideas"
	StageSynthSummary   = "synth_summary"
	StageSynthStrengths = "synth_strengths"
	StageSynthConcerns  = "synth_concerns"
	StageConsolidate    = "consolidate"
)

// DimensionStageID returns the stage ID for a dimension key.
func DimensionStageID(key string) string {
	return "dim_" + key
}

type stepInfo struct {
	Step        int
	Title       string
	Description string
}

// TotalSteps is the fixed length of the pipeline as seen by progress
// consumers: extraction, idea generation, eleven dimension evaluations,
// three synthesis sub-stages, and consolidation.
const TotalSteps = 17

var stepTable = buildStepTable()

func buildStepTable() map[string]stepInfo {
	t := map[string]stepInfo{
		StageExtract: {1, "Document Analysis", "Extracting market insights from the source document"},
		StageIdeas:   {2, "Idea Generation", "Generating candidate business ideas from market insights"},
	}
	step := 3
	for _, d := range evaluation.Dimensions {
		t[DimensionStageID(d.Key)] = stepInfo{step, d.Name, "Scoring: " + d.Name}
		step++
	}
	t[StageSynthSummary] = stepInfo{step, "Idea Summary", "Writing the concise idea summary"}
	t[StageSynthStrengths] = stepInfo{step + 1, "Key Strengths", "Identifying the strongest aspects of the idea"}
	t[StageSynthConcerns] = stepInfo{step + 2, "Key Concerns", "Identifying the main risks and concerns"}
	t[StageConsolidate] = stepInfo{step + 3, "Final Recommendation", "Aggregating scores into the final recommendation"}
	return t
}

// StageIDs lists every stage ID in step order.
func StageIDs() []string {
	out := make([]string, TotalSteps)
	for id, info := range stepTable {
		out[info.Step-1] = id
	}
	return out
}

func eventFor(stage string, status ProgressStatus, d time.Duration, errMsg string) ProgressEvent {
	info := stepTable[stage]
	ev := ProgressEvent{
		Step:        info.Step,
		TotalSteps:  TotalSteps,
		Stage:       stage,
		Title:       info.Title,
		Description: info.Description,
		Status:      status,
		Error:       errMsg,
	}
	if d > 0 {
		ev.DurationMS = d.Milliseconds()
	}
	return ev
}

// Observer receives progress events from a run. Publish must not block.
type Observer interface {
	Publish(ev ProgressEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev ProgressEvent)

func (f ObserverFunc) Publish(ev ProgressEvent) { f(ev) }

// ChannelObserver bridges progress events onto a buffered channel. When the
// buffer is full the event is dropped rather than stalling the pipeline, so
// slow consumers only lose intermediate updates.
type ChannelObserver struct {
	mu     sync.Mutex
	ch     chan ProgressEvent
	closed bool
}

func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelObserver{ch: make(chan ProgressEvent, buffer)}
}

func (o *ChannelObserver) Publish(ev ProgressEvent) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.ch <- ev:
	default:
	}
}

// Events returns the receive side of the observer.
func (o *ChannelObserver) Events() <-chan ProgressEvent {
	return o.ch
}

// Close stops delivery and closes the event channel. Safe to call more than
// once.
func (o *ChannelObserver) Close() {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.ch)
}
