package evaluation

import "time"

// Recommendation is one of the four fixed decision tiers.
type Recommendation string

const (
	RecommendationStrong   Recommendation = "Strong Pursue"
	RecommendationConsider Recommendation = "Consider with Conditions"
	RecommendationResearch Recommendation = "Further Research Needed"
	RecommendationPass     Recommendation = "Pass"
)

// DimensionScore is the outcome of one dimension evaluation. Immutable once
// produced.
type DimensionScore struct {
	Dimension  string  `json:"dimension"`
	Score      float64 `json:"score"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// StageTiming records wall-clock duration of one pipeline stage for the
// report's timing metadata.
type StageTiming struct {
	Stage      string        `json:"stage"`
	Skipped    bool          `json:"skipped"`
	DurationMS int64         `json:"duration_ms"`
	Duration   time.Duration `json:"-"`
}

// Report is the final, immutable output of a completed run.
type Report struct {
	IdeaSummary string `json:"idea_summary"`
	Source      string `json:"source"`
	Sector      string `json:"sector"`

	// DimensionScores holds all eleven scores in canonical dimension order.
	DimensionScores []DimensionScore `json:"dimension_scores"`
	OverallScore    float64          `json:"overall_score"`
	Recommendation  Recommendation   `json:"recommendation"`
	Rationale       string           `json:"recommendation_rationale"`
	Strengths       []string         `json:"key_strengths"`
	Concerns        []string         `json:"key_concerns"`

	ModelUsed           string        `json:"model_used"`
	GeneratedIdeasCount int           `json:"generated_ideas_count"`
	EvaluatedIdeaIndex  int           `json:"evaluated_idea_index"`
	ExtractionProvided  bool          `json:"extraction_provided"`
	ProcessingSeconds   float64       `json:"processing_time_seconds"`
	Timestamp           string        `json:"timestamp"`
	StageTimings        []StageTiming `json:"stage_timings,omitempty"`
}
