package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"ventureval/internal/evaluation"
	"ventureval/internal/llmclient"
	"ventureval/internal/llmtool"
)

var rationalePromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:    "Explain the final recommendation for the evaluated idea.",
	Background: "The overall score and recommendation tier are already decided by deterministic aggregation. The rationale explains them; it must not contradict them.",
	OutputFields: []llmtool.PromptField{
		{Name: "rationale", Type: "string", Required: true, Description: "2-4 sentences explaining why the idea received this recommendation."},
	},
	Constraints: []string{
		"Reference the decisive dimensions by name.",
		"Do not restate every score.",
	},
	OutputFormat: "JSON only.",
	Language:     "English",
}, llmtool.PresetStrictJSON(), llmtool.PresetGrounded())

type ConsolidationIn struct {
	Idea           BusinessIdea
	Scores         []evaluation.DimensionScore
	OverallScore   float64
	Recommendation evaluation.Recommendation
}

type ConsolidationOut struct {
	Rationale string `json:"rationale"`
}

// Consolidation writes the recommendation rationale. The recommendation
// itself is never delegated to the model; on any LLM failure a deterministic
// fallback rationale is used so consolidation cannot fail the run.
type Consolidation struct{ LLM llmclient.LLMClient }

func (p *Consolidation) Run(ctx context.Context, in ConsolidationIn) (ConsolidationOut, error) {
	input := map[string]any{
		"idea":           in.Idea,
		"scores":         in.Scores,
		"overall_score":  in.OverallScore,
		"recommendation": string(in.Recommendation),
	}
	prompt, err := llmtool.BuildPrompt(rationalePromptSpec, input)
	if err != nil {
		return ConsolidationOut{Rationale: fallbackRationale(in)}, nil
	}
	raw, err := p.LLM.GenerateJSON(ctx, prompt, input)
	if err != nil {
		if ctx.Err() != nil {
			return ConsolidationOut{}, ctx.Err()
		}
		log.Printf("consolidation: rationale generation failed, using fallback: %v", err)
		return ConsolidationOut{Rationale: fallbackRationale(in)}, nil
	}
	var out ConsolidationOut
	if err := json.Unmarshal(raw, &out); err != nil || out.Rationale == "" {
		log.Printf("consolidation: rationale JSON invalid, using fallback")
		return ConsolidationOut{Rationale: fallbackRationale(in)}, nil
	}
	return out, nil
}

func fallbackRationale(in ConsolidationIn) string {
	best, worst := extremeScores(in.Scores)
	msg := fmt.Sprintf("Overall weighted score of %.1f/10 places this idea in the %q tier.",
		in.OverallScore, in.Recommendation)
	if best.Dimension != "" {
		msg += fmt.Sprintf(" Strongest dimension: %s (%.1f).", best.Dimension, best.Score)
	}
	if worst.Dimension != "" {
		msg += fmt.Sprintf(" Weakest dimension: %s (%.1f).", worst.Dimension, worst.Score)
	}
	return msg
}

func extremeScores(scores []evaluation.DimensionScore) (best, worst evaluation.DimensionScore) {
	for i, s := range scores {
		if i == 0 || s.Score > best.Score {
			best = s
		}
		if i == 0 || s.Score < worst.Score {
			worst = s
		}
	}
	return best, worst
}
