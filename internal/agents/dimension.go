package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"ventureval/internal/evaluation"
	"ventureval/internal/llmclient"
	"ventureval/internal/llmtool"
)

var dimensionPromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:    "Score one business idea on a single evaluation dimension.",
	Background: "The idea is scored independently on each dimension; this call covers exactly one. The dimension name and its criteria are part of the input.",
	OutputFields: []llmtool.PromptField{
		{Name: "score", Type: "number", Required: true, Description: "Score from 0 to 10 against the dimension criteria."},
		{Name: "reasoning", Type: "string", Required: true, Description: "2-4 sentences justifying the score."},
		{Name: "confidence", Type: "number", Required: false, Description: "Confidence in the score, 0 to 1."},
	},
	Constraints: []string{
		"Score only the named dimension; ignore all other qualities of the idea.",
		"Use the full 0-10 range; 5 is a genuinely average idea, not a default.",
	},
	OutputFormat: "JSON only.",
	Language:     "English",
}, llmtool.PresetStrictJSON(), llmtool.PresetGrounded())

type DimensionIn struct {
	Dimension     evaluation.Dimension
	Idea          BusinessIdea
	MarketContext string
	Sector        string
}

type DimensionOut struct {
	Score      float64 `json:"score"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// DimensionEval scores an idea on exactly one dimension per call.
type DimensionEval struct{ LLM llmclient.LLMClient }

func (p *DimensionEval) Run(ctx context.Context, in DimensionIn) (DimensionOut, error) {
	input := map[string]any{
		"dimension":      in.Dimension.Name,
		"criteria":       in.Dimension.Criteria,
		"idea":           in.Idea,
		"market_context": in.MarketContext,
		"sector":         in.Sector,
	}
	prompt, err := llmtool.BuildPrompt(dimensionPromptSpec, input)
	if err != nil {
		return DimensionOut{}, err
	}
	raw, err := p.LLM.GenerateJSON(ctx, prompt, input)
	if err != nil {
		return DimensionOut{}, err
	}
	var out DimensionOut
	if err := json.Unmarshal(raw, &out); err != nil {
		return DimensionOut{}, fmt.Errorf("dimension %s JSON invalid: %w\nraw: %s", in.Dimension.Key, err, string(raw))
	}
	out.Score = clamp(out.Score, 0, 10)
	if out.Confidence == 0 {
		out.Confidence = 0.8
	}
	out.Confidence = clamp(out.Confidence, 0, 1)
	if out.Reasoning == "" {
		out.Reasoning = "No reasoning provided."
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
