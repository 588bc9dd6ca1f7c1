package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"ventureval/internal/llmclient"
	"ventureval/internal/llmtool"
)

var extractionPromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:    "Extract market insights from a source document for venture idea evaluation.",
	Background: "The first pipeline stage condenses a raw document (report, article, research note) into the market context every later stage works from.",
	OutputFields: []llmtool.PromptField{
		{Name: "market_context", Type: "string", Required: true, Description: "Concise synthesis of the market situation described by the document."},
		{Name: "key_insights", Type: "[]string", Required: true, Description: "Discrete, actionable insights relevant to new venture opportunities."},
		{Name: "trends", Type: "[]string", Required: false, Description: "Notable trends or shifts mentioned in the document."},
		{Name: "pain_points", Type: "[]string", Required: false, Description: "Customer or industry pain points the document surfaces."},
	},
	Constraints: []string{
		"Focus on facts relevant to the target sector when one is given.",
		"Keep market_context under 400 words.",
	},
	Assumptions:  []string{"Missing categories can be empty arrays."},
	OutputFormat: "JSON only.",
	Language:     "English",
}, llmtool.PresetStrictJSON(), llmtool.PresetGrounded(), llmtool.PresetCautious())

type ExtractionIn struct {
	Document string `json:"document"`
	Sector   string `json:"sector"`
}

type ExtractionOut struct {
	MarketContext string   `json:"market_context"`
	KeyInsights   []string `json:"key_insights"`
	Trends        []string `json:"trends,omitempty"`
	PainPoints    []string `json:"pain_points,omitempty"`
}

// Extraction condenses the source document into market context and insights.
type Extraction struct{ LLM llmclient.LLMClient }

func (p *Extraction) Run(ctx context.Context, in ExtractionIn) (ExtractionOut, error) {
	input := map[string]any{
		"document": in.Document,
		"sector":   in.Sector,
	}
	prompt, err := llmtool.BuildPrompt(extractionPromptSpec, input)
	if err != nil {
		return ExtractionOut{}, err
	}
	raw, err := p.LLM.GenerateJSON(ctx, prompt, input)
	if err != nil {
		return ExtractionOut{}, err
	}
	var out ExtractionOut
	if err := json.Unmarshal(raw, &out); err != nil {
		return ExtractionOut{}, fmt.Errorf("extraction JSON invalid: %w\nraw: %s", err, string(raw))
	}
	if out.MarketContext == "" {
		return ExtractionOut{}, llmclient.NewPermanentError(fmt.Errorf("extraction returned empty market_context"))
	}
	return out, nil
}
