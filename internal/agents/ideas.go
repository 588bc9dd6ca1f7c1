package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"ventureval/internal/llmclient"
	"ventureval/internal/llmtool"
)

var ideasPromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:    "Generate candidate business ideas grounded in the extracted market insights.",
	Background: "Each idea must be concrete enough to score on fixed evaluation dimensions: a title, what it does, and who pays for it.",
	OutputFields: []llmtool.PromptField{
		{Name: "ideas", Type: "[]Idea", Required: true, Description: "Idea objects with {title, description, target_customer, revenue_model}."},
	},
	Constraints: []string{
		"Return exactly the requested number of ideas.",
		"Every idea must trace back to at least one extracted insight.",
		"Descriptions are 2-4 sentences, concrete, no buzzword lists.",
	},
	OutputFormat: "JSON only.",
	Language:     "English",
}, llmtool.PresetStrictJSON(), llmtool.PresetGrounded())

// BusinessIdea is one generated venture candidate.
type BusinessIdea struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	TargetCustomer string `json:"target_customer"`
	RevenueModel   string `json:"revenue_model,omitempty"`
}

type IdeasIn struct {
	MarketContext string   `json:"market_context"`
	KeyInsights   []string `json:"key_insights"`
	Sector        string   `json:"sector"`
	NumIdeas      int      `json:"num_ideas"`
}

type IdeasOut struct {
	Ideas []BusinessIdea `json:"ideas"`
}

// IdeaGeneration proposes venture candidates from the market context.
type IdeaGeneration struct{ LLM llmclient.LLMClient }

func (p *IdeaGeneration) Run(ctx context.Context, in IdeasIn) (IdeasOut, error) {
	if in.NumIdeas <= 0 {
		in.NumIdeas = 3
	}
	input := map[string]any{
		"market_context": in.MarketContext,
		"key_insights":   in.KeyInsights,
		"sector":         in.Sector,
		"num_ideas":      in.NumIdeas,
	}
	prompt, err := llmtool.BuildPrompt(ideasPromptSpec, input)
	if err != nil {
		return IdeasOut{}, err
	}
	raw, err := p.LLM.GenerateJSON(ctx, prompt, input)
	if err != nil {
		return IdeasOut{}, err
	}
	var out IdeasOut
	if err := json.Unmarshal(raw, &out); err != nil {
		return IdeasOut{}, fmt.Errorf("ideas JSON invalid: %w\nraw: %s", err, string(raw))
	}
	if len(out.Ideas) == 0 {
		return IdeasOut{}, llmclient.NewPermanentError(fmt.Errorf("idea generation returned no ideas"))
	}
	return out, nil
}

// SelectIdea picks the idea to evaluate. An out-of-range index clamps to the
// last idea rather than failing the run.
func SelectIdea(ideas []BusinessIdea, index int) (BusinessIdea, int, error) {
	if len(ideas) == 0 {
		return BusinessIdea{}, 0, fmt.Errorf("no ideas to select from")
	}
	if index < 0 {
		index = 0
	}
	if index >= len(ideas) {
		index = len(ideas) - 1
	}
	return ideas[index], index, nil
}
