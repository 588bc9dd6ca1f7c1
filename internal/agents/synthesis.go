package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"ventureval/internal/evaluation"
	"ventureval/internal/llmclient"
	"ventureval/internal/llmtool"
)

var summaryPromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose: "Write a concise summary of the evaluated business idea.",
	OutputFields: []llmtool.PromptField{
		{Name: "summary", Type: "string", Required: true, Description: "2-3 sentence summary of what the idea is and who it serves."},
	},
	OutputFormat: "JSON only.",
	Language:     "English",
}, llmtool.PresetStrictJSON(), llmtool.PresetGrounded())

var strengthsPromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:    "Identify the strongest aspects of the idea from its dimension scores.",
	Background: "Strengths must reference the highest-scoring dimensions, not generic virtues.",
	OutputFields: []llmtool.PromptField{
		{Name: "strengths", Type: "[]string", Required: true, Description: "3-5 specific strengths, each one sentence."},
	},
	OutputFormat: "JSON only.",
	Language:     "English",
}, llmtool.PresetStrictJSON(), llmtool.PresetGrounded())

var concernsPromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:    "Identify the main risks and concerns from the dimension scores.",
	Background: "Concerns must reference the lowest-scoring dimensions and any critical weaknesses.",
	OutputFields: []llmtool.PromptField{
		{Name: "concerns", Type: "[]string", Required: true, Description: "3-5 specific concerns, each one sentence."},
	},
	OutputFormat: "JSON only.",
	Language:     "English",
}, llmtool.PresetStrictJSON(), llmtool.PresetGrounded())

// SynthesisIn is shared by the three synthesis sub-stages. They read the same
// inputs and run independently of each other.
type SynthesisIn struct {
	Idea   BusinessIdea
	Scores []evaluation.DimensionScore
	Sector string
}

type SummaryOut struct {
	Summary string `json:"summary"`
}

type StrengthsOut struct {
	Strengths []string `json:"strengths"`
}

type ConcernsOut struct {
	Concerns []string `json:"concerns"`
}

// Synthesis produces the narrative pieces of the report: summary, strengths,
// and concerns. Each method is one independent pipeline stage.
type Synthesis struct{ LLM llmclient.LLMClient }

func (p *Synthesis) Summary(ctx context.Context, in SynthesisIn) (SummaryOut, error) {
	var out SummaryOut
	if err := p.generate(ctx, summaryPromptSpec, in, &out); err != nil {
		return SummaryOut{}, err
	}
	if out.Summary == "" {
		out.Summary = in.Idea.Title + ": " + in.Idea.Description
	}
	return out, nil
}

func (p *Synthesis) Strengths(ctx context.Context, in SynthesisIn) (StrengthsOut, error) {
	var out StrengthsOut
	if err := p.generate(ctx, strengthsPromptSpec, in, &out); err != nil {
		return StrengthsOut{}, err
	}
	return out, nil
}

func (p *Synthesis) Concerns(ctx context.Context, in SynthesisIn) (ConcernsOut, error) {
	var out ConcernsOut
	if err := p.generate(ctx, concernsPromptSpec, in, &out); err != nil {
		return ConcernsOut{}, err
	}
	return out, nil
}

func (p *Synthesis) generate(ctx context.Context, spec llmtool.StructuredPromptSpec, in SynthesisIn, out any) error {
	input := map[string]any{
		"idea":   in.Idea,
		"scores": in.Scores,
		"sector": in.Sector,
	}
	prompt, err := llmtool.BuildPrompt(spec, input)
	if err != nil {
		return err
	}
	raw, err := p.LLM.GenerateJSON(ctx, prompt, input)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s JSON invalid: %w\nraw: %s", llmclient.StageFrom(ctx), err, string(raw))
	}
	return nil
}
