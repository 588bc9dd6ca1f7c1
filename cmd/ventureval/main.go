package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"ventureval/internal/evaluation"
	"ventureval/internal/extract"
	"ventureval/internal/pipeline"
	"ventureval/internal/server"
)

func main() {
	input := flag.String("input", "", "path to the source document (pdf, txt, md)")
	scoreText := flag.String("score-text", "", "skip extraction and evaluate this pre-extracted text")
	sector := flag.String("sector", "", "target sector for the evaluation")
	provider := flag.String("provider", "gemini", "LLM provider: gemini or fake")
	model := flag.String("model", "gemini-2.0-flash", "model id")
	ideas := flag.Int("ideas", 3, "number of candidate ideas to generate")
	ideaIndex := flag.Int("idea-index", 0, "which generated idea to evaluate")
	force := flag.Bool("force", false, "re-run every stage, overwriting checkpoints")
	checkpointDir := flag.String("checkpoints", filepath.Join("data", "checkpoints"), "checkpoint directory")
	outDir := flag.String("out", "out", "output directory")
	quiet := flag.Bool("quiet", false, "suppress progress output")
	flag.Parse()

	if *input == "" && *scoreText == "" {
		log.Fatal("--input or --score-text is required")
	}
	if *sector == "" {
		log.Fatal("--sector is required")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llm, err := server.BuildLLMClient(ctx, *provider, *model)
	if err != nil {
		log.Fatal(err)
	}
	defer llm.Close()

	checkpoints, err := pipeline.NewDiskCheckpointStore(*checkpointDir, 256)
	if err != nil {
		log.Fatal(err)
	}

	doc, extracted := loadInput(*input, *scoreText)

	var observer pipeline.Observer
	if !*quiet {
		observer = pipeline.ObserverFunc(printProgress)
	}
	orch := &pipeline.Orchestrator{
		LLM:         llm,
		Checkpoints: checkpoints,
		Observer:    observer,
	}
	report, err := orch.Run(ctx, doc, pipeline.RunConfig{
		Sector:        *sector,
		Provider:      *provider,
		Model:         *model,
		NumIdeas:      *ideas,
		IdeaIndex:     *ideaIndex,
		ExtractedText: extracted,
		ForceRefresh:  *force,
	})
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}

	writeJSON(*outDir, "report.json", report)
	printReport(report)
	log.Println("report written →", filepath.Join(*outDir, "report.json"))
}

// loadInput resolves the document and the optional extraction bypass. With
// --score-text the text doubles as document content so checkpoints still key
// off it.
func loadInput(input, scoreText string) (pipeline.Document, string) {
	if scoreText != "" {
		return pipeline.Document{Source: "score-text", Text: scoreText}, scoreText
	}
	doc, err := extract.FromFile(input)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("extracted %d page(s) from %s", doc.Pages, doc.Name)
	return pipeline.Document{Source: doc.Name, Text: doc.Text}, ""
}

func printProgress(ev pipeline.ProgressEvent) {
	switch ev.Status {
	case pipeline.ProgressRunning:
		fmt.Printf("[%2d/%d] %s...\n", ev.Step, ev.TotalSteps, ev.Title)
	case pipeline.ProgressCompleted:
		fmt.Printf("[%2d/%d] %s done (%dms)\n", ev.Step, ev.TotalSteps, ev.Title, ev.DurationMS)
	case pipeline.ProgressSkipped:
		fmt.Printf("[%2d/%d] %s (cached)\n", ev.Step, ev.TotalSteps, ev.Title)
	case pipeline.ProgressError:
		fmt.Printf("[%2d/%d] %s FAILED: %s\n", ev.Step, ev.TotalSteps, ev.Title, ev.Error)
	}
}

func printReport(r *evaluation.Report) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Idea: %s\n", r.IdeaSummary)
	fmt.Println(strings.Repeat("-", 60))
	for _, s := range r.DimensionScores {
		fmt.Printf("  %-42s %4.1f/10\n", s.Dimension, s.Score)
	}
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Overall: %.1f/10  →  %s\n", r.OverallScore, r.Recommendation)
	fmt.Printf("%s\n", r.Rationale)
	fmt.Println(strings.Repeat("=", 60))
}

func writeJSON(dir, name string, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		log.Fatal(err)
	}
}
