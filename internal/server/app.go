package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"ventureval/internal/config"
	"ventureval/internal/docstore"
	"ventureval/internal/llmclient"
	"ventureval/internal/pipeline"
	"ventureval/internal/store"
)

// App wires configuration, stores, the LLM client, and the HTTP server.
type App struct {
	server *Server
	llm    llmclient.LLMClient
	store  *store.Store
}

func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	llm, err := BuildLLMClient(ctx, cfg.Pipeline.Provider, cfg.Pipeline.Model)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	checkpoints, err := pipeline.NewDiskCheckpointStore(cfg.Pipeline.CheckpointDir, 256)
	if err != nil {
		return nil, fmt.Errorf("init checkpoint store: %w", err)
	}

	analysisStore := store.Open(cfg.Store.DSN, cfg.Store.FilePath)

	var docs docstore.Store
	if cfg.Docs.Enabled {
		docs, err = docstore.NewS3Store(docstore.S3Config{
			Endpoint:  cfg.Docs.Endpoint,
			Region:    cfg.Docs.Region,
			AccessKey: cfg.Docs.AccessKey,
			SecretKey: cfg.Docs.SecretKey,
			Bucket:    cfg.Docs.Bucket,
			UseSSL:    cfg.Docs.UseSSL,
		})
		if err != nil {
			log.Printf("document store: s3 unavailable, using disk: %v", err)
			docs = nil
		}
	}
	if docs == nil {
		docs, err = docstore.NewDiskStore(cfg.Docs.Dir)
		if err != nil {
			return nil, fmt.Errorf("init document store: %w", err)
		}
	}

	svc := &AnalysisService{
		LLM:         llm,
		Checkpoints: checkpoints,
		Store:       analysisStore,
		Docs:        docs,
		Broker:      NewEventBroker(cfg.Pipeline.EventRetention),
		Pipeline:    cfg.Pipeline,
	}

	mux := NewMux(NewAnalysisHandler(svc))
	return &App{
		server: New(cfg.Port, mux),
		llm:    llm,
		store:  analysisStore,
	}, nil
}

// BuildLLMClient constructs the provider client with the standard middleware
// chain: logging outermost, then retries, then rate limiting.
func BuildLLMClient(ctx context.Context, provider, model string) (llmclient.LLMClient, error) {
	var base llmclient.LLMClient
	switch provider {
	case "gemini":
		cli, err := llmclient.NewGeminiClient(ctx, model)
		if err != nil {
			return nil, err
		}
		base = cli
	case "fake":
		base = llmclient.NewFakeClient()
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
	return llmclient.Wrap(base,
		llmclient.WithLogging(nil),
		llmclient.Retry(3, 500*time.Millisecond),
		llmclient.RateLimit(2, 4),
	), nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	_ = a.llm.Close()
	_ = a.store.Close()
	return err
}
