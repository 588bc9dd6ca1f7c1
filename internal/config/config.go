// Package config loads server and pipeline configuration from flags and
// environment, with a .env file as the local convenience layer.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	Pipeline PipelineConfig
	Store    StoreConfig
	Docs     DocsConfig
}

type PipelineConfig struct {
	Provider       string
	Model          string
	NumIdeas       int
	MaxParallel    int
	StageTimeout   time.Duration
	RunTimeout     time.Duration
	CheckpointDir  string
	EventRetention time.Duration
}

type StoreConfig struct {
	// FilePath is the JSON fallback when no Postgres DSN is set.
	FilePath string
	DSN      string
}

type DocsConfig struct {
	Enabled   bool
	Dir       string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:     *port,
		Env:      env,
		Pipeline: loadPipelineConfig(),
		Store: StoreConfig{
			FilePath: firstNonEmpty(strings.TrimSpace(os.Getenv("ANALYSIS_STORE_PATH")), "data/analyses.json"),
			DSN:      strings.TrimSpace(os.Getenv("ANALYSIS_STORE_PG_DSN")),
		},
		Docs: loadDocsConfig(env),
	}, nil
}

func loadPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Provider:       firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_PROVIDER")), "gemini"),
		Model:          firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_MODEL")), "gemini-2.0-flash"),
		NumIdeas:       envInt("PIPELINE_NUM_IDEAS", 3),
		MaxParallel:    envInt("PIPELINE_MAX_PARALLEL", 4),
		StageTimeout:   envDuration("PIPELINE_STAGE_TIMEOUT", 2*time.Minute),
		RunTimeout:     envDuration("PIPELINE_RUN_TIMEOUT", 20*time.Minute),
		CheckpointDir:  firstNonEmpty(strings.TrimSpace(os.Getenv("CHECKPOINT_DIR")), "data/checkpoints"),
		EventRetention: envDuration("EVENT_RETENTION", 30*time.Minute),
	}
}

func loadDocsConfig(env string) DocsConfig {
	endpoint := resolveDocsEndpoint(env)
	return DocsConfig{
		Enabled:   endpoint != "",
		Dir:       firstNonEmpty(strings.TrimSpace(os.Getenv("DOCS_DIR")), "data/documents"),
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("DOCS_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("DOCS_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("DOCS_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("DOCS_S3_BUCKET")), "ventureval-documents"),
		UseSSL:    resolveDocsUseSSL(env),
	}
}

func resolveDocsEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("DOCS_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("DOCS_S3_ENDPOINT"))
}

func resolveDocsUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("DOCS_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
