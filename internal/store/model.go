package store

import (
	"encoding/json"
	"strings"
	"time"
)

// AnalysisStatus tracks one submitted evaluation through its lifecycle.
type AnalysisStatus string

const (
	StatusPending   AnalysisStatus = "pending"
	StatusRunning   AnalysisStatus = "running"
	StatusCompleted AnalysisStatus = "completed"
	StatusFailed    AnalysisStatus = "failed"
)

// Analysis is one evaluation request and, once finished, its report.
type Analysis struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Sector   string         `json:"sector"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Status   AnalysisStatus `json:"status"`
	Identity string         `json:"identity,omitempty"`

	// Report holds the serialized evaluation report once Status is completed.
	Report json.RawMessage `json:"report,omitempty"`
	// Error holds the run failure message once Status is failed.
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

func normalizeAnalysis(a Analysis) Analysis {
	a.ID = strings.TrimSpace(a.ID)
	a.Sector = strings.TrimSpace(a.Sector)
	if a.Status == "" {
		a.Status = StatusPending
	}
	return a
}
