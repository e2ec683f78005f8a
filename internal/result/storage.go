package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const ArtifactFile = "evaluation.json"

func CreateRunDir(baseDir string) (string, error) {
	runsDir := filepath.Join(baseDir, "runs")
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	runDir := filepath.Join(runsDir, stamp)
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// NewArtifact assembles the run record. The artifact's cost total includes
// judge spend on top of execution cost.
func NewArtifact(pluginName string, results []EvaluationResult, metrics EvalMetrics) *Artifact {
	if results == nil {
		results = []EvaluationResult{}
	}
	return &Artifact{
		RunID:           uuid.NewString(),
		PluginName:      pluginName,
		Results:         results,
		Metrics:         metrics,
		TotalCostUSD:    metrics.TotalCostUSD + metrics.JudgeCostUSD,
		TotalDurationMs: metrics.TotalDurationMs,
		Timestamp:       time.Now().UTC(),
	}
}

func WriteArtifact(runDir string, a *Artifact) (string, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling artifact: %w", err)
	}
	path := filepath.Join(runDir, ArtifactFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	return path, nil
}

// ReadArtifact accepts either the artifact file or the run directory
// containing it.
func ReadArtifact(path string) (*Artifact, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ArtifactFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing artifact: %w", err)
	}
	return &a, nil
}
