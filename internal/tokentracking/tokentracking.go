// Package tokentracking appends a JSON-lines usage record per provider
// call, grounded on pyclaw
// token_tracking.py.
package tokentracking

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goclaw-lite/internal/providers"
)

// Usage is one recorded call's token accounting.
type Usage struct {
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	TimestampUnix    float64 `json:"timestamp"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Tracker appends usage records to a JSON-lines file.
type Tracker struct {
	mu   sync.Mutex
	path string
}

// NewTracker constructs a tracker appending to path, creating its parent
// directory if necessary.
func NewTracker(path string) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Tracker{path: path}, nil
}

// Record appends usage as one JSON line.
func (t *Tracker) Record(usage Usage) error {
	data, err := json.Marshal(usage)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}

// BuildUsage converts a provider's raw usage into a recordable Usage, or
// reports ok=false when there's nothing worth recording.
func BuildUsage(provider, model string, usage providers.Usage) (Usage, bool) {
	total := usage.TotalTokens
	if total == 0 {
		total = usage.PromptTokens + usage.CompletionTokens
	}
	if total <= 0 {
		return Usage{}, false
	}
	return Usage{
		Provider:         provider,
		Model:            model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      total,
		TimestampUnix:    float64(time.Now().UnixNano()) / 1e9,
	}, true
}
