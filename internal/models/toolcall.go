package models

import (
	"encoding/json"
	"time"
)

// ToolCall is one audited tool invocation.
type ToolCall struct {
	ID       string          `json:"id"`
	Tool     string          `json:"tool"`
	Agent    string          `json:"agent,omitempty"`
	Params   json.RawMessage `json:"params"`
	Outcome  string          `json:"outcome"` // "ok" or an error kind
	Duration time.Duration   `json:"duration"`
	At       time.Time       `json:"at"`
}
