package models

import "time"

// World is a named simulation grouping agents, humans and channels.
// Provider history older than StartEpoch is never shown to its agents.
type World struct {
	Name          string              `json:"name"`
	StartEpoch    time.Time           `json:"start_epoch"`
	Agents        map[string]struct{} `json:"-"`
	Humans        map[string]struct{} `json:"-"`
	HumanMappings map[string]string   `json:"-"` // human id -> provider user id
	Channels      []Channel           `json:"channels"`
}

// Human is read-only reference data about a person in the workspace.
// Its ID is the short handle used inside worlds; UserID is the provider
// account.
type Human struct {
	ID        string `json:"id" yaml:"id"`
	UserID    string `json:"user_id" yaml:"user_id"`
	Name      string `json:"name" yaml:"name"`
	Expertise string `json:"expertise,omitempty" yaml:"expertise"`
}
