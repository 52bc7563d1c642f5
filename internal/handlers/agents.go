package handlers

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/agentslack/internal/models"
)

// AgentProfile describes an agent and how far it has read.
type AgentProfile struct {
	Name           string           `json:"name"`
	World          string           `json:"world"`
	UserID         string           `json:"user_id"`
	Channels       []models.Channel `json:"channels"`
	Delivered      map[string]int   `json:"delivered"` // channel id -> messages delivered
	ExcludedHumans []string         `json:"excluded_humans"`
}

// GetAgent handles agent profile lookup.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	agent, err := h.reg.Agent(name)
	if err != nil {
		h.AppError(w, err)
		return
	}
	delivered, err := h.reg.CursorSizes(name)
	if err != nil {
		h.AppError(w, err)
		return
	}

	excluded := make([]string, 0, len(agent.ExcludedHumans))
	for id := range agent.ExcludedHumans {
		excluded = append(excluded, id)
	}
	sort.Strings(excluded)

	h.JSON(w, http.StatusOK, AgentProfile{
		Name:           agent.Name,
		World:          agent.WorldName,
		UserID:         agent.App.UserID,
		Channels:       nonNil(agent.Channels),
		Delivered:      delivered,
		ExcludedHumans: excluded,
	})
}
