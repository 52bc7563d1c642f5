package handlers

import (
	"net/http"
	"time"

	"github.com/eldtechnologies/agentslack/internal/apperr"
	"github.com/eldtechnologies/agentslack/internal/models"
)

// RegisterWorldRequest represents the world registration body.
type RegisterWorldRequest struct {
	WorldName string `json:"world_name"`
}

// WorldResponse describes a registered world.
type WorldResponse struct {
	Name       string           `json:"name"`
	StartEpoch string           `json:"start_epoch"`
	Channels   []models.Channel `json:"channels"`
}

// RegisterAgentRequest represents the agent registration body.
type RegisterAgentRequest struct {
	AgentName string `json:"agent_name"`
	WorldName string `json:"world_name"`
}

// AgentResponse describes a registered agent.
type AgentResponse struct {
	Name     string           `json:"name"`
	World    string           `json:"world"`
	UserID   string           `json:"user_id"`
	Channels []models.Channel `json:"channels"`
}

// RegisterWorld creates a world.
func (h *Handler) RegisterWorld(w http.ResponseWriter, r *http.Request) {
	var req RegisterWorldRequest
	if !h.decode(w, r, &req) {
		return
	}
	name := sanitizeName(req.WorldName)
	if name == "" {
		h.AppError(w, apperr.New(apperr.InvalidArgument, "world_name is required"))
		return
	}

	world, err := h.reg.RegisterWorld(r.Context(), name)
	if err != nil {
		h.AppError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, WorldResponse{
		Name:       world.Name,
		StartEpoch: world.StartEpoch.UTC().Format(time.RFC3339Nano),
		Channels:   nonNil(world.Channels),
	})
}

// RegisterAgent binds a new agent to a world, creating the world if needed.
func (h *Handler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req RegisterAgentRequest
	if !h.decode(w, r, &req) {
		return
	}
	agentName := sanitizeName(req.AgentName)
	worldName := sanitizeName(req.WorldName)
	if agentName == "" || worldName == "" {
		h.AppError(w, apperr.New(apperr.InvalidArgument, "agent_name and world_name are required"))
		return
	}

	agent, err := h.reg.RegisterAgent(r.Context(), agentName, worldName)
	if err != nil {
		h.AppError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, AgentResponse{
		Name:     agent.Name,
		World:    agent.WorldName,
		UserID:   agent.App.UserID,
		Channels: nonNil(agent.Channels),
	})
}

func nonNil(chans []models.Channel) []models.Channel {
	if chans == nil {
		return []models.Channel{}
	}
	return chans
}
