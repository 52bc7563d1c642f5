package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/agentslack/internal/apperr"
)

// AddHumanRequest names a directory human to add to a world.
type AddHumanRequest struct {
	HumanID string `json:"human_id"`
}

// WorldHumansResponse reports a world's human count after a change.
type WorldHumansResponse struct {
	World  string `json:"world"`
	Humans int    `json:"humans"`
}

// AddHuman adds a directory human to a world.
func (h *Handler) AddHuman(w http.ResponseWriter, r *http.Request) {
	world := chi.URLParam(r, "name")
	var req AddHumanRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.HumanID == "" {
		h.AppError(w, apperr.New(apperr.InvalidArgument, "human_id is required"))
		return
	}
	if err := h.reg.AddHumanToWorld(world, req.HumanID); err != nil {
		h.AppError(w, err)
		return
	}
	h.worldHumans(w, world)
}

// RemoveHuman removes a human from a world.
func (h *Handler) RemoveHuman(w http.ResponseWriter, r *http.Request) {
	world := chi.URLParam(r, "name")
	if err := h.reg.RemoveHumanFromWorld(world, chi.URLParam(r, "id")); err != nil {
		h.AppError(w, err)
		return
	}
	h.worldHumans(w, world)
}

func (h *Handler) worldHumans(w http.ResponseWriter, world string) {
	n, err := h.reg.HumansInWorld(world)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, WorldHumansResponse{World: world, Humans: n})
}

// ExcludeHuman stops an agent from interacting with a human.
func (h *Handler) ExcludeHuman(w http.ResponseWriter, r *http.Request) {
	agent := chi.URLParam(r, "name")
	var req AddHumanRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.reg.ExcludeHuman(agent, req.HumanID); err != nil {
		h.AppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IncludeHuman lifts an exclusion.
func (h *Handler) IncludeHuman(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.IncludeHuman(chi.URLParam(r, "name"), chi.URLParam(r, "id")); err != nil {
		h.AppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
