package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/agentslack/internal/models"
)

// ChannelListResponse represents the channels list response.
type ChannelListResponse struct {
	World    string           `json:"world"`
	Channels []models.Channel `json:"channels"`
	Total    int              `json:"total"`
}

// ListWorldChannels lists the channels known to a world.
func (h *Handler) ListWorldChannels(w http.ResponseWriter, r *http.Request) {
	world, err := h.reg.World(chi.URLParam(r, "name"))
	if err != nil {
		h.AppError(w, err)
		return
	}

	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if limit > 200 {
		limit = 200
	}
	offset := 0
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}

	total := len(world.Channels)
	page := []models.Channel{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = world.Channels[offset:end]
	}

	h.JSON(w, http.StatusOK, ChannelListResponse{
		World:    world.Name,
		Channels: page,
		Total:    total,
	})
}
