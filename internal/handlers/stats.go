package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/eldtechnologies/agentslack/internal/models"
	"github.com/eldtechnologies/agentslack/internal/registry"
)

// CallPreview is a recent tool call shown on the stats page.
type CallPreview struct {
	Tool    string `json:"tool"`
	Agent   string `json:"agent"`
	Outcome string `json:"outcome"`
	At      string `json:"at"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	registry.Stats
	TotalToolCalls int64         `json:"total_tool_calls"`
	LastActivity   string        `json:"last_activity"`
	RecentCalls    []CallPreview `json:"recent_calls"`
}

// Stats returns registry counts and, when an audit store is configured, the
// latest tool activity.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatsResponse{
		Stats:        h.reg.Stats(),
		LastActivity: "no activity yet",
		RecentCalls:  []CallPreview{},
	}

	var recent []models.ToolCall
	switch {
	case h.dir != nil:
		total, err := h.dir.CountToolCalls(ctx)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to count tool calls")
			return
		}
		resp.TotalToolCalls = total
		// Non-fatal, continue with no previews
		recent, _ = h.dir.RecentToolCalls(ctx, 5)
	case h.redis != nil:
		recent, _ = h.redis.RecentToolCalls(ctx, 5)
	}

	if len(recent) > 0 {
		resp.LastActivity = formatTimeAgo(recent[0].At)
	} else if h.redis != nil {
		if at, ok, err := h.redis.LastActivity(ctx); err == nil && ok {
			resp.LastActivity = formatTimeAgo(at)
		}
	}
	for _, c := range recent {
		resp.RecentCalls = append(resp.RecentCalls, CallPreview{
			Tool:    c.Tool,
			Agent:   c.Agent,
			Outcome: c.Outcome,
			At:      c.At.UTC().Format(time.RFC3339),
		})
	}

	h.JSON(w, http.StatusOK, resp)
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	default:
		return plural(int(diff.Hours()/24), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
