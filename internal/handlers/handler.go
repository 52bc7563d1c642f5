package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode"

	"github.com/eldtechnologies/agentslack/internal/apperr"
	"github.com/eldtechnologies/agentslack/internal/registry"
	"github.com/eldtechnologies/agentslack/internal/store"
	"github.com/eldtechnologies/agentslack/internal/tools"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	reg   *registry.Registry
	tools *tools.Router
	dir   store.DirectoryStore // optional
	redis *store.RedisStore    // optional
}

// NewHandler creates a new Handler. dir and redis may be nil.
func NewHandler(reg *registry.Registry, router *tools.Router, dir store.DirectoryStore, redis *store.RedisStore) *Handler {
	return &Handler{reg: reg, tools: router, dir: dir, redis: redis}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Kind    apperr.Kind `json:"kind,omitempty"`
	Message string      `json:"message"`
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, ErrorResponse{Message: message})
}

// AppError maps err's kind onto a status and sends it.
func (h *Handler) AppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	msg := apperr.Message(err)
	if kind == apperr.Internal {
		msg = "internal error"
	}
	h.JSON(w, apperr.HTTPStatus(kind), ErrorResponse{Kind: kind, Message: msg})
}

// decode reads a JSON body into v, answering 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.AppError(w, apperr.New(apperr.InvalidArgument, "invalid JSON body"))
		return false
	}
	return true
}

// sanitizeName trims and limits name to 100 characters, removing control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 100 {
		name = name[:100]
	}

	return name
}
