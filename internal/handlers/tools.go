package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/agentslack/internal/apperr"
	"github.com/eldtechnologies/agentslack/internal/tools"
)

// ToolListResponse lists the available tools.
type ToolListResponse struct {
	Tools []tools.Tool `json:"tools"`
}

// ToolCallResponse wraps a tool's result.
type ToolCallResponse struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

// ListTools returns every tool definition.
func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, ToolListResponse{Tools: h.tools.Tools()})
}

// GetTool returns one tool definition.
func (h *Handler) GetTool(w http.ResponseWriter, r *http.Request) {
	tool, err := h.tools.Tool(chi.URLParam(r, "name"))
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, tool)
}

// CallTool runs a tool with the JSON object in the body as its parameters.
// An empty body is an empty parameter bag.
func (h *Handler) CallTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	args := tools.Args{}
	if r.Body != nil {
		if err := decodeArgs(r.Body, &args); err != nil {
			h.AppError(w, apperr.New(apperr.InvalidArgument, "body must be a JSON object of parameters"))
			return
		}
	}

	result, err := h.tools.Call(r.Context(), name, args)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, ToolCallResponse{Tool: name, Result: result})
}

func decodeArgs(body io.Reader, args *tools.Args) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, args); err != nil {
		return err
	}
	if *args == nil {
		return errors.New("null parameters")
	}
	return nil
}
