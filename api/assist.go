package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/kubesage/kubesage/internal/assist"
	"github.com/kubesage/kubesage/internal/knowledge"
	"github.com/kubesage/kubesage/internal/log"
)

// ChatService runs general chat turns.
type ChatService interface {
	SendChatMessage(ctx context.Context, req assist.ChatRequest) (*assist.ChatResponse, error)
}

// LogAnalysisService runs log analysis turns.
type LogAnalysisService interface {
	AnalyzeLogs(ctx context.Context, req assist.LogRequest) (*assist.LogResponse, error)
}

// YAMLGenService runs manifest generation turns.
type YAMLGenService interface {
	GenerateYAML(ctx context.Context, req assist.YAMLRequest) (*assist.YAMLResponse, error)
}

// StatusService reports retrieval stack health.
type StatusService interface {
	CheckStatus(ctx context.Context) knowledge.Status
}

// AssistHandler serves the assistant endpoints.
type AssistHandler struct {
	chat   ChatService
	logs   LogAnalysisService
	yaml   YAMLGenService
	status StatusService
	logger log.Logger
}

// NewAssistHandler creates the assistant handler. Any service may be nil;
// its endpoint then answers 503.
func NewAssistHandler(chat ChatService, logs LogAnalysisService, yaml YAMLGenService, status StatusService, logger log.Logger) *AssistHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &AssistHandler{chat: chat, logs: logs, yaml: yaml, status: status, logger: logger}
}

// RegisterRoutes registers assistant routes on the given mux.
func (h *AssistHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/logs/analyze", h.handleLogs)
	mux.HandleFunc("POST /api/yaml/generate", h.handleYAML)
	mux.HandleFunc("GET /api/status", h.handleStatus)
}

func (h *AssistHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "chat service not configured", "")
		return
	}
	var req assist.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	req.Messages = assist.TagInjectedContext(req.Messages)

	resp, err := h.chat.SendChatMessage(r.Context(), req)
	if err != nil {
		h.writeAssistError(w, err, "failed to process chat message")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *AssistHandler) handleLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "log analysis service not configured", "")
		return
	}
	var req assist.LogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resp, err := h.logs.AnalyzeLogs(r.Context(), req)
	if err != nil {
		h.writeAssistError(w, err, "failed to analyze logs")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *AssistHandler) handleYAML(w http.ResponseWriter, r *http.Request) {
	if h.yaml == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "yaml service not configured", "")
		return
	}
	var req assist.YAMLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resp, err := h.yaml.GenerateYAML(r.Context(), req)
	if err != nil {
		h.writeAssistError(w, err, "failed to generate yaml")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *AssistHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "status service not configured", "")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.status.CheckStatus(r.Context()))
}

// writeAssistError maps assistant errors onto HTTP statuses. A missing
// query is the caller's fault; everything else is a server-side failure.
func (h *AssistHandler) writeAssistError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, assist.ErrNoQuery) {
		writeError(w, h.logger, http.StatusBadRequest, "No query provided", "")
		return
	}
	h.logger.Error(fallback, "error", err)
	writeError(w, h.logger, http.StatusInternalServerError, fallback, err.Error())
}
