package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/kubesage/kubesage/internal/document"
	"github.com/kubesage/kubesage/internal/log"
)

// DocumentService is the slice of the document pipeline the handler
// needs.
type DocumentService interface {
	IngestAll(ctx context.Context, files []document.FileUpload, settings document.ChunkSettings) (document.BatchResult, error)
	List(ctx context.Context, namespace string) ([]document.DocumentInfo, error)
	Delete(ctx context.Context, fileName, namespace string) (int, error)
}

// DocumentsHandler serves the knowledge base document endpoints.
type DocumentsHandler struct {
	svc       DocumentService
	settings  document.ChunkSettings
	namespace string
	logger    log.Logger
}

// NewDocumentsHandler creates a documents handler. settings are the
// server-wide chunk settings; namespace scopes all operations.
func NewDocumentsHandler(svc DocumentService, settings document.ChunkSettings, namespace string, logger log.Logger) *DocumentsHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &DocumentsHandler{svc: svc, settings: settings, namespace: namespace, logger: logger}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.upload)
	mux.HandleFunc("GET /api/documents", h.list)
	mux.HandleFunc("DELETE /api/documents/{fileName}", h.delete)
}

type uploadRequest struct {
	Files []document.FileUpload `json:"files"`
}

type uploadResponse struct {
	Uploaded []document.UploadedDocument `json:"uploaded"`
	Failed   []string                    `json:"failed,omitempty"`
}

func (h *DocumentsHandler) upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Files) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "no files provided", "")
		return
	}
	for _, f := range req.Files {
		if f.FileName == "" {
			writeError(w, h.logger, http.StatusBadRequest, "file name is required", "")
			return
		}
	}

	result, err := h.svc.IngestAll(r.Context(), req.Files, h.settings)
	if err != nil {
		if errors.Is(err, document.ErrInvalidChunkSettings) {
			writeError(w, h.logger, http.StatusBadRequest, "invalid chunk settings", err.Error())
			return
		}
		h.logger.Error("document upload failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "failed to upload documents", err.Error())
		return
	}

	status := http.StatusOK
	if len(result.Uploaded) == 0 && len(result.Failed) > 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, h.logger, status, uploadResponse{Uploaded: result.Uploaded, Failed: result.Failed})
}

type listResponse struct {
	Documents []document.DocumentInfo `json:"documents"`
	Total     int                     `json:"total"`
}

func (h *DocumentsHandler) list(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.List(r.Context(), h.namespace)
	if err != nil {
		h.logger.Error("document listing failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "failed to list documents", err.Error())
		return
	}
	if docs == nil {
		docs = []document.DocumentInfo{}
	}
	writeJSON(w, h.logger, http.StatusOK, listResponse{Documents: docs, Total: len(docs)})
}

type deleteResponse struct {
	FileName      string `json:"fileName"`
	DeletedChunks int    `json:"deletedChunks"`
}

func (h *DocumentsHandler) delete(w http.ResponseWriter, r *http.Request) {
	fileName := r.PathValue("fileName")
	if fileName == "" {
		writeError(w, h.logger, http.StatusBadRequest, "file name is required", "")
		return
	}

	deleted, err := h.svc.Delete(r.Context(), fileName, h.namespace)
	if err != nil {
		h.logger.Error("document deletion failed", "fileName", fileName, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "failed to delete document", err.Error())
		return
	}
	if deleted == 0 {
		writeError(w, h.logger, http.StatusNotFound, "document not found", fileName)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, deleteResponse{FileName: fileName, DeletedChunks: deleted})
}
