package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/portfolio-ingest/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler exposes the service over HTTP.
type Handler struct {
	service        *Service
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHTTPHandler registers the upload and read endpoints on a mux.
func NewHTTPHandler(service *Service, maxUploadBytes int64, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{service: service, maxUploadBytes: maxUploadBytes, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/uploads", h.upload)
	mux.HandleFunc("GET /api/versions", h.versions)
	mux.HandleFunc("GET /api/versions/{id}/changes", h.changes)
	mux.HandleFunc("GET /api/versions/{id}/projects", h.projects)
	mux.HandleFunc("GET /api/versions/{id}/warnings", h.warnings)
	mux.HandleFunc("GET /api/kpis", h.kpis)
	return mux
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	req := Request{
		Dataset:  strings.TrimSpace(r.FormValue("dataset")),
		FileName: header.Filename,
		Data:     file,
	}
	if raw := strings.TrimSpace(r.FormValue("previousVersionId")); raw != "" {
		previousID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid previous version id: %v", err), http.StatusBadRequest)
			return
		}
		req.PreviousVersionID = &previousID
	}

	result, err := h.service.Ingest(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) versions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	versions, err := h.service.Versions(r.Context(), r.URL.Query().Get("dataset"), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *Handler) changes(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid version id: %v", err), http.StatusBadRequest)
		return
	}

	entries, err := h.service.ChangeLog(r.Context(), versionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) projects(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid version id: %v", err), http.StatusBadRequest)
		return
	}

	projects, err := h.service.Projects(r.Context(), versionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) warnings(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid version id: %v", err), http.StatusBadRequest)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := h.service.Warnings(r.Context(), versionID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) kpis(w http.ResponseWriter, r *http.Request) {
	version, snapshot, err := h.service.LatestKPIs(r.Context(), r.URL.Query().Get("dataset"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version": version,
		"kpis":    snapshot,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDatasetRequired),
		errors.Is(err, ErrPreviousNotCommitted),
		errors.Is(err, ErrUnreadableWorkbook):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnsupportedFormat):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repository.ErrVersionStateConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func pagination(r *http.Request) (int, int, error) {
	limit, offset := 50, 0
	query := r.URL.Query()
	if raw := query.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
		limit = v
	}
	if raw := query.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", raw)
		}
		offset = v
	}
	return limit, offset, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
