package export

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rpattn/portfolio-ingest/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHTTPHandler serves version downloads under /api/exports/.
func NewHTTPHandler(service *Service, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{service: service, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/exports/versions/{id}", h.handleDownload)
	return mux
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid version identifier: %v", err), http.StatusBadRequest)
		return
	}

	export, err := h.service.Prepare(r.Context(), versionID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, ErrVersionNotCompleted):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("export failed", zap.String("version_id", versionID.String()), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", export.FileName))
	if _, err := h.service.WriteCSV(w, export); err != nil {
		// Headers are already sent; the client sees a truncated body.
		h.logger.Warn("export interrupted", zap.String("version_id", versionID.String()), zap.Error(err))
	}
}
