package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dailydream/studio/internal/models"
	"github.com/dailydream/studio/internal/outputs"
)

// Download handles GET /api/download/{filename}: streams a finished artifact
// with its content type and an attachment disposition.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	path, info, err := h.outputs.Stat(filename)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, "File not found")
		} else {
			respondError(w, http.StatusBadRequest, "Invalid filename")
		}
		return
	}

	w.Header().Set("Content-Type", outputs.ContentTypeFor(filename))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	http.ServeFile(w, r, path)
}

// ListFiles handles GET /api/files
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, summary, err := h.outputs.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list output files")
		return
	}

	respondJSON(w, http.StatusOK, models.ListFilesResponse{
		Success: true,
		Files:   files,
		Summary: summary,
	})
}

// FilesSummary handles GET /api/files/summary
func (h *Handler) FilesSummary(w http.ResponseWriter, r *http.Request) {
	_, summary, err := h.outputs.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read output directory")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"summary": summary,
	})
}

// DeleteFile handles DELETE /api/files/{filename}
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	if err := h.outputs.Delete(filename); err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, "File not found")
		} else {
			respondError(w, http.StatusBadRequest, "Invalid filename")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "File deleted",
	})
}

// CleanupFiles handles POST /api/cleanup. The body is optional; without it
// the configured retention window applies. An explicit olderThanHours of 0
// deletes every stored file.
func (h *Handler) CleanupFiles(w http.ResponseWriter, r *http.Request) {
	olderThanHours := h.cfg.RetentionHours
	if r.Body != nil && r.ContentLength != 0 {
		var req models.CleanupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.OlderThanHours != nil {
			if *req.OlderThanHours < 0 {
				respondError(w, http.StatusBadRequest, "olderThanHours must be zero or greater")
				return
			}
			olderThanHours = *req.OlderThanHours
		}
	}

	summary, err := h.outputs.Cleanup(time.Duration(olderThanHours * float64(time.Hour)))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Cleanup failed")
		return
	}

	respondJSON(w, http.StatusOK, models.CleanupResponse{
		Success: true,
		Summary: summary,
	})
}
