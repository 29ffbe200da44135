// Package handler exposes spreadsheet ingestion over HTTP.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/donorflow/donorflow/internal/domain/ingest/service"
)

// Handler serves the upload endpoints.
type Handler struct {
	svc            *service.Service
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler creates the ingestion handler.
func NewHandler(svc *service.Service, maxUploadBytes int64, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Routes mounts the upload endpoints on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Upload)
	r.Post("/csv", h.UploadCSV)
	r.Post("/months", h.Months)
	return r
}

// Upload ingests one or more workbooks. The multipart form carries the
// files under "files" and a parallel list of source tags under "sources";
// a lone "source" value applies to every file.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	uploads, closers, status, err := h.parseUploads(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	defer closeAll(closers)

	report, err := h.svc.Ingest(r.Context(), uploads)
	if err != nil {
		h.logger.Error("ingestion failed", slog.Any("error", err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// UploadCSV ingests a single canonical-format CSV file.
func (h *Handler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	uploads, closers, status, err := h.parseUploads(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	defer closeAll(closers)

	if len(uploads) != 1 {
		writeError(w, http.StatusBadRequest, "csv upload takes exactly one file")
		return
	}

	report, err := h.svc.IngestCSV(r.Context(), uploads[0])
	if err != nil {
		h.logger.Error("csv ingestion failed", slog.Any("error", err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Months previews the month sheets of the uploaded workbooks without
// storing anything.
func (h *Handler) Months(w http.ResponseWriter, r *http.Request) {
	uploads, closers, status, err := h.parseUploads(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	defer closeAll(closers)

	months, err := h.svc.SheetMonths(r.Context(), uploads)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": months})
}

func (h *Handler) parseUploads(r *http.Request) ([]service.Upload, []multipart.File, int, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return nil, nil, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		return nil, nil, http.StatusBadRequest, fmt.Errorf("no files uploaded")
	}

	sources := r.MultipartForm.Value["sources"]
	defaultSource := r.FormValue("source")
	if len(sources) > 0 && len(sources) != len(files) {
		return nil, nil, http.StatusBadRequest,
			fmt.Errorf("got %d files but %d sources", len(files), len(sources))
	}

	uploads := make([]service.Upload, 0, len(files))
	closers := make([]multipart.File, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			closeAll(closers)
			return nil, nil, http.StatusBadRequest, fmt.Errorf("failed to open %q: %w", fh.Filename, err)
		}
		closers = append(closers, f)

		source := defaultSource
		if len(sources) > 0 {
			source = strings.TrimSpace(sources[i])
		}
		if source == "" {
			source = strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
		}

		uploads = append(uploads, service.Upload{
			Name:   fh.Filename,
			Source: source,
			Reader: f,
		})
	}
	return uploads, closers, 0, nil
}

func closeAll(files []multipart.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
