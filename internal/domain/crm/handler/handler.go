// Package handler exposes the CRM query operations over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/donorflow/donorflow/internal/domain/crm"
	"github.com/donorflow/donorflow/pkg/dates"
)

// Handler serves the CRM query routes.
type Handler struct {
	svc    *crm.Service
	logger *slog.Logger
}

// NewHandler creates the CRM handler.
func NewHandler(svc *crm.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the CRM endpoints on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListAll)
	r.Get("/filter", h.Filter)
	r.Get("/donator_profile", h.DonorProfile)
	r.Get("/unknown_gender", h.UnknownGender)
	r.Get("/export", h.Export)
	r.Post("/entries", h.AddEntry)
	r.Patch("/entries/{id}", h.UpdateRow)
	return r
}

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListAll(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.svc.Filter(r.Context(), criteria)
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) DonorProfile(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key parameter is required")
		return
	}

	profile, err := h.svc.DonorProfile(r.Context(), key)
	var notFound *crm.DonorNotFoundError
	if errors.As(err, &notFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":       notFound.Error(),
			"suggestions": notFound.Suggestions,
		})
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) UnknownGender(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.UnknownGender(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := h.svc.Export(r.Context(), criteria)
	if errors.Is(err, crm.ErrNoExportRows) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}

	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "crm_export_"+time.Now().Format("2006-01-02")+".xlsx"))
	if err := f.Write(w); err != nil {
		h.logger.Error("failed to stream export", slog.Any("error", err))
	}
}

type addEntryRequest struct {
	Data   crm.Row `json:"data"`
	Source string  `json:"source"`
}

func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var req addEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	row, err := h.svc.AddEntry(r.Context(), req.Data, req.Source)
	if errors.Is(err, crm.ErrEmptyEntry) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (h *Handler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	var patch crm.Row
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	row, err := h.svc.UpdateRow(r.Context(), id, patch)
	if errors.Is(err, crm.ErrEntryNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("entry %d not found", id))
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// criteriaFromQuery decodes the shared filter parameters. Multi-valued
// predicates accept repeated parameters and comma-separated lists.
func criteriaFromQuery(r *http.Request) (crm.Criteria, error) {
	q := r.URL.Query()
	var c crm.Criteria

	classes, err := crm.ParseClasses(multiValues(q["donor_type"]))
	if err != nil {
		return crm.Criteria{}, err
	}
	c.Classes = classes

	if raw := q.Get("date_from"); raw != "" {
		t, err := dates.Parse(raw)
		if err != nil {
			return crm.Criteria{}, fmt.Errorf("invalid date_from: %q", raw)
		}
		c.DateFrom = &t
	}
	if raw := q.Get("date_to"); raw != "" {
		t, err := dates.Parse(raw)
		if err != nil {
			return crm.Criteria{}, fmt.Errorf("invalid date_to: %q", raw)
		}
		c.DateTo = &t
	}
	if raw := q.Get("amount_from"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return crm.Criteria{}, fmt.Errorf("invalid amount_from: %q", raw)
		}
		c.AmountFrom = &d
	}
	if raw := q.Get("amount_to"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return crm.Criteria{}, fmt.Errorf("invalid amount_to: %q", raw)
		}
		c.AmountTo = &d
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return crm.Criteria{}, fmt.Errorf("invalid year: %q", raw)
		}
		c.Year = &year
	}

	c.Month = q.Get("month")
	c.Genders = multiValues(q["gender"])
	c.Languages = multiValues(q["language"])
	c.Sources = multiValues(q["source"])
	return c, nil
}

// multiValues flattens repeated parameters and comma-separated values.
func multiValues(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
