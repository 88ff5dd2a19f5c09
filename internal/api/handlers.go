// Package api exposes the report pipeline and the property-type classifier
// over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/propscope/internal/classify"
	"github.com/mohammed-shakir/propscope/internal/core/apierr"
	"github.com/mohammed-shakir/propscope/internal/core/model"
	"github.com/mohammed-shakir/propscope/internal/report"
)

// Reports is the part of report.Service the handlers call.
type Reports interface {
	CreateOrFetch(ctx context.Context, req report.Request) (report.Response, error)
	Status(ctx context.Context, id string) (report.Response, error)
	ReportsNear(ctx context.Context, c model.Coordinate) ([]model.Report, error)
	RefreshManifest(ctx context.Context, propertyType string) (report.RefreshResult, error)
}

type Classifier interface {
	Classify(ctx context.Context, lon, lat float64) classify.Result
}

type Handler struct {
	reports    Reports
	classifier Classifier
	log        *slog.Logger
}

func New(reports Reports, classifier Classifier, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{reports: reports, classifier: classifier, log: log}
}

// Routes mounts the API under /v1.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/reports", h.createOrFetch)
		r.Get("/reports", h.reportsNear)
		r.Get("/reports/{id}", h.status)
		r.Get("/property-type", h.propertyType)
		r.Post("/property-type", h.propertyType)
		r.Post("/manifests/{propertyType}/refresh", h.refreshManifest)
	})
}

type reportResponse struct {
	Status         string   `json:"status"`
	Message        string   `json:"message"`
	ReportID       string   `json:"reportId"`
	GroupNames     []string `json:"groupNames"`
	ReportComplete bool     `json:"reportComplete"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
}

func toReportResponse(res report.Response) reportResponse {
	groups := res.GroupNames
	if groups == nil {
		groups = []string{}
	}
	return reportResponse{
		Status:         "success",
		Message:        "Processed successfully",
		ReportID:       res.ReportID,
		GroupNames:     groups,
		ReportComplete: res.Complete,
		Latitude:       res.Coordinate.Lat,
		Longitude:      res.Coordinate.Lon,
	}
}

func (h *Handler) createOrFetch(w http.ResponseWriter, r *http.Request) {
	req, err := ParseReportRequest(r)
	if err != nil {
		h.fail(w, r, apierr.ErrInvalidInput.With(err))
		return
	}
	res, err := h.reports.CreateOrFetch(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if req.ReportID == "" {
		status = http.StatusAccepted
	}
	writeJSON(w, status, toReportResponse(res))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	res, err := h.reports.Status(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(res))
}

type nearbyReport struct {
	ReportID       string  `json:"reportId"`
	PropertyType   string  `json:"propertyType"`
	ReportComplete bool    `json:"reportComplete"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	H3Cell         string  `json:"h3Cell,omitempty"`
}

func (h *Handler) reportsNear(w http.ResponseWriter, r *http.Request) {
	c, err := ParsePoint(r)
	if err != nil {
		h.fail(w, r, apierr.ErrInvalidInput.With(err))
		return
	}
	reps, err := h.reports.ReportsNear(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]nearbyReport, 0, len(reps))
	for _, rep := range reps {
		at := rep.Location.Coordinate()
		out = append(out, nearbyReport{
			ReportID:       rep.ID,
			PropertyType:   rep.PropertyType,
			ReportComplete: rep.Complete,
			Latitude:       at.Lat,
			Longitude:      at.Lon,
			H3Cell:         rep.H3Cell,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "reports": out})
}

type propertyTypeResponse struct {
	Allowed bool   `json:"allowed"`
	Type    string `json:"type"`
}

func (h *Handler) propertyType(w http.ResponseWriter, r *http.Request) {
	c, err := ParsePoint(r)
	if err != nil {
		h.fail(w, r, apierr.ErrInvalidInput.With(err))
		return
	}
	res := h.classifier.Classify(r.Context(), c.Lon, c.Lat)
	writeJSON(w, http.StatusOK, propertyTypeResponse{Allowed: res.Allowed, Type: res.Type})
}

func (h *Handler) refreshManifest(w http.ResponseWriter, r *http.Request) {
	pt := strings.TrimSpace(chi.URLParam(r, "propertyType"))
	res, err := h.reports.RefreshManifest(r.Context(), pt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"message":      "Manifest updated",
		"propertyType": res.Manifest.PropertyType,
		"rewritten":    res.Rewritten,
	})
}

// fail maps pipeline errors onto API errors and writes them.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apierr.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, report.ErrNotFound):
		apiErr = apierr.ErrNotFound.With(err)
	case errors.Is(err, report.ErrInvalidRequest):
		apiErr = apierr.ErrInvalidInput.With(err)
	default:
		apiErr = apierr.ErrInternal.With(err)
	}
	if apiErr.Status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	} else {
		h.log.InfoContext(r.Context(), "request rejected", "path", r.URL.Path, "err", err)
	}
	apierr.Write(w, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
