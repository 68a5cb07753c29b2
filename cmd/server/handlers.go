package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/liamcoop/underwriting/analysis"
	"github.com/liamcoop/underwriting/internal/logger"
	"github.com/liamcoop/underwriting/property"
	"github.com/liamcoop/underwriting/underwriting"
)

const (
	userIDHeader = "X-User-ID"
	maxBodyBytes = 1 << 20
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "unhealthy",
				Backend: s.cfg.StoreBackend,
				Error:   err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Backend: s.cfg.StoreBackend})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, MetricsResponse{Counters: logger.Snapshot()})
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	spec := s.filters.BuildFromQuery(r.URL.Query())

	page, err := s.properties.List(r.Context(), spec)
	if err != nil {
		respondError(w, err)
		return
	}

	var props any = page.Properties
	if spec.Fields != nil {
		projected := make([]map[string]any, 0, len(page.Properties))
		for _, p := range page.Properties {
			projected = append(projected, spec.Project(p.Record()))
		}
		props = projected
	}

	env := successList(len(page.Properties), PropertiesData{Properties: props})
	env.Pagination = &Pagination{
		Total:      page.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: page.TotalPages,
	}
	respondJSON(w, http.StatusOK, env)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	p, err := s.properties.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, success(PropertyData{Property: p}))
}

func (s *Server) handlePropertiesWithin(w http.ResponseWriter, r *http.Request) {
	distance, ok := underwriting.ParseNumber(chi.URLParam(r, "distance"))
	if !ok {
		respondError(w, badRequest("distance must be a number"))
		return
	}

	center, err := parseLatLng(chi.URLParam(r, "latlng"))
	if err != nil {
		respondError(w, err)
		return
	}

	props, err := s.properties.WithinRadius(r.Context(), center, distance, property.Unit(chi.URLParam(r, "unit")))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, successList(len(props), PropertiesData{Properties: props}))
}

// parseLatLng reads a "lat,lng" path segment.
func parseLatLng(s string) (property.Coordinates, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return property.Coordinates{}, badRequest("please provide latitude and longitude in the format lat,lng")
	}
	lat, okLat := underwriting.ParseNumber(parts[0])
	lng, okLng := underwriting.ParseNumber(parts[1])
	if !okLat || !okLng {
		return property.Coordinates{}, badRequest("please provide latitude and longitude in the format lat,lng")
	}
	return property.Coordinates{Lat: lat, Lng: lng}, nil
}

func (s *Server) handleROI(w http.ResponseWriter, r *http.Request) {
	res, err := s.analysis.ComputeROI(r.Context(), chi.URLParam(r, "propertyId"), underwriting.ParseOverrides(r.URL.Query()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, success(AnalysisData{Analysis: res}))
}

func (s *Server) handleMaxOffer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.analysis.ComputeMaxOffer(r.Context(), chi.URLParam(r, "propertyId"), q.Get("targetCoC"), underwriting.ParseOverrides(q))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, success(res))
}

func (s *Server) handleMarketOverview(w http.ResponseWriter, r *http.Request) {
	stats, err := s.analysis.MarketOverview(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, success(StatsData{Stats: stats}))
}

func (s *Server) handleSaveAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req analysis.SaveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, badRequest("invalid request body: "+err.Error()))
		return
	}
	req.UserID = userID

	saved, err := s.analysis.Save(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, success(SavedAnalysisData{Analysis: saved}))
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	analyses, err := s.analysis.History(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, successList(len(analyses), HistoryData{Analyses: analyses}))
}

func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := s.analysis.Delete(r.Context(), userID, chi.URLParam(r, "analysisId")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireUser reads the caller identity set by the upstream auth layer.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(userIDHeader))
	if userID == "" {
		logger.WarnHttp4xx(http.StatusUnauthorized)
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "missing " + userIDHeader + " header",
			Code:  "unauthorized",
		})
		return "", false
	}
	return userID, true
}

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr),
		errors.Is(err, underwriting.ErrInvalidInput),
		errors.Is(err, property.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, property.ErrNotFound), errors.Is(err, analysis.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, underwriting.ErrComputation):
		return http.StatusUnprocessableEntity, "computation_error"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, err error) {
	status, code := classify(err)

	response := ErrorResponse{Error: err.Error(), Code: code}
	if status >= 500 {
		logger.ErrorHttp5xx()
		logger.Error("request failed", "status", status, "error", err)
		response.Error = "internal server error"
		response.Details = err.Error()
	} else {
		logger.WarnHttp4xx(status)
	}

	respondJSON(w, status, response)
}
