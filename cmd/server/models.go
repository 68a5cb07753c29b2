package main

import (
	"github.com/liamcoop/underwriting/analysis"
	"github.com/liamcoop/underwriting/internal/logger"
	"github.com/liamcoop/underwriting/property"
)

// API response models. Successful responses share one envelope.

// Envelope wraps every successful response
type Envelope struct {
	Status     string      `json:"status" example:"success"`
	Results    *int        `json:"results,omitempty" example:"10"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Data       any         `json:"data"`
}

// Pagination describes the page returned by a list endpoint
type Pagination struct {
	Total      int `json:"total" example:"42"`
	Page       int `json:"page" example:"1"`
	Limit      int `json:"limit" example:"100"`
	TotalPages int `json:"totalPages" example:"1"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"property not found"`
	Code    string `json:"code" example:"not_found"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status" example:"healthy"`
	Backend string `json:"backend" example:"postgres"`
	Error   string `json:"error,omitempty"`
}

// MetricsResponse exposes the logger counters
type MetricsResponse struct {
	Counters logger.Counters `json:"counters"`
}

// PropertiesData is the data of a property list response. Properties holds full
// records, or projected field maps when the request selected fields.
type PropertiesData struct {
	Properties any `json:"properties"`
}

// PropertyData is the data of a single property response
type PropertyData struct {
	Property *property.Property `json:"property"`
}

// AnalysisData is the data of an ROI response
type AnalysisData struct {
	Analysis *analysis.ROIAnalysis `json:"analysis"`
}

// StatsData is the data of a market overview response
type StatsData struct {
	Stats *property.MarketStats `json:"stats"`
}

// SavedAnalysisData is the data of a saved analysis response
type SavedAnalysisData struct {
	Analysis *analysis.Analysis `json:"analysis"`
}

// HistoryData is the data of a history response
type HistoryData struct {
	Analyses []*analysis.Analysis `json:"analyses"`
}

func success(data any) Envelope {
	return Envelope{Status: "success", Data: data}
}

func successList(n int, data any) Envelope {
	return Envelope{Status: "success", Results: &n, Data: data}
}
