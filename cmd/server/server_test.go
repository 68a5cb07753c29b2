package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/liamcoop/underwriting/analysis"
	"github.com/liamcoop/underwriting/internal/config"
	"github.com/liamcoop/underwriting/property"
	"github.com/liamcoop/underwriting/underwriting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const homeID = "11111111-1111-1111-1111-111111111111"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Port:               "8080",
		StoreBackend:       config.BackendMemory,
		CORSAllowedOrigins: []string{"*"},
		MaxPageSize:        200,
		ShutdownTimeout:    time.Second,
	}

	store, err := property.NewInMemoryStore()
	require.NoError(t, err)

	austin := property.Coordinates{Lng: -97.7431, Lat: 30.2672}
	listings := []*property.Property{
		{ID: homeID, Title: "Family Home", Price: 340000, Beds: 4, Baths: 2, Sqft: 2000,
			Location: property.Location{Address: "48 Oak Ave, Austin", Coordinates: &austin}},
		{ID: "loft", Title: "Downtown Loft", Price: 520000, Beds: 1, Baths: 1, Sqft: 1000,
			Location: property.Location{Address: "1 Main St, Dallas"}},
		{ID: "condo", Title: "Starter Condo", Price: 99000, Beds: 1, Baths: 1, Sqft: 600,
			Location: property.Location{Address: "77 Pine Rd, Austin"}},
	}
	for _, p := range listings {
		require.NoError(t, store.Add(context.Background(), p))
	}

	model, err := underwriting.NewModel(underwriting.DefaultConfig())
	require.NoError(t, err)

	svc := analysis.NewService(store, analysis.NewInMemoryHistoryStore(), model)
	server, err := NewServer(cfg, nil, store, svc)
	require.NoError(t, err)
	return server
}

func doRequest(t *testing.T, s *Server, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), "body: %s", rec.Body.String())
	}
	return rec, decoded
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec, body := doRequest(t, s, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "memory", body["backend"])
}

func TestListProperties(t *testing.T) {
	s := newTestServer(t)

	rec, body := doRequest(t, s, http.MethodGet, "/api/v1/properties?price[gte]=100000&sort=-price&limit=1&page=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "success", body["status"])
	assert.Equal(t, 1.0, body["results"])

	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, 2.0, pagination["total"])
	assert.Equal(t, 2.0, pagination["page"])
	assert.Equal(t, 1.0, pagination["limit"])
	assert.Equal(t, 2.0, pagination["totalPages"])

	props := data(t, body)["properties"].([]any)
	require.Len(t, props, 1)
	assert.Equal(t, homeID, props[0].(map[string]any)["id"])
}

func TestListPropertiesProjectionAndSearch(t *testing.T) {
	s := newTestServer(t)

	rec, body := doRequest(t, s, http.MethodGet, "/api/v1/properties?search=AUSTIN&fields=title,price,bogus&sort=price", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	props := data(t, body)["properties"].([]any)
	require.Len(t, props, 2)

	first := props[0].(map[string]any)
	assert.Equal(t, "condo", first["id"])
	assert.Equal(t, "Starter Condo", first["title"])
	assert.Len(t, first, 3, "projection keeps id, title and price only")
}

func TestListPropertiesCapsLimit(t *testing.T) {
	s := newTestServer(t)

	rec, body := doRequest(t, s, http.MethodGet, "/api/v1/properties?limit=5000&foo=bar", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, 200.0, pagination["limit"])
	assert.Equal(t, 3.0, pagination["total"])
}

func TestGetProperty(t *testing.T) {
	s := newTestServer(t)

	rec, body := doRequest(t, s, http.MethodGet, "/api/v1/properties/"+homeID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := data(t, body)["property"].(map[string]any)
	assert.Equal(t, "Family Home", p["title"])
	assert.Equal(t, []any{-97.7431, 30.2672}, p["location"].(map[string]any)["coordinates"])

	rec, body = doRequest(t, s, http.MethodGet, "/api/v1/properties/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["code"])
}

func TestPropertiesWithin(t *testing.T) {
	s := newTestServer(t)

	rec, body := doRequest(t, s, http.MethodGet, "/api/v1/properties/within/10/center/30.27,-97.74/unit/mi", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["results"])

	tests := []struct {
		name string
		path string
	}{
		{"bad latlng", "/api/v1/properties/within/10/center/30.27/unit/mi"},
		{"non-numeric latlng", "/api/v1/properties/within/10/center/north,west/unit/mi"},
		{"bad distance", "/api/v1/properties/within/far/center/30.27,-97.74/unit/mi"},
		{"bad unit", "/api/v1/properties/within/10/center/30.27,-97.74/unit/ly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doRequest(t, s, http.MethodGet, tt.path, nil, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_input", body["code"])
		})
	}
}

func TestROI(t *testing.T) {
	s := newTestServer(t)

	rec, body := doRequest(t, s, http.MethodGet, "/api/v1/analysis/roi/"+homeID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	a := data(t, body)["analysis"].(map[string]any)
	assert.Equal(t, "Family Home", a["property"].(map[string]any)["title"])

	m := a["metrics"].(map[string]any)
	assert.Equal(t, 1719.23, m["monthlyMortgage"])
	assert.Equal(t, 21696.96, m["noi"])
	assert.Equal(t, 6.38, m["capRatePercent"])
	assert.Equal(t, 1.36, m["cashOnCashPercent"])
	assert.Equal(t, 78200.0, m["totalCashInvested"])
}

func TestROIOverrides(t *testing.T) {
	s := newTestServer(t)

	rec, body := doRequest(t, s, http.MethodGet, "/api/v1/analysis/roi/"+homeID+"?interestRate=0&rehabCost=abc", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	m := data(t, body)["analysis"].(map[string]any)["metrics"].(map[string]any)
	assert.Equal(t, 755.56, m["monthlyMortgage"])
	assert.Equal(t, 0.0, m["inputs"].(map[string]any)["rehabCost"], "non-numeric override falls back to default")
}

func TestROIErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"unknown property", "/api/v1/analysis/roi/missing", http.StatusNotFound, "not_found"},
		{"down payment over 100", "/api/v1/analysis/roi/" + homeID + "?downPayment=150", http.StatusBadRequest, "invalid_input"},
		{"negative rate", "/api/v1/analysis/roi/" + homeID + "?interestRatePercent=-1", http.StatusBadRequest, "invalid_input"},
		{"overflowing price", "/api/v1/analysis/roi/" + homeID + "?purchasePrice=1e308", http.StatusUnprocessableEntity, "computation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doRequest(t, s, http.MethodGet, tt.path, nil, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

func TestMaxOffer(t *testing.T) {
	s := newTestServer(t)

	rec, body := doRequest(t, s, http.MethodGet, "/api/v1/analysis/max-offer/"+homeID+"?targetCoC=3&monthlyRent=2720&annualTaxes=4080", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	d := data(t, body)
	mao := d["maxAllowableOffer"].(float64)
	assert.InDelta(t, 321063.19, mao, 0.01)
	assert.InDelta(t, 340000-mao, d["belowAsk"].(float64), 0.011)
	assert.Equal(t, 3.0, d["targetCoC"])

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"missing target", "/api/v1/analysis/max-offer/" + homeID, http.StatusBadRequest},
		{"non-numeric target", "/api/v1/analysis/max-offer/" + homeID + "?targetCoC=high", http.StatusBadRequest},
		{"unknown property", "/api/v1/analysis/max-offer/missing?targetCoC=8", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := doRequest(t, s, http.MethodGet, tt.path, nil, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestMarketOverview(t *testing.T) {
	s := newTestServer(t)

	rec, body := doRequest(t, s, http.MethodGet, "/api/v1/analysis/overview", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stats := data(t, body)["stats"].(map[string]any)
	assert.Equal(t, 3.0, stats["numProperties"])
	assert.Equal(t, 99000.0, stats["minPrice"])
	assert.Equal(t, 520000.0, stats["maxPrice"])
}

func TestAnalysisHistory(t *testing.T) {
	s := newTestServer(t)
	user := map[string]string{userIDHeader: "user-1"}

	rec, body := doRequest(t, s, http.MethodPost, "/api/v1/analysis/history", map[string]any{
		"propertyId": homeID,
		"strategy":   "buy-and-hold",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", body["code"])

	rec, body = doRequest(t, s, http.MethodPost, "/api/v1/analysis/history", map[string]any{
		"propertyId": homeID,
		"strategy":   "buy-and-hold",
		"inputs":     map[string]any{"monthlyRent": 3000},
	}, user)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := data(t, body)["analysis"].(map[string]any)
	assert.Equal(t, "Draft", saved["status"])
	assert.Equal(t, 36000.0, saved["metrics"].(map[string]any)["annualGrossRent"])
	id := saved["id"].(string)

	rec, body = doRequest(t, s, http.MethodPost, "/api/v1/analysis/history", map[string]any{
		"propertyId": homeID,
	}, user)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "strategy is required")

	rec, body = doRequest(t, s, http.MethodGet, "/api/v1/analysis/history", nil, user)
	require.Equal(t, http.StatusOK, rec.Code)
	analyses := data(t, body)["analyses"].([]any)
	require.Len(t, analyses, 1)
	assert.Equal(t, "Family Home", analyses[0].(map[string]any)["propertyTitle"])

	rec, _ = doRequest(t, s, http.MethodGet, "/api/v1/analysis/history", nil, map[string]string{userIDHeader: "user-2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, s, http.MethodDelete, "/api/v1/analysis/history/"+id, nil, map[string]string{userIDHeader: "user-2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doRequest(t, s, http.MethodDelete, "/api/v1/analysis/history/"+id, nil, user)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = doRequest(t, s, http.MethodDelete, "/api/v1/analysis/history/"+id, nil, user)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidJSONBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/history", bytes.NewBufferString("{not json"))
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpointCountsErrors(t *testing.T) {
	s := newTestServer(t)

	_, before := doRequest(t, s, http.MethodGet, "/api/v1/metrics", nil, nil)
	doRequest(t, s, http.MethodGet, "/api/v1/properties/missing", nil, nil)
	_, after := doRequest(t, s, http.MethodGet, "/api/v1/metrics", nil, nil)

	b := before["counters"].(map[string]any)["total404Errors"].(float64)
	a := after["counters"].(map[string]any)["total404Errors"].(float64)
	assert.Equal(t, b+1, a)
}

func TestCORSHeaders(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
