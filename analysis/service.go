// Package analysis runs the underwriting engine against stored properties and keeps a
// per-user history of saved analyses.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/liamcoop/underwriting/property"
	"github.com/liamcoop/underwriting/underwriting"
)

// PropertyReader is the part of property.Store the service needs.
type PropertyReader interface {
	Get(ctx context.Context, id string) (*property.Property, error)
	MarketStats(ctx context.Context) (*property.MarketStats, error)
}

// PropertySummary identifies the property an analysis was run on.
type PropertySummary struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Price   float64 `json:"price"`
	Address string  `json:"address,omitempty"`
}

// ROIAnalysis is the result of ComputeROI.
type ROIAnalysis struct {
	Property PropertySummary             `json:"property"`
	Metrics  *underwriting.MetricsResult `json:"metrics"`
}

// SaveRequest describes an analysis to store. When Metrics is empty the service
// computes them from Inputs, which are read as assumption overrides.
type SaveRequest struct {
	UserID     string          `json:"-" validate:"required,max=128"`
	PropertyID string          `json:"propertyId" validate:"required"`
	Strategy   string          `json:"strategy" validate:"required,max=64"`
	Status     string          `json:"status" validate:"omitempty,max=32"`
	Metrics    json.RawMessage `json:"metrics,omitempty"`
	Inputs     json.RawMessage `json:"inputs,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service is the application entry point for underwriting. Build one in main and share it.
type Service struct {
	properties PropertyReader
	history    HistoryStore
	model      *underwriting.Model
	solver     *underwriting.Solver
}

func NewService(properties PropertyReader, history HistoryStore, model *underwriting.Model) *Service {
	return &Service{
		properties: properties,
		history:    history,
		model:      model,
		solver:     underwriting.NewSolver(model),
	}
}

// ComputeROI runs the financial model on a stored property. Lookup errors such as
// property.ErrNotFound are returned unchanged.
func (s *Service) ComputeROI(ctx context.Context, propertyID string, o underwriting.Overrides) (*ROIAnalysis, error) {
	p, err := s.properties.Get(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	metrics, err := s.model.Compute(*p, o)
	if err != nil {
		return nil, err
	}

	return &ROIAnalysis{Property: summarize(p), Metrics: metrics}, nil
}

// ComputeMaxOffer solves for the offer that yields targetRaw percent cash-on-cash.
// A missing or non-numeric target is rejected before the property is read.
func (s *Service) ComputeMaxOffer(ctx context.Context, propertyID, targetRaw string, o underwriting.Overrides) (*underwriting.OfferResult, error) {
	if strings.TrimSpace(targetRaw) == "" {
		return nil, fmt.Errorf("%w: targetCoC is required", underwriting.ErrInvalidInput)
	}
	target, ok := underwriting.ParseNumber(targetRaw)
	if !ok {
		return nil, fmt.Errorf("%w: targetCoC must be a finite number (got %q)", underwriting.ErrInvalidInput, targetRaw)
	}

	p, err := s.properties.Get(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	return s.solver.Solve(*p, target, o)
}

// MarketOverview aggregates prices over the whole inventory.
func (s *Service) MarketOverview(ctx context.Context) (*property.MarketStats, error) {
	return s.properties.MarketStats(ctx)
}

// Save stores an analysis for req.UserID after checking that the property exists.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*Analysis, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", underwriting.ErrInvalidInput, err)
	}

	p, err := s.properties.Get(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}

	metrics := req.Metrics
	if len(metrics) == 0 {
		var o underwriting.Overrides
		if len(req.Inputs) > 0 {
			if err := json.Unmarshal(req.Inputs, &o); err != nil {
				return nil, fmt.Errorf("%w: inputs: %v", underwriting.ErrInvalidInput, err)
			}
		}
		result, err := s.model.Compute(*p, o)
		if err != nil {
			return nil, err
		}
		if metrics, err = json.Marshal(result); err != nil {
			return nil, fmt.Errorf("failed to encode metrics: %w", err)
		}
	} else if !json.Valid(metrics) {
		return nil, fmt.Errorf("%w: metrics must be valid JSON", underwriting.ErrInvalidInput)
	}
	if len(req.Inputs) > 0 && !json.Valid(req.Inputs) {
		return nil, fmt.Errorf("%w: inputs must be valid JSON", underwriting.ErrInvalidInput)
	}

	status := req.Status
	if status == "" {
		status = DefaultStatus
	}

	a := &Analysis{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		PropertyID: p.ID,
		Strategy:   req.Strategy,
		Status:     status,
		Metrics:    metrics,
		Inputs:     req.Inputs,
	}
	if err := s.history.Add(ctx, a); err != nil {
		return nil, err
	}

	a.PropertyTitle = p.Title
	a.PropertyAddress = p.Location.Address
	return a, nil
}

// History lists the user's saved analyses, newest first, with property titles and
// addresses attached. Analyses whose property has gone are returned without them.
func (s *Service) History(ctx context.Context, userID string) ([]*Analysis, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", underwriting.ErrInvalidInput)
	}

	analyses, err := s.history.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cache := map[string]*property.Property{}
	for _, a := range analyses {
		p, seen := cache[a.PropertyID]
		if !seen {
			var err error
			p, err = s.properties.Get(ctx, a.PropertyID)
			if err != nil && !errors.Is(err, property.ErrNotFound) {
				return nil, fmt.Errorf("failed to load property %s: %w", a.PropertyID, err)
			}
			cache[a.PropertyID] = p
		}
		if p != nil {
			a.PropertyTitle = p.Title
			a.PropertyAddress = p.Location.Address
		}
	}
	return analyses, nil
}

// Delete removes one of the user's saved analyses.
func (s *Service) Delete(ctx context.Context, userID, analysisID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", underwriting.ErrInvalidInput)
	}
	return s.history.Delete(ctx, userID, analysisID)
}

func summarize(p *property.Property) PropertySummary {
	return PropertySummary{
		ID:      p.ID,
		Title:   p.Title,
		Price:   p.Price,
		Address: p.Location.Address,
	}
}
