package underwriting

import (
	"fmt"
	"math"

	"github.com/liamcoop/underwriting/property"
)

// Solver searches for the purchase price at which the model yields a target
// cash-on-cash return. It assumes cash-on-cash falls as price rises; with rent and
// taxes left to their price-derived defaults that does not hold, and the search
// drifts to one end of the bracket.
type Solver struct {
	model        *Model
	holdDefaults bool
}

// SolverOption configures a Solver.
type SolverOption func(*Solver)

// HoldPriceDerivedDefaults resolves rent and taxes once against the asking price and
// keeps them fixed while the purchase price varies.
func HoldPriceDerivedDefaults() SolverOption {
	return func(s *Solver) { s.holdDefaults = true }
}

// NewSolver wraps a model.
func NewSolver(model *Model, opts ...SolverOption) *Solver {
	s := &Solver{model: model}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve bisects purchase price over [0, SearchCeilingMultiple*asking price] for exactly
// SolverIterations steps and returns the last midpoint. Each step runs the model with
// only the purchase price replaced by the midpoint, so a purchase price override has
// no effect.
func (s *Solver) Solve(p property.Property, targetCoCPercent float64, o Overrides) (*OfferResult, error) {
	if math.IsNaN(targetCoCPercent) || math.IsInf(targetCoCPercent, 0) {
		return nil, fmt.Errorf("%w: targetCoC must be a finite number (got %v)", ErrInvalidInput, targetCoCPercent)
	}
	if !(p.Price > 0) || math.IsInf(p.Price, 0) {
		return nil, fmt.Errorf("%w: property price must be positive (got %v)", ErrInvalidInput, p.Price)
	}

	cfg := s.model.Config()

	o.PurchasePrice = nil
	if s.holdDefaults {
		base := s.model.Resolve(p, o)
		o.MonthlyRent = &base.MonthlyRent
		o.AnnualTaxes = &base.AnnualTaxes
	}

	low, high := 0.0, p.Price*cfg.SearchCeilingMultiple
	var (
		mao float64
		at  AssumptionSet
	)
	for i := 0; i < cfg.SolverIterations; i++ {
		mao = (low + high) / 2
		step := o
		step.PurchasePrice = &mao

		res, err := s.model.Compute(p, step)
		if err != nil {
			return nil, fmt.Errorf("evaluating offer %.2f: %w", mao, err)
		}
		at = res.Inputs

		if res.CashOnCashPercent > targetCoCPercent {
			low = mao
		} else {
			high = mao
		}
	}

	return &OfferResult{
		MaxAllowableOffer: mao,
		BelowAsk:          p.Price - mao,
		TargetCoCPercent:  targetCoCPercent,
		Assumptions:       at,
	}, nil
}
