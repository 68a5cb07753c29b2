package underwriting

import (
	"fmt"
	"math"

	"github.com/liamcoop/underwriting/property"
)

// Model computes financing terms, income, expenses and return metrics for a property.
// It holds no mutable state and is safe for concurrent use.
type Model struct {
	cfg Config
}

// NewModel creates a model with the given constants.
func NewModel(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg}, nil
}

// Config returns the constants the model was built with.
func (m *Model) Config() Config {
	return m.cfg
}

// Resolve fills every assumption the overrides leave unset. Rent and taxes default
// to ratios of the resolved purchase price, which itself defaults to the asking price.
func (m *Model) Resolve(p property.Property, o Overrides) AssumptionSet {
	price := p.Price
	if o.PurchasePrice != nil {
		price = *o.PurchasePrice
	}

	return AssumptionSet{
		PurchasePrice:       price,
		RehabCost:           valueOr(o.RehabCost, 0),
		DownPaymentPercent:  valueOr(o.DownPaymentPercent, m.cfg.DefaultDownPaymentPercent),
		InterestRatePercent: valueOr(o.InterestRatePercent, m.cfg.DefaultInterestRatePercent),
		LoanTermYears:       m.cfg.LoanTermYears,
		MonthlyRent:         valueOr(o.MonthlyRent, price*m.cfg.DefaultRentRatio),
		VacancyRate:         valueOr(o.VacancyRate, m.cfg.DefaultVacancyRate),
		ManagementFeeRate:   valueOr(o.ManagementFeeRate, m.cfg.DefaultManagementFeeRate),
		AnnualTaxes:         valueOr(o.AnnualTaxes, price*m.cfg.DefaultTaxRate),
		AnnualInsurance:     valueOr(o.AnnualInsurance, m.cfg.DefaultAnnualInsurance),
	}
}

// Compute resolves the overrides against the property and evaluates the result.
func (m *Model) Compute(p property.Property, o Overrides) (*MetricsResult, error) {
	return m.Evaluate(m.Resolve(p, o))
}

// Evaluate runs the model on a resolved assumption set.
func (m *Model) Evaluate(a AssumptionSet) (*MetricsResult, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	downPayment := a.PurchasePrice * a.DownPaymentPercent / 100
	loanAmount := a.PurchasePrice - downPayment
	monthlyMortgage := MonthlyPayment(loanAmount, a.InterestRatePercent, a.LoanTermYears)

	annualGrossRent := a.MonthlyRent * 12
	egi := annualGrossRent * (1 - a.VacancyRate)

	management := egi * a.ManagementFeeRate
	maintenance := egi * m.cfg.MaintenanceRate
	opex := a.AnnualTaxes + a.AnnualInsurance + management + maintenance

	noi := egi - opex
	debtService := monthlyMortgage * 12
	cashFlow := noi - debtService

	cashInvested := downPayment + a.RehabCost + a.PurchasePrice*m.cfg.ClosingCostRate

	capRate := 0.0
	if a.PurchasePrice > 0 {
		capRate = noi / a.PurchasePrice * 100
	}
	cashOnCash := 0.0
	if cashInvested > 0 {
		cashOnCash = cashFlow / cashInvested * 100
	}

	res := &MetricsResult{
		Inputs:               a,
		DownPaymentAmount:    downPayment,
		LoanAmount:           loanAmount,
		MonthlyMortgage:      monthlyMortgage,
		AnnualGrossRent:      annualGrossRent,
		EffectiveGrossIncome: egi,
		OperatingExpenses:    opex,
		DetailedExpenses: ExpenseBreakdown{
			Taxes:       a.AnnualTaxes,
			Insurance:   a.AnnualInsurance,
			Management:  management,
			Maintenance: maintenance,
		},
		NOI:               noi,
		AnnualDebtService: debtService,
		AnnualCashFlow:    cashFlow,
		MonthlyCashFlow:   cashFlow / 12,
		TotalCashInvested: cashInvested,
		CapRatePercent:    capRate,
		CashOnCashPercent: cashOnCash,
	}

	if err := res.checkFinite(); err != nil {
		return nil, err
	}

	return res, nil
}

// MonthlyPayment is the fixed payment that amortizes principal over termYears at
// annualRatePercent. A zero rate divides the principal evenly across the payments.
func MonthlyPayment(principal, annualRatePercent float64, termYears int) float64 {
	n := float64(termYears * 12)
	r := annualRatePercent / 100 / 12
	if r == 0 {
		return principal / n
	}
	growth := math.Pow(1+r, n)
	return principal * (r * growth) / (growth - 1)
}

func (m *MetricsResult) checkFinite() error {
	values := []struct {
		name string
		v    float64
	}{
		{"loanAmount", m.LoanAmount},
		{"monthlyMortgage", m.MonthlyMortgage},
		{"annualGrossRent", m.AnnualGrossRent},
		{"effectiveGrossIncome", m.EffectiveGrossIncome},
		{"operatingExpenses", m.OperatingExpenses},
		{"noi", m.NOI},
		{"annualDebtService", m.AnnualDebtService},
		{"annualCashFlow", m.AnnualCashFlow},
		{"totalCashInvested", m.TotalCashInvested},
		{"capRatePercent", m.CapRatePercent},
		{"cashOnCashPercent", m.CashOnCashPercent},
	}
	for _, f := range values {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite (%v)", ErrComputation, f.name, f.v)
		}
	}
	return nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
