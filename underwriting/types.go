package underwriting

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// AssumptionSet is the fully resolved input of one computation. Monetary fields are
// non-negative; VacancyRate and ManagementFeeRate are fractions, the *Percent fields are percents.
type AssumptionSet struct {
	PurchasePrice       float64 `json:"purchasePrice" validate:"finite,gt=0"`
	RehabCost           float64 `json:"rehabCost" validate:"finite,gte=0"`
	DownPaymentPercent  float64 `json:"downPaymentPercent" validate:"finite,gte=0,lte=100"`
	InterestRatePercent float64 `json:"interestRatePercent" validate:"finite,gte=0"`
	LoanTermYears       int     `json:"loanTermYears" validate:"gte=1"`
	MonthlyRent         float64 `json:"monthlyRent" validate:"finite,gte=0"`
	VacancyRate         float64 `json:"vacancyRate" validate:"finite,gte=0,lte=1"`
	ManagementFeeRate   float64 `json:"managementFeeRate" validate:"finite,gte=0,lte=1"`
	AnnualTaxes         float64 `json:"annualTaxes" validate:"finite,gte=0"`
	AnnualInsurance     float64 `json:"annualInsurance" validate:"finite,gte=0"`
}

// Validate checks every field against its domain.
func (a AssumptionSet) Validate() error {
	return validateStruct(a)
}

// Overrides is a partial AssumptionSet. Nil fields fall back to the model defaults.
type Overrides struct {
	PurchasePrice       *float64 `json:"purchasePrice,omitempty"`
	RehabCost           *float64 `json:"rehabCost,omitempty"`
	DownPaymentPercent  *float64 `json:"downPaymentPercent,omitempty"`
	InterestRatePercent *float64 `json:"interestRatePercent,omitempty"`
	MonthlyRent         *float64 `json:"monthlyRent,omitempty"`
	VacancyRate         *float64 `json:"vacancyRate,omitempty"`
	ManagementFeeRate   *float64 `json:"managementFeeRate,omitempty"`
	AnnualTaxes         *float64 `json:"annualTaxes,omitempty"`
	AnnualInsurance     *float64 `json:"annualInsurance,omitempty"`
}

// ExpenseBreakdown itemizes the annual operating expenses.
type ExpenseBreakdown struct {
	Taxes       float64 `json:"taxes"`
	Insurance   float64 `json:"insurance"`
	Management  float64 `json:"management"`
	Maintenance float64 `json:"maintenance"`
}

// MetricsResult is the output of the financial model. Values keep full precision;
// JSON encoding rounds them to cents.
type MetricsResult struct {
	Inputs AssumptionSet `json:"inputs"`

	DownPaymentAmount    float64          `json:"downPaymentAmount"`
	LoanAmount           float64          `json:"loanAmount"`
	MonthlyMortgage      float64          `json:"monthlyMortgage"`
	AnnualGrossRent      float64          `json:"annualGrossRent"`
	EffectiveGrossIncome float64          `json:"effectiveGrossIncome"`
	OperatingExpenses    float64          `json:"operatingExpenses"`
	DetailedExpenses     ExpenseBreakdown `json:"detailedExpenses"`
	NOI                  float64          `json:"noi"`
	AnnualDebtService    float64          `json:"annualDebtService"`
	AnnualCashFlow       float64          `json:"annualCashFlow"`
	MonthlyCashFlow      float64          `json:"monthlyCashFlow"`
	TotalCashInvested    float64          `json:"totalCashInvested"`
	CapRatePercent       float64          `json:"capRatePercent"`
	CashOnCashPercent    float64          `json:"cashOnCashPercent"`
}

// Rounded returns a copy with every monetary value and ratio rounded to 2 decimals.
// Inputs are echoed as given.
func (m MetricsResult) Rounded() MetricsResult {
	return MetricsResult{
		Inputs:               m.Inputs,
		DownPaymentAmount:    Round2(m.DownPaymentAmount),
		LoanAmount:           Round2(m.LoanAmount),
		MonthlyMortgage:      Round2(m.MonthlyMortgage),
		AnnualGrossRent:      Round2(m.AnnualGrossRent),
		EffectiveGrossIncome: Round2(m.EffectiveGrossIncome),
		OperatingExpenses:    Round2(m.OperatingExpenses),
		DetailedExpenses: ExpenseBreakdown{
			Taxes:       Round2(m.DetailedExpenses.Taxes),
			Insurance:   Round2(m.DetailedExpenses.Insurance),
			Management:  Round2(m.DetailedExpenses.Management),
			Maintenance: Round2(m.DetailedExpenses.Maintenance),
		},
		NOI:               Round2(m.NOI),
		AnnualDebtService: Round2(m.AnnualDebtService),
		AnnualCashFlow:    Round2(m.AnnualCashFlow),
		MonthlyCashFlow:   Round2(m.MonthlyCashFlow),
		TotalCashInvested: Round2(m.TotalCashInvested),
		CapRatePercent:    Round2(m.CapRatePercent),
		CashOnCashPercent: Round2(m.CashOnCashPercent),
	}
}

// MarshalJSON encodes the rounded form.
func (m MetricsResult) MarshalJSON() ([]byte, error) {
	type plain MetricsResult
	return json.Marshal(plain(m.Rounded()))
}

// OfferResult is the answer of the offer solver.
type OfferResult struct {
	MaxAllowableOffer float64 `json:"maxAllowableOffer"`

	// BelowAsk is asking price minus MaxAllowableOffer; negative when the offer exceeds the ask.
	BelowAsk float64 `json:"belowAsk"`

	TargetCoCPercent float64 `json:"targetCoC"`

	// Assumptions is the set evaluated at MaxAllowableOffer in the last bisection step.
	Assumptions AssumptionSet `json:"assumptions"`
}

// Rounded returns a copy with the monetary fields rounded to cents.
func (o OfferResult) Rounded() OfferResult {
	o.MaxAllowableOffer = Round2(o.MaxAllowableOffer)
	o.BelowAsk = Round2(o.BelowAsk)
	return o
}

// MarshalJSON encodes the rounded form.
func (o OfferResult) MarshalJSON() ([]byte, error) {
	type plain OfferResult
	return json.Marshal(plain(o.Rounded()))
}

// Round2 rounds half away from zero to 2 decimal places. Non-finite values are returned unchanged.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
