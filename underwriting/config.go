package underwriting

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config holds the constants of the financial model and the offer search.
// DefaultConfig reproduces the ratios the model has always used.
type Config struct {
	// ClosingCostRate is the share of the purchase price added to cash invested.
	ClosingCostRate float64 `yaml:"closing_cost_rate" json:"closingCostRate" validate:"finite,gte=0,lte=1"`

	// MaintenanceRate is applied to effective gross income.
	MaintenanceRate float64 `yaml:"maintenance_rate" json:"maintenanceRate" validate:"finite,gte=0,lte=1"`

	// DefaultRentRatio derives monthly rent from the purchase price when rent is not supplied.
	DefaultRentRatio float64 `yaml:"default_rent_ratio" json:"defaultRentRatio" validate:"finite,gte=0,lte=1"`

	// DefaultTaxRate derives annual taxes from the purchase price when taxes are not supplied.
	DefaultTaxRate float64 `yaml:"default_tax_rate" json:"defaultTaxRate" validate:"finite,gte=0,lte=1"`

	DefaultAnnualInsurance     float64 `yaml:"default_annual_insurance" json:"defaultAnnualInsurance" validate:"finite,gte=0"`
	DefaultDownPaymentPercent  float64 `yaml:"default_down_payment_percent" json:"defaultDownPaymentPercent" validate:"finite,gte=0,lte=100"`
	DefaultInterestRatePercent float64 `yaml:"default_interest_rate_percent" json:"defaultInterestRatePercent" validate:"finite,gte=0"`
	DefaultVacancyRate         float64 `yaml:"default_vacancy_rate" json:"defaultVacancyRate" validate:"finite,gte=0,lte=1"`
	DefaultManagementFeeRate   float64 `yaml:"default_management_fee_rate" json:"defaultManagementFeeRate" validate:"finite,gte=0,lte=1"`

	// LoanTermYears is fixed for every computation; overrides cannot change it.
	LoanTermYears int `yaml:"loan_term_years" json:"loanTermYears" validate:"gte=1,lte=50"`

	// SolverIterations is the exact number of bisection steps the solver performs.
	SolverIterations int `yaml:"solver_iterations" json:"solverIterations" validate:"gte=1,lte=200"`

	// SearchCeilingMultiple bounds the offer search to [0, multiple*asking price].
	SearchCeilingMultiple float64 `yaml:"search_ceiling_multiple" json:"searchCeilingMultiple" validate:"finite,gt=0,lte=100"`
}

// DefaultConfig returns the standard underwriting constants.
func DefaultConfig() Config {
	return Config{
		ClosingCostRate:            0.03,
		MaintenanceRate:            0.05,
		DefaultRentRatio:           0.008,
		DefaultTaxRate:             0.012,
		DefaultAnnualInsurance:     1200,
		DefaultDownPaymentPercent:  20,
		DefaultInterestRatePercent: 6.5,
		DefaultVacancyRate:         0.05,
		DefaultManagementFeeRate:   0.08,
		LoanTermYears:              30,
		SolverIterations:           20,
		SearchCeilingMultiple:      2,
	}
}

// Validate reports whether every constant is within its domain.
func (c Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return fmt.Errorf("invalid underwriting config: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys missing from the
// file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read underwriting config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse underwriting config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}
