package underwriting

import (
	"errors"
	"math"
	"testing"

	"github.com/liamcoop/underwriting/property"
)

// knownIncome fixes rent and taxes so cash-on-cash falls strictly as price rises.
var knownIncome = Overrides{MonthlyRent: f(2720), AnnualTaxes: f(4080)}

func TestSolveRoundTrip(t *testing.T) {
	m := newTestModel(t)
	s := NewSolver(m)

	tests := []struct {
		target  float64
		wantMAO float64
	}{
		{0, 357572.3648071},
		{3, 321063.1942749},
		{6, 291317.8634644},
	}

	for _, tt := range tests {
		res, err := s.Solve(family, tt.target, knownIncome)
		if err != nil {
			t.Fatalf("Solve(%v) failed: %v", tt.target, err)
		}
		if !approx(res.MaxAllowableOffer, tt.wantMAO, 0.01) {
			t.Errorf("target %v: MaxAllowableOffer = %.7f, want %.7f", tt.target, res.MaxAllowableOffer, tt.wantMAO)
		}
		if res.BelowAsk != family.Price-res.MaxAllowableOffer {
			t.Errorf("target %v: BelowAsk = %v, want %v", tt.target, res.BelowAsk, family.Price-res.MaxAllowableOffer)
		}
		if res.TargetCoCPercent != tt.target {
			t.Errorf("TargetCoCPercent = %v, want %v", res.TargetCoCPercent, tt.target)
		}

		// Re-running the model at the offer reproduces the target
		o := knownIncome
		o.PurchasePrice = &res.MaxAllowableOffer
		back, err := m.Compute(family, o)
		if err != nil {
			t.Fatalf("Compute() failed: %v", err)
		}
		if math.Abs(back.CashOnCashPercent-tt.target) >= 0.01 {
			t.Errorf("target %v: Compute() at offer gives CoC %v", tt.target, back.CashOnCashPercent)
		}
	}
}

func TestSolveKnownTargets(t *testing.T) {
	tests := []struct {
		name    string
		opts    []SolverOption
		target  float64
		wantMAO float64
		tol     float64
	}{
		// With price-derived rent and taxes, cash-on-cash rises with price
		{"defaults below every CoC", nil, -2, 679999.3515015, 0.01},
		{"defaults above CoC at ask", nil, 1.5, 0.6484985, 0.01},
		{"held defaults offer above ask", []SolverOption{HoldPriceDerivedDefaults()}, -2, 386902.6565552, 0.01},
		{"held defaults unreachable target", []SolverOption{HoldPriceDerivedDefaults()}, -1e9, 680000, 0.65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewSolver(newTestModel(t), tt.opts...).Solve(family, tt.target, Overrides{})
			if err != nil {
				t.Fatalf("Solve() failed: %v", err)
			}
			if !approx(res.MaxAllowableOffer, tt.wantMAO, tt.tol) {
				t.Errorf("MaxAllowableOffer = %.7f, want %.7f", res.MaxAllowableOffer, tt.wantMAO)
			}
		})
	}
}

func TestSolveIterationCount(t *testing.T) {
	tests := []struct {
		iterations int
		target     float64
		want       float64
	}{
		// One step evaluates only the midpoint of [0, 2*price]
		{1, 5, 340000},
		// CoC at the ask is about 1.36, so a 5% target moves the bracket down
		{2, 5, 170000},
		// and a -2% target moves it up
		{2, -2, 510000},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.SolverIterations = tt.iterations
		m, err := NewModel(cfg)
		if err != nil {
			t.Fatalf("NewModel() failed: %v", err)
		}

		res, err := NewSolver(m).Solve(family, tt.target, Overrides{})
		if err != nil {
			t.Fatalf("Solve() failed: %v", err)
		}
		if res.MaxAllowableOffer != tt.want {
			t.Errorf("%d iterations, target %v: MaxAllowableOffer = %v, want %v",
				tt.iterations, tt.target, res.MaxAllowableOffer, tt.want)
		}
	}
}

func TestSolveIsDeterministic(t *testing.T) {
	s := NewSolver(newTestModel(t))
	o := Overrides{RehabCost: f(20000), MonthlyRent: f(3100)}

	first, err := s.Solve(family, 6, o)
	if err != nil {
		t.Fatalf("Solve() failed: %v", err)
	}
	second, err := s.Solve(family, 6, o)
	if err != nil {
		t.Fatalf("Solve() failed: %v", err)
	}
	if *first != *second {
		t.Errorf("Solve() not deterministic: %+v vs %+v", first, second)
	}
}

func TestSolveRecomputesPriceDerivedDefaults(t *testing.T) {
	res, err := NewSolver(newTestModel(t)).Solve(family, 3, Overrides{PurchasePrice: f(1)})
	if err != nil {
		t.Fatalf("Solve() failed: %v", err)
	}

	a := res.Assumptions
	if a.PurchasePrice != res.MaxAllowableOffer {
		t.Errorf("Assumptions.PurchasePrice = %v, want %v", a.PurchasePrice, res.MaxAllowableOffer)
	}
	if !approx(a.MonthlyRent, res.MaxAllowableOffer*0.008, 1e-9) || !approx(a.AnnualTaxes, res.MaxAllowableOffer*0.012, 1e-9) {
		t.Errorf("rent/taxes = %v/%v, want values derived from the offer", a.MonthlyRent, a.AnnualTaxes)
	}
}

func TestSolveHoldsPriceDerivedDefaults(t *testing.T) {
	s := NewSolver(newTestModel(t), HoldPriceDerivedDefaults())

	res, err := s.Solve(family, 3, Overrides{PurchasePrice: f(1)})
	if err != nil {
		t.Fatalf("Solve() failed: %v", err)
	}

	a := res.Assumptions
	if a.PurchasePrice != res.MaxAllowableOffer {
		t.Errorf("Assumptions.PurchasePrice = %v, want %v", a.PurchasePrice, res.MaxAllowableOffer)
	}
	if a.MonthlyRent != 2720 || a.AnnualTaxes != 4080 {
		t.Errorf("rent/taxes = %v/%v, want values derived from the asking price", a.MonthlyRent, a.AnnualTaxes)
	}

	// Holding the defaults is the same search as supplying them
	explicit, err := NewSolver(newTestModel(t)).Solve(family, 3, knownIncome)
	if err != nil {
		t.Fatalf("Solve() failed: %v", err)
	}
	if explicit.MaxAllowableOffer != res.MaxAllowableOffer {
		t.Errorf("MaxAllowableOffer = %v, want %v", res.MaxAllowableOffer, explicit.MaxAllowableOffer)
	}
}

func TestCashOnCashFallsWithPrice(t *testing.T) {
	m := newTestModel(t)
	base := m.Resolve(family, knownIncome)

	prev := math.Inf(1)
	for price := 10000.0; price <= 680000; price += 10000 {
		a := base
		a.PurchasePrice = price
		res, err := m.Evaluate(a)
		if err != nil {
			t.Fatalf("Evaluate(%v) failed: %v", price, err)
		}
		if res.CashOnCashPercent >= prev {
			t.Fatalf("cash-on-cash rose from %v to %v at price %v", prev, res.CashOnCashPercent, price)
		}
		prev = res.CashOnCashPercent
	}
}

func TestSolveInvalidInput(t *testing.T) {
	s := NewSolver(newTestModel(t))

	tests := []struct {
		name   string
		p      property.Property
		target float64
		o      Overrides
	}{
		{"NaN target", family, math.NaN(), Overrides{}},
		{"infinite target", family, math.Inf(1), Overrides{}},
		{"negative infinite target", family, math.Inf(-1), Overrides{}},
		{"zero price", property.Property{Price: 0}, 8, Overrides{}},
		{"invalid override", family, 8, Overrides{VacancyRate: f(-0.1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Solve(tt.p, tt.target, tt.o)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Solve() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}
