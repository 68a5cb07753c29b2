package underwriting

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// overrideKeys lists the accepted query keys per field. The short names are the ones
// older clients send.
var overrideKeys = []struct {
	keys []string
	set  func(o *Overrides, v float64)
}{
	{[]string{"purchasePrice"}, func(o *Overrides, v float64) { o.PurchasePrice = &v }},
	{[]string{"rehabCost"}, func(o *Overrides, v float64) { o.RehabCost = &v }},
	{[]string{"downPaymentPercent", "downPayment"}, func(o *Overrides, v float64) { o.DownPaymentPercent = &v }},
	{[]string{"interestRatePercent", "interestRate"}, func(o *Overrides, v float64) { o.InterestRatePercent = &v }},
	{[]string{"monthlyRent"}, func(o *Overrides, v float64) { o.MonthlyRent = &v }},
	{[]string{"vacancyRate"}, func(o *Overrides, v float64) { o.VacancyRate = &v }},
	{[]string{"managementFeeRate", "managementFee"}, func(o *Overrides, v float64) { o.ManagementFeeRate = &v }},
	{[]string{"annualTaxes"}, func(o *Overrides, v float64) { o.AnnualTaxes = &v }},
	{[]string{"annualInsurance"}, func(o *Overrides, v float64) { o.AnnualInsurance = &v }},
}

// ParseOverrides reads assumption overrides from query parameters. Missing, empty,
// non-numeric and non-finite values are left unset so the model default applies.
// Explicit zeros are kept.
func ParseOverrides(values url.Values) Overrides {
	var o Overrides
	for _, field := range overrideKeys {
		for _, key := range field.keys {
			if v, ok := ParseNumber(values.Get(key)); ok {
				field.set(&o, v)
				break
			}
		}
	}
	return o
}

// ParseNumber parses a finite float from a trimmed string.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
