package report

import "github.com/shopspring/decimal"

// Installment is the fixed monthly payment of a Price-table loan.
type Installment struct {
	Payment decimal.Decimal
	Total   decimal.Decimal
}

// PriceInstallment computes the payment for amount over n months at
// monthlyRatePct percent a month: v·r·(1+r)^n / ((1+r)^n − 1), or v/n at a
// zero rate. Payment and total are rounded to cents.
func PriceInstallment(amount, monthlyRatePct float64, n int) Installment {
	if amount <= 0 || n <= 0 {
		return Installment{Payment: decimal.Zero, Total: decimal.Zero}
	}
	v := decimal.NewFromFloat(amount)
	periods := decimal.NewFromInt(int64(n))

	var payment decimal.Decimal
	if monthlyRatePct <= 0 {
		payment = v.Div(periods)
	} else {
		r := decimal.NewFromFloat(monthlyRatePct).Div(decimal.NewFromInt(100))
		factor := decimal.NewFromInt(1).Add(r).Pow(periods)
		payment = v.Mul(r).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1)))
	}
	return Installment{
		Payment: payment.Round(2),
		Total:   payment.Mul(periods).Round(2),
	}
}
