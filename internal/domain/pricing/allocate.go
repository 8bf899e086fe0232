package pricing

import "github.com/shopspring/decimal"

// splitByWeight distributes amount across weights proportionally. Shares are
// taken from the rounded running total, so every share is within one minor
// unit of its exact proportion, no share is negative, and the last share takes
// what remains so the shares always sum to amount exactly. Amount must already
// be rounded to places and must not be negative.
func splitByWeight(amount decimal.Decimal, weights []decimal.Decimal, places int32) []decimal.Decimal {
	if len(weights) == 0 {
		return nil
	}
	shares := make([]decimal.Decimal, len(weights))
	for i := range shares {
		shares[i] = decimal.Zero
	}
	if amount.IsZero() {
		return shares
	}

	total := decimal.Zero
	for _, w := range weights {
		if w.IsPositive() {
			total = total.Add(w)
		}
	}
	weight := func(w decimal.Decimal) decimal.Decimal {
		switch {
		case total.IsZero():
			// distribute evenly if all zero
			return decimal.NewFromInt(1)
		case w.IsPositive():
			return w
		default:
			return decimal.Zero
		}
	}
	if total.IsZero() {
		total = decimal.NewFromInt(int64(len(weights)))
	}

	cumulative := decimal.Zero
	distributed := decimal.Zero
	last := len(weights) - 1
	for i, w := range weights[:last] {
		cumulative = cumulative.Add(weight(w))
		target := amount.Mul(cumulative).Div(total).Round(places)
		if target.GreaterThan(amount) {
			target = amount
		}
		shares[i] = target.Sub(distributed)
		distributed = target
	}
	shares[last] = amount.Sub(distributed)
	return shares
}
