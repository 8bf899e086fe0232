package fee

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Invalidator is notified whenever the ledger contents change.
type Invalidator interface {
	Invalidate()
}

// Filter narrows the result of Ledger.Fees. Zero values match everything.
type Filter struct {
	Scope     Scope
	ProductID string
}

// Ledger is an ordered collection of fees keyed by id.
type Ledger struct {
	fees      []Fee
	observers []Invalidator
}

// NewLedger creates a ledger holding the given fees. Malformed fees and
// duplicate ids are dropped.
func NewLedger(fees ...Fee) *Ledger {
	l := &Ledger{}
	for _, f := range fees {
		if f.Validate() != nil || l.index(f.ID) >= 0 {
			continue
		}
		l.fees = append(l.fees, f)
	}
	return l
}

// Subscribe registers an observer notified after every change.
func (l *Ledger) Subscribe(o Invalidator) {
	l.observers = append(l.observers, o)
}

// Add appends a fee. It returns false without changing the ledger when a fee
// with the same id already exists.
func (l *Ledger) Add(f Fee) (bool, error) {
	if err := f.Validate(); err != nil {
		return false, err
	}
	if l.index(f.ID) >= 0 {
		return false, nil
	}
	l.fees = append(l.fees, f)
	l.notify()
	return true, nil
}

// Remove deletes the fee with the given id. It reports whether a fee was removed.
func (l *Ledger) Remove(id string) bool {
	i := l.index(id)
	if i < 0 {
		return false
	}
	l.fees = slices.Delete(l.fees, i, i+1)
	l.notify()
	return true
}

// Clear removes every fee.
func (l *Ledger) Clear() {
	if len(l.fees) == 0 {
		return
	}
	l.fees = nil
	l.notify()
}

// Total sums fees. With an empty productID it returns the cart-level total:
// cart fees plus untargeted item fees. With a productID it returns only the
// item fees targeting that product.
func (l *Ledger) Total(productID string) decimal.Decimal {
	total := decimal.Zero
	for _, f := range l.fees {
		if productID == "" {
			if !f.Targeted() {
				total = total.Add(f.Amount)
			}
			continue
		}
		if f.Targeted() && f.TargetProductID == productID {
			total = total.Add(f.Amount)
		}
	}
	return total
}

// HasFees reports whether the ledger holds any fee.
func (l *Ledger) HasFees() bool {
	return len(l.fees) > 0
}

// Fees returns a copy of the fees matching the filter, in insertion order.
func (l *Ledger) Fees(filter Filter) []Fee {
	out := make([]Fee, 0, len(l.fees))
	for _, f := range l.fees {
		if filter.Scope != "" && f.Scope != filter.Scope {
			continue
		}
		if filter.ProductID != "" && f.TargetProductID != filter.ProductID {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Get returns the fee with the given id.
func (l *Ledger) Get(id string) (Fee, bool) {
	if i := l.index(id); i >= 0 {
		return l.fees[i], true
	}
	return Fee{}, false
}

// NoTax reports whether any targeted fee marks the product tax-exempt.
func (l *Ledger) NoTax(productID string) bool {
	for _, f := range l.fees {
		if f.NoTax && f.Targeted() && f.TargetProductID == productID {
			return true
		}
	}
	return false
}

func (l *Ledger) index(id string) int {
	return slices.IndexFunc(l.fees, func(f Fee) bool { return f.ID == id })
}

func (l *Ledger) notify() {
	for _, o := range l.observers {
		o.Invalidate()
	}
}
