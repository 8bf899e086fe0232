package discount

import (
	"slices"

	"github.com/go-faster/errors"
)

var (
	// ErrAlreadyApplied is returned when a code is already in the stack.
	ErrAlreadyApplied = errors.New("discount already applied")
	// ErrMultipleNotAllowed is returned when the store allows a single
	// discount and one is already applied.
	ErrMultipleNotAllowed = errors.New("only one discount may be applied")
)

// Stack is the ordered list of discounts applied to a cart. Order matters for
// flat discount splitting.
type Stack struct {
	allowMultiple bool
	items         []Discount
}

// NewStack creates a stack. When allowMultiple is false it holds at most one
// discount.
func NewStack(allowMultiple bool) *Stack {
	return &Stack{allowMultiple: allowMultiple}
}

// Push appends a discount to the stack.
func (s *Stack) Push(d Discount) error {
	d.Code = NormalizeCode(d.Code)
	if d.Code == "" {
		return errors.Wrap(ErrInvalidDiscount, "empty code")
	}
	if s.Has(d.Code) {
		return ErrAlreadyApplied
	}
	if !s.allowMultiple && len(s.items) > 0 {
		return ErrMultipleNotAllowed
	}
	s.items = append(s.items, d)
	return nil
}

// Remove deletes the discount with the given code and reports whether it was present.
func (s *Stack) Remove(code string) bool {
	code = NormalizeCode(code)
	i := slices.IndexFunc(s.items, func(d Discount) bool { return d.Code == code })
	if i < 0 {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	return true
}

// Has reports whether the code is in the stack.
func (s *Stack) Has(code string) bool {
	code = NormalizeCode(code)
	return slices.ContainsFunc(s.items, func(d Discount) bool { return d.Code == code })
}

// Clear empties the stack.
func (s *Stack) Clear() {
	s.items = nil
}

// Len returns the number of applied discounts.
func (s *Stack) Len() int {
	return len(s.items)
}

// Discounts returns a copy of the stack in application order.
func (s *Stack) Discounts() []Discount {
	return slices.Clone(s.items)
}

// Codes returns the applied codes in application order.
func (s *Stack) Codes() []string {
	codes := make([]string, len(s.items))
	for i, d := range s.items {
		codes[i] = d.Code
	}
	return codes
}
