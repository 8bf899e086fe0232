package discount

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

// Repository provides access to stored discount rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	ListCodes(ctx context.Context) ([]string, error)
}

// Validator decides whether a code may be applied to a cart right now.
type Validator interface {
	Validate(ctx context.Context, code string) (*Discount, error)
}

// Source resolves a code to its definition without validity checks. It is
// used when restoring persisted carts.
type Source interface {
	Resolve(ctx context.Context, code string) (*Discount, error)
}

const minFilterCapacity = 1024

// CodeFilter is a probabilistic set of known codes. A negative answer is
// definitive, so unknown codes never reach the repository.
type CodeFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeFilter creates a filter sized for capacity codes at the given false
// positive rate.
func NewCodeFilter(capacity uint, fpr float64, codes ...string) *CodeFilter {
	if capacity < uint(len(codes)) {
		capacity = uint(len(codes))
	}
	if capacity == 0 {
		capacity = 1
	}
	f := &CodeFilter{filter: bloom.NewWithEstimates(capacity, fpr)}
	for _, c := range codes {
		f.filter.AddString(NormalizeCode(c))
	}
	return f
}

// Add inserts a code.
func (f *CodeFilter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(NormalizeCode(code))
}

// MayContain reports whether the code is possibly known.
func (f *CodeFilter) MayContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(NormalizeCode(code))
}

// LoadCodeFilter builds a filter from every code stored in the repository.
func LoadCodeFilter(ctx context.Context, repo Repository, fpr float64) (*CodeFilter, error) {
	codes, err := repo.ListCodes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list discount codes")
	}
	// Leave room for codes added by later refreshes.
	return NewCodeFilter(max(2*uint(len(codes)), minFilterCapacity), fpr, codes...), nil
}

// RepoValidator implements Validator and Source on top of a Repository.
type RepoValidator struct {
	repo   Repository
	filter *CodeFilter
	now    func() time.Time
}

// ValidatorOption configures a RepoValidator.
type ValidatorOption func(*RepoValidator)

// WithCodeFilter puts a prefilter in front of repository lookups.
func WithCodeFilter(f *CodeFilter) ValidatorOption {
	return func(v *RepoValidator) { v.filter = f }
}

// WithClock overrides the time source used for validity windows.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *RepoValidator) { v.now = now }
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository, opts ...ValidatorOption) *RepoValidator {
	v := &RepoValidator{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var (
	_ Validator = (*RepoValidator)(nil)
	_ Source    = (*RepoValidator)(nil)
)

// Validate looks up the rule for the code and checks that it is active,
// within its validity window, and under its usage limit.
func (v *RepoValidator) Validate(ctx context.Context, code string) (*Discount, error) {
	rule, err := v.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	if !rule.Active {
		return nil, ErrInvalidDiscount
	}

	now := v.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrExpired
	}

	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrUsageLimitReached
	}

	d := rule.Discount
	return &d, nil
}

// Resolve returns the stored definition of a code regardless of validity.
func (v *RepoValidator) Resolve(ctx context.Context, code string) (*Discount, error) {
	rule, err := v.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	d := rule.Discount
	return &d, nil
}

func (v *RepoValidator) lookup(ctx context.Context, code string) (*Rule, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidDiscount
	}
	if v.filter != nil && !v.filter.MayContain(code) {
		return nil, ErrInvalidDiscount
	}

	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidDiscount) {
			return nil, ErrInvalidDiscount
		}
		return nil, errors.Wrap(err, "lookup discount")
	}
	return rule, nil
}

// MapSource is an in-memory Source keyed by normalized code.
type MapSource map[string]Discount

// NewMapSource indexes discounts by code.
func NewMapSource(ds ...Discount) MapSource {
	m := make(MapSource, len(ds))
	for _, d := range ds {
		d.Code = NormalizeCode(d.Code)
		m[d.Code] = d
	}
	return m
}

// Resolve implements Source.
func (m MapSource) Resolve(_ context.Context, code string) (*Discount, error) {
	d, ok := m[NormalizeCode(code)]
	if !ok {
		return nil, ErrInvalidDiscount
	}
	return &d, nil
}

// Validate implements Validator with no validity constraints.
func (m MapSource) Validate(ctx context.Context, code string) (*Discount, error) {
	return m.Resolve(ctx, code)
}
