package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/discount"
)

const (
	getDiscountByCodeSQL = `SELECT code, description, discount_type, amount, scope, product_ids, not_global,
		min_cart_price, active, valid_from, valid_until, max_uses, uses
		FROM discounts WHERE code = UPPER($1)`

	listDiscountCodesSQL = `SELECT code FROM discounts WHERE active = TRUE`

	upsertDiscountSQL = `INSERT INTO discounts (code, description, discount_type, amount, scope, product_ids,
			not_global, min_cart_price, active, valid_from, valid_until, max_uses)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (code) DO UPDATE SET
			description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type,
			amount = EXCLUDED.amount,
			scope = EXCLUDED.scope,
			product_ids = EXCLUDED.product_ids,
			not_global = EXCLUDED.not_global,
			min_cart_price = EXCLUDED.min_cart_price,
			active = EXCLUDED.active,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up a discount by its code, case-insensitively. Returns
// discount.ErrInvalidDiscount when no discount matches.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Rule, error) {
	rows, err := r.pool.Query(ctx, getDiscountByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find discount %q", code)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanDiscountRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrInvalidDiscount
		}
		return nil, errors.Wrapf(err, "find discount %q", code)
	}
	return &rule, nil
}

// ListCodes returns every active code.
func (r *DiscountRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listDiscountCodesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list discount codes")
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "list discount codes")
	}
	return codes, nil
}

// Upsert inserts or replaces a discount rule. The usage counter is kept.
func (r *DiscountRepository) Upsert(ctx context.Context, rule discount.Rule) error {
	d := rule.Discount
	typ, amount := discount.KindName(d.Kind)
	if typ == "" {
		return errors.Wrapf(discount.ErrInvalidDiscount, "discount %q has no kind", d.Code)
	}
	scope, products := discount.ScopeName(d.Scope)
	if products == nil {
		products = []string{}
	}

	if _, err := r.pool.Exec(ctx, upsertDiscountSQL,
		d.Code, d.Description, typ, amount, scope, products,
		d.NotGlobal, d.MinCartPrice, rule.Active, rule.ValidFrom, rule.ValidUntil, int32(rule.MaxUses),
	); err != nil {
		return errors.Wrapf(err, "upsert discount %q", d.Code)
	}
	return nil
}

func scanDiscountRule(row pgx.CollectableRow) (discount.Rule, error) {
	var (
		rule         discount.Rule
		code         string
		description  string
		typ          string
		amount       decimal.Decimal
		scope        string
		products     []string
		notGlobal    bool
		minCartPrice decimal.Decimal
		validFrom    *time.Time
		validUntil   *time.Time
		maxUses      int32
		uses         int32
	)
	if err := row.Scan(
		&code, &description, &typ, &amount, &scope, &products, &notGlobal,
		&minCartPrice, &rule.Active, &validFrom, &validUntil, &maxUses, &uses,
	); err != nil {
		return rule, err
	}

	kind, err := discount.NewKind(typ, amount)
	if err != nil {
		return rule, err
	}
	sc, err := discount.NewScope(scope, products)
	if err != nil {
		return rule, err
	}

	rule.Discount = discount.Discount{
		Code:         code,
		Description:  description,
		Kind:         kind,
		Scope:        sc,
		NotGlobal:    notGlobal,
		MinCartPrice: minCartPrice,
	}
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	return rule, nil
}
