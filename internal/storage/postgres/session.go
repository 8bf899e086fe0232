package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/fee"
	"github.com/xenking/kart-pricing/internal/domain/tax"
)

const (
	getSessionItemsSQL        = `SELECT items FROM cart_sessions WHERE id = $1`
	getSessionDiscountsSQL    = `SELECT discount_codes FROM cart_sessions WHERE id = $1`
	getSessionFeesSQL         = `SELECT fees FROM cart_sessions WHERE id = $1`
	getSessionJurisdictionSQL = `SELECT country, region FROM cart_sessions WHERE id = $1`

	saveSessionItemsSQL = `INSERT INTO cart_sessions (id, items) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET items = EXCLUDED.items, updated_at = now()`
	saveSessionDiscountsSQL = `INSERT INTO cart_sessions (id, discount_codes) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET discount_codes = EXCLUDED.discount_codes, updated_at = now()`
	saveSessionFeesSQL = `INSERT INTO cart_sessions (id, fees) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET fees = EXCLUDED.fees, updated_at = now()`
	saveSessionJurisdictionSQL = `INSERT INTO cart_sessions (id, country, region) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET country = EXCLUDED.country, region = EXCLUDED.region, updated_at = now()`
)

var _ cart.SessionStore = (*SessionRepository)(nil)

// SessionRepository implements cart.SessionStore with one row per session.
// Missing sessions load as empty carts.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// LoadCart implements cart.SessionStore.
func (r *SessionRepository) LoadCart(ctx context.Context, sessionID string) ([]cart.Item, error) {
	var raw []byte
	if err := r.pool.QueryRow(ctx, getSessionItemsSQL, sessionID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "load items of session %q", sessionID)
	}
	return decodeItems(raw)
}

// SaveCart implements cart.SessionStore.
func (r *SessionRepository) SaveCart(ctx context.Context, sessionID string, items []cart.Item) error {
	if _, err := r.pool.Exec(ctx, saveSessionItemsSQL, sessionID, encodeItems(items)); err != nil {
		return errors.Wrapf(err, "save items of session %q", sessionID)
	}
	return nil
}

// LoadDiscounts implements cart.SessionStore.
func (r *SessionRepository) LoadDiscounts(ctx context.Context, sessionID string) ([]string, error) {
	var codes []string
	if err := r.pool.QueryRow(ctx, getSessionDiscountsSQL, sessionID).Scan(&codes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "load discounts of session %q", sessionID)
	}
	return codes, nil
}

// SaveDiscounts implements cart.SessionStore.
func (r *SessionRepository) SaveDiscounts(ctx context.Context, sessionID string, codes []string) error {
	if codes == nil {
		codes = []string{}
	}
	if _, err := r.pool.Exec(ctx, saveSessionDiscountsSQL, sessionID, codes); err != nil {
		return errors.Wrapf(err, "save discounts of session %q", sessionID)
	}
	return nil
}

// LoadFees implements cart.SessionStore.
func (r *SessionRepository) LoadFees(ctx context.Context, sessionID string) ([]fee.Fee, error) {
	var raw []byte
	if err := r.pool.QueryRow(ctx, getSessionFeesSQL, sessionID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "load fees of session %q", sessionID)
	}
	return decodeFees(raw)
}

// SaveFees implements cart.SessionStore.
func (r *SessionRepository) SaveFees(ctx context.Context, sessionID string, fees []fee.Fee) error {
	if _, err := r.pool.Exec(ctx, saveSessionFeesSQL, sessionID, encodeFees(fees)); err != nil {
		return errors.Wrapf(err, "save fees of session %q", sessionID)
	}
	return nil
}

// LoadJurisdiction implements cart.SessionStore.
func (r *SessionRepository) LoadJurisdiction(ctx context.Context, sessionID string) (tax.Jurisdiction, error) {
	var j tax.Jurisdiction
	if err := r.pool.QueryRow(ctx, getSessionJurisdictionSQL, sessionID).Scan(&j.Country, &j.Region); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tax.Jurisdiction{}, nil
		}
		return tax.Jurisdiction{}, errors.Wrapf(err, "load jurisdiction of session %q", sessionID)
	}
	return j, nil
}

// SaveJurisdiction implements cart.SessionStore.
func (r *SessionRepository) SaveJurisdiction(ctx context.Context, sessionID string, j tax.Jurisdiction) error {
	if _, err := r.pool.Exec(ctx, saveSessionJurisdictionSQL, sessionID, j.Country, j.Region); err != nil {
		return errors.Wrapf(err, "save jurisdiction of session %q", sessionID)
	}
	return nil
}
