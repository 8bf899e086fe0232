package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pricing/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, price, variable_pricing, default_option_id, quantity_disabled, tax_exempt
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, price, variable_pricing, default_option_id, quantity_disabled, tax_exempt
		FROM products WHERE id = $1`

	listOptionsSQL = `SELECT product_id, id, name, price
		FROM product_options WHERE product_id = ANY($1) ORDER BY product_id, position, id`

	upsertProductSQL = `INSERT INTO products (id, name, price, variable_pricing, default_option_id, quantity_disabled, tax_exempt)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			variable_pricing = EXCLUDED.variable_pricing,
			default_option_id = EXCLUDED.default_option_id,
			quantity_disabled = EXCLUDED.quantity_disabled,
			tax_exempt = EXCLUDED.tax_exempt`

	deleteOptionsSQL = `DELETE FROM product_options WHERE product_id = $1`

	insertOptionSQL = `INSERT INTO product_options (product_id, id, name, price, position)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products with their price options, ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	if err := r.attachOptions(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetByID returns the product with the given id or product.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	products := []product.Product{p}
	if err := r.attachOptions(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// Upsert inserts or replaces a product and its options.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Price, p.VariablePricing, p.DefaultOptionID, p.QuantityDisabled, p.TaxExempt,
		); err != nil {
			return errors.Wrapf(err, "upsert product %q", p.ID)
		}
		if _, err := tx.Exec(ctx, deleteOptionsSQL, p.ID); err != nil {
			return errors.Wrapf(err, "clear options of %q", p.ID)
		}
		for i, o := range p.Options {
			if _, err := tx.Exec(ctx, insertOptionSQL, p.ID, o.ID, o.Name, o.Price, i); err != nil {
				return errors.Wrapf(err, "insert option %q of %q", o.ID, p.ID)
			}
		}
		return nil
	})
}

func (r *ProductRepository) attachOptions(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	byID := make(map[string]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		byID[p.ID] = i
	}

	rows, err := r.pool.Query(ctx, listOptionsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list product options")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			o         product.Option
		)
		if err := rows.Scan(&productID, &o.ID, &o.Name, &o.Price); err != nil {
			return errors.Wrap(err, "scan product option")
		}
		if i, ok := byID[productID]; ok {
			products[i].Options = append(products[i].Options, o)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "list product options")
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.VariablePricing, &p.DefaultOptionID, &p.QuantityDisabled, &p.TaxExempt)
	return p, err
}
