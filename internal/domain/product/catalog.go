package product

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// Catalog is a warmed, in-process product lookup shared by all carts.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]Product
}

// NewCatalog creates a Catalog holding the given products.
func NewCatalog(products ...Product) *Catalog {
	c := &Catalog{}
	c.Replace(products)
	return c
}

// Lookup returns the product with the given id.
func (c *Catalog) Lookup(id string) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	return p, ok
}

// Len returns the number of products in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.products)
}

// Replace swaps the catalog contents for the given products.
func (c *Catalog) Replace(products []Product) {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}

	c.mu.Lock()
	c.products = m
	c.mu.Unlock()
}

// Warm loads every product from the repository into the catalog.
func (c *Catalog) Warm(ctx context.Context, repo Repository) error {
	products, err := repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}
	c.Replace(products)
	return nil
}
