package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/discount"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/storage/postgres"
)

func main() {
	var (
		databaseURL   string
		productsFile  string
		discountsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&discountsFile, "discounts-file", "db/seed/discounts.json", "path to discounts JSON file, empty to skip")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, productsFile, discountsFile); err != nil {
		lg.Fatal("seed failed", zap.Error(err))
	}

	lg.Info("seed completed successfully")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile, discountsFile string) error {
	products, err := readProducts(productsFile)
	if err != nil {
		return err
	}
	var rules []discount.Rule
	if discountsFile != "" {
		if rules, err = readDiscounts(discountsFile); err != nil {
			return err
		}
	}

	lg.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	productRepo := postgres.NewProductRepository(pool)
	for _, p := range products {
		if err := productRepo.Upsert(ctx, p); err != nil {
			return errors.Wrap(err, "seed products")
		}
		lg.Info("upserted product",
			zap.String("id", p.ID),
			zap.String("name", p.Name),
			zap.Int("options", len(p.Options)),
		)
	}

	discountRepo := postgres.NewDiscountRepository(pool)
	for _, r := range rules {
		if err := discountRepo.Upsert(ctx, r); err != nil {
			return errors.Wrap(err, "seed discounts")
		}
		lg.Info("upserted discount",
			zap.String("code", r.Discount.Code),
			zap.String("description", r.Discount.Description),
		)
	}

	return nil
}

func readProducts(path string) ([]product.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}
	products, err := product.DecodeList(jx.DecodeBytes(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return products, nil
}

func readDiscounts(path string) ([]discount.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read discounts file")
	}
	var rules []discount.Rule
	if err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var r discount.Rule
		if err := r.Decode(d); err != nil {
			return err
		}
		rules = append(rules, r)
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return rules, nil
}
