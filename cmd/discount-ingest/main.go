// Command discount-ingest bulk loads discount definitions from gzip-compressed
// JSON-lines files. Files are decompressed and parsed concurrently; a single
// writer upserts them as they arrive.
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-pricing/internal/domain/discount"
	"github.com/xenking/kart-pricing/internal/storage/postgres"
)

const (
	filterFPR     = 0.001
	progressEvery = 10_000
	maxLineSize   = 1 << 20
)

type options struct {
	dataDir      string
	pattern      string
	workers      int
	skipExisting bool
	strict       bool
}

// Store is the subset of the discount repository the ingester writes to.
type Store interface {
	discount.Repository
	Upsert(ctx context.Context, rule discount.Rule) error
}

func main() {
	var (
		opts        options
		databaseURL string
	)

	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing discount files")
	flag.StringVar(&opts.pattern, "pattern", "*.jsonl.gz", "glob of files to ingest inside data-dir")
	flag.IntVar(&opts.workers, "workers", runtime.GOMAXPROCS(0), "files parsed concurrently")
	flag.BoolVar(&opts.skipExisting, "skip-existing", false, "keep codes that are already stored")
	flag.BoolVar(&opts.strict, "strict", false, "fail on the first malformed line instead of skipping it")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	files, err := filepath.Glob(filepath.Join(opts.dataDir, opts.pattern))
	if err != nil {
		lg.Fatal("bad file pattern", zap.Error(err))
	}
	if len(files) == 0 {
		lg.Info("no files to ingest", zap.String("dir", opts.dataDir), zap.String("pattern", opts.pattern))
		return
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		lg.Fatal("connect to database", zap.Error(err))
	}
	defer pool.Close()

	stats, err := ingest(ctx, lg, postgres.NewDiscountRepository(pool), files, opts)
	if err != nil {
		lg.Fatal("discount ingest failed", zap.Error(err))
	}
	lg.Info("discount ingest completed successfully",
		zap.Int("written", stats.written),
		zap.Int("duplicates", stats.duplicates),
		zap.Int("existing", stats.existing),
		zap.Int("malformed", stats.malformed),
	)
}

type ingestStats struct {
	written    int
	duplicates int
	existing   int
	malformed  int
}

// ingest parses files concurrently and upserts every definition once. The
// first definition of a code seen by the writer wins.
func ingest(ctx context.Context, lg *zap.Logger, store Store, files []string, opts options) (ingestStats, error) {
	var existing *discount.CodeFilter
	if opts.skipExisting {
		f, err := discount.LoadCodeFilter(ctx, store, filterFPR)
		if err != nil {
			return ingestStats{}, err
		}
		existing = f
	}

	var (
		stats     ingestStats
		malformed = make([]int, len(files))
		rules     = make(chan discount.Rule, 1024)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(rules)
		readers, rctx := errgroup.WithContext(gctx)
		readers.SetLimit(max(opts.workers, 1))
		for i, path := range files {
			readers.Go(func() error {
				n, err := parseFile(rctx, lg, path, opts.strict, func(r discount.Rule) error {
					select {
					case rules <- r:
						return nil
					case <-rctx.Done():
						return rctx.Err()
					}
				})
				malformed[i] = n
				return err
			})
		}
		return readers.Wait()
	})
	g.Go(func() error {
		seen := make(map[string]struct{})
		for r := range rules {
			code := r.Discount.Code
			if _, dup := seen[code]; dup {
				stats.duplicates++
				continue
			}
			seen[code] = struct{}{}

			if existing != nil && existing.MayContain(code) {
				stored, err := exists(gctx, store, code)
				if err != nil {
					return err
				}
				if stored {
					stats.existing++
					continue
				}
			}

			if err := store.Upsert(gctx, r); err != nil {
				return err
			}
			stats.written++
			if stats.written%progressEvery == 0 {
				lg.Info("write progress", zap.Int("written", stats.written))
			}
		}
		return nil
	})

	err := g.Wait()
	for _, n := range malformed {
		stats.malformed += n
	}
	return stats, err
}

// exists confirms a filter hit against the repository.
func exists(ctx context.Context, repo discount.Repository, code string) (bool, error) {
	_, err := repo.FindByCode(ctx, code)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, discount.ErrInvalidDiscount):
		return false, nil
	default:
		return false, errors.Wrapf(err, "check code %q", code)
	}
}

// parseFile streams a gzip-compressed JSON-lines file and calls emit for each
// definition. Blank lines and lines starting with '#' are ignored. It returns
// the number of malformed lines skipped.
func parseFile(ctx context.Context, lg *zap.Logger, path string, strict bool, emit func(discount.Rule) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return parseLines(ctx, lg.With(zap.String("file", filepath.Base(path))), gz, strict, emit)
}

func parseLines(ctx context.Context, lg *zap.Logger, r io.Reader, strict bool, emit func(discount.Rule) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	var line, bad int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return bad, err
		}
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		var rule discount.Rule
		if err := rule.Decode(jx.DecodeBytes(raw)); err != nil {
			if strict {
				return bad, errors.Wrapf(err, "line %d", line)
			}
			bad++
			lg.Warn("skipping malformed line", zap.Int("line", line), zap.Error(err))
			continue
		}
		if err := emit(rule); err != nil {
			return bad, err
		}
	}
	if err := scanner.Err(); err != nil {
		return bad, errors.Wrap(err, "scan")
	}
	return bad, nil
}
