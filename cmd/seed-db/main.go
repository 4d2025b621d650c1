package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/xenking/payment-intake/db"
	"github.com/xenking/payment-intake/internal/catalog"
	"github.com/xenking/payment-intake/internal/storage/postgres"
)

func main() {
	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp(lg).RunContext(ctx, os.Args); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		os.Exit(1)
	}
}

var errNoDatabaseURL = errors.New("database url is required")

func newApp(lg *zap.Logger) *cli.App {
	return &cli.App{
		Name:  "seed-db",
		Usage: "Apply migrations and load the product catalog into PostgreSQL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection URL, required unless --dry-run",
				EnvVars: []string{"INTAKE_STORAGE_DATABASE_URL", "DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "products-file",
				Usage:   "JSON catalog to load instead of the embedded one",
				EnvVars: []string{"INTAKE_SEED_PRODUCTS_FILE"},
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent upserts",
				Value: 4,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Validate the catalog without touching the database",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, lg, c.String("database-url"), c.String("products-file"), c.Int("workers"), c.Bool("dry-run"))
		},
	}
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile string, workers int, dryRun bool) error {
	data := db.Products
	if productsFile != "" {
		lg.Info("Reading products file", zap.String("path", productsFile))
		b, err := os.ReadFile(productsFile)
		if err != nil {
			return errors.Wrap(err, "read products file")
		}
		data = b
	}

	products, err := catalog.Parse(data)
	if err != nil {
		return err
	}
	if dryRun {
		lg.Info("Catalog is valid", zap.Int("count", len(products)))
		return nil
	}
	if databaseURL == "" {
		return errNoDatabaseURL
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	lg.Info("Upserting products", zap.Int("count", len(products)), zap.Int("workers", workers))
	if err := catalog.Seed(ctx, postgres.NewProductRepository(pool), products, workers); err != nil {
		return errors.Wrap(err, "seed products")
	}

	lg.Info("Seed completed", zap.Int("products", len(products)))
	return nil
}
