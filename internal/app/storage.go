package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/payment-intake/db"
	"github.com/xenking/payment-intake/internal/catalog"
	"github.com/xenking/payment-intake/internal/domain/order"
	"github.com/xenking/payment-intake/internal/domain/product"
	"github.com/xenking/payment-intake/internal/storage/memory"
	"github.com/xenking/payment-intake/internal/storage/postgres"
	"github.com/xenking/payment-intake/internal/storage/redis"
	"github.com/xenking/payment-intake/pkg/health"
)

const seedWorkers = 4

// stores bundles the repositories selected by StorageConfig.
type stores struct {
	products product.Repository
	orders   order.Repository
	ids      order.IDAllocator
	closers  []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the configured backend and registers its readiness
// checks on hs.
func openStores(ctx context.Context, lg *zap.Logger, cfg StorageConfig, hs *health.Health) (_ *stores, rerr error) {
	s := &stores{}
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	switch cfg.Backend {
	case BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.closers = append(s.closers, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		hs.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

		orders := postgres.NewOrderRepository(pool)
		s.products = postgres.NewProductRepository(pool)
		s.orders = orders
		s.ids = orders
	case BackendMemory:
		store := memory.New()
		products, err := catalog.Parse(db.Products)
		if err != nil {
			return nil, err
		}
		if err := catalog.Seed(ctx, store, products, seedWorkers); err != nil {
			return nil, errors.Wrap(err, "seed memory catalog")
		}
		lg.Warn("Using in-memory storage, orders are lost on restart",
			zap.Int("products", len(products)),
		)
		s.products = store
		s.orders = store
		s.ids = store
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		hs.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})

		maxID, err := s.orders.MaxID(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "read max order id")
		}
		alloc := redis.NewAllocator(client, cfg.RedisKey)
		last, err := alloc.Floor(ctx, maxID)
		if err != nil {
			return nil, errors.Wrap(err, "floor order id counter")
		}
		lg.Info("Order ids allocated from Redis",
			zap.String("key", cfg.RedisKey),
			zap.Int64("last_id", last),
		)
		s.ids = alloc
	}

	return s, nil
}
