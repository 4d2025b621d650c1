package app

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/payment-intake/internal/domain/order"
	"github.com/xenking/payment-intake/internal/gateway/stripe"
	"github.com/xenking/payment-intake/internal/handler"
	"github.com/xenking/payment-intake/internal/identity"
	"github.com/xenking/payment-intake/pkg/health"
	"github.com/xenking/payment-intake/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Backend),
	)

	srv, err := newServer(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer srv.stores.Close()

	srv.health.Start(ctx, 10*time.Second)
	srv.health.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		srv.health.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		defer srv.health.Stop()
		if err := srv.http.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}

type server struct {
	http   *http.Server
	health *health.Health
	stores *stores
}

// newServer wires storage, identity, payment and the HTTP stack. The caller
// owns srv.stores and must close it.
func newServer(ctx context.Context, lg *zap.Logger, m httpmiddleware.TelemetryProvider, cfg *Config) (_ *server, rerr error) {
	healthSvc := health.New(health.WithLogger(lg.Named("health")))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	st, err := openStores(ctx, lg, cfg.Storage, healthSvc)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr != nil {
			st.Close()
		}
	}()

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		return nil, errors.Wrap(err, "create token verifier")
	}
	provider, err := stripe.New(stripe.Config{
		SecretKey: cfg.Payment.SecretKey,
		BaseURL:   cfg.Payment.BaseURL,
		Logger:    lg,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create payment provider")
	}

	// Domain services.
	orderService, err := order.NewService(
		order.Config{
			Currency:    cfg.Payment.Currency,
			MaxAmount:   cfg.Payment.MaxAmount,
			CallTimeout: cfg.Timeouts.External,
		},
		st.products, provider, st.ids, st.orders,
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{},
		orderService,
		handler.NewSecurityHandler(verifier, cfg.Timeouts.External),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	return &server{
		health: healthSvc,
		stores: st,
		http: &http.Server{
			ReadHeaderTimeout: time.Second,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      writeTimeout(cfg.Timeouts),
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
			Addr:              cfg.Addr,
			Handler: httpmiddleware.Wrap(mux,
				httpmiddleware.Recovery(),
				httpmiddleware.CORS(httpmiddleware.CORSConfig{
					AllowOrigins:     cfg.CORS.Origins,
					AllowMethods:     []string{http.MethodPost, http.MethodOptions},
					AllowHeaders:     []string{"Content-Type", "Authorization"},
					AllowCredentials: cfg.CORS.AllowCredentials,
					MaxAge:           86400,
				}),
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(lg),
				httpmiddleware.Instrument("payment-intake", routeFinder, m),
				httpmiddleware.LogRequests(routeFinder),
				httpmiddleware.Labeler(routeFinder),
			),
		},
	}, nil
}

func newVerifier(cfg AuthConfig) (*identity.JWTVerifier, error) {
	vc := identity.Config{
		HMACSecret: []byte(cfg.HMACSecret),
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		Leeway:     cfg.Leeway,
	}
	if cfg.PublicKeyFile != "" {
		pem, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "read public key")
		}
		vc.PublicKeyPEM = pem
	}
	return identity.NewJWTVerifier(vc)
}

// externalCallsPerRequest counts the bounded calls on the order path:
// verify, product lookup, authorize, allocate id and persist.
const externalCallsPerRequest = 5

// writeTimeout leaves room for every external call to use its full budget.
func writeTimeout(t TimeoutsConfig) time.Duration {
	return t.External*externalCallsPerRequest + 5*time.Second
}
