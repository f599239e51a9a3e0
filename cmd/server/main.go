package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/kiumaa/kixikila-sub001/internal/auth"
	"github.com/kiumaa/kixikila-sub001/internal/config"
	"github.com/kiumaa/kixikila-sub001/internal/cycle"
	"github.com/kiumaa/kixikila-sub001/internal/functions"
	"github.com/kiumaa/kixikila-sub001/internal/ledger"
	"github.com/kiumaa/kixikila-sub001/internal/metrics"
	"github.com/kiumaa/kixikila-sub001/internal/middleware"
	"github.com/kiumaa/kixikila-sub001/internal/service"
	"github.com/kiumaa/kixikila-sub001/internal/storage"
	"github.com/kiumaa/kixikila-sub001/internal/storage/postgres"
	"github.com/kiumaa/kixikila-sub001/internal/storage/sqlite"
	"github.com/kiumaa/kixikila-sub001/pkg/api/apiconnect"
	"github.com/kiumaa/kixikila-sub001/pkg/logging"
	"github.com/kiumaa/kixikila-sub001/pkg/response"
)

func main() {
	cfg, err := config.Load(os.Getenv(config.ConfigPathEnv), ".env")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, wallet, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := newRouter(cfg, store, wallet, reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		// h2c serves HTTP/2 without TLS, which Connect clients use.
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Connect server starting", "address", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore opens the configured store and picks the wallet ledger.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, ledger.Wallet, error) {
	var (
		store  storage.Store
		wallet ledger.Wallet
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			URL:      cfg.Storage.URL,
			MaxConns: cfg.Storage.MaxConns,
			MinConns: cfg.Storage.MinConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		pg := postgres.New(pool)
		store, wallet = pg, pg
	default:
		lite, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		store, wallet = lite, lite
	}
	slog.Info("Storage initialized", "driver", cfg.Storage.Driver)

	if cfg.Ledger.Driver == "memory" {
		slog.Warn("Using in-memory ledger; wallet balances are lost on restart")
		wallet = ledger.NewMemory()
	}
	return store, wallet, nil
}

func newRouter(cfg *config.Config, store storage.Store, wallet ledger.Wallet, reg *prometheus.Registry) (http.Handler, error) {
	policy, err := cycle.ParseCompletionPolicy(cfg.Cycle.CompletionPolicy)
	if err != nil {
		return nil, err
	}

	m := metrics.New(reg)
	cycles := cycle.NewService(store, ledger.WithTimeout(wallet, cfg.Ledger.Timeout),
		cycle.WithLogger(slog.Default()),
		cycle.WithMetrics(m),
		cycle.WithCompletionPolicy(policy),
	)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	authenticator := auth.NewPasswordAuthenticator(store, cfg.Auth.BcryptCost)

	groupSvc := service.NewGroupService(cycles, store)
	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(m),
		middleware.RequireAuth(jwtManager,
			apiconnect.AuthServiceRegisterProcedure,
			apiconnect.AuthServiceLoginProcedure,
		),
	)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.Handler(reg))
	}

	r.Mount("/functions/v1", functions.NewHandler(groupSvc, jwtManager).Routes())

	mount := func(path string, h http.Handler) {
		r.Handle(path+"*", h)
		slog.Info("Registered service", "path", path)
	}
	mount(apiconnect.NewAuthServiceHandler(service.NewAuthService(authenticator, jwtManager, store, slog.Default()), interceptors))
	mount(apiconnect.NewGroupServiceHandler(groupSvc, interceptors))
	mount(apiconnect.NewWalletServiceHandler(service.NewWalletService(wallet), interceptors))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "route not found")
	})
	return r, nil
}
