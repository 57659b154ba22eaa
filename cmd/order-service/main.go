package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/orna-ly/orna.ly-sub000/internal/config"
	"github.com/orna-ly/orna.ly-sub000/internal/order/api"
	"github.com/orna-ly/orna.ly-sub000/internal/order/placement"
	"github.com/orna-ly/orna.ly-sub000/internal/order/store"
	"github.com/orna-ly/orna.ly-sub000/internal/ratelimit"
	"github.com/orna-ly/orna.ly-sub000/pkg/httpx"
	"github.com/orna-ly/orna.ly-sub000/pkg/kafka"
	"github.com/orna-ly/orna.ly-sub000/pkg/logging"
	"github.com/orna-ly/orna.ly-sub000/pkg/metrics"
	"github.com/orna-ly/orna.ly-sub000/pkg/outbox"
)

const serviceName = "order-service"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Storefront order placement service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.Register(root, v, "8080")
	root.AddCommand(newServeCmd(v), newMigrateCmd(v))
	return root
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logging.Setup(os.Stderr, cfg.LogLevel)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres schema and upsert the seed catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logging.Setup(os.Stderr, cfg.LogLevel)
			if cfg.DatabaseURL == "" {
				return errors.New("database-url is required for migrate")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.KafkaTopic)
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			n, err := store.Seed(ctx, pg, cfg.SeedFile)
			if err != nil {
				return err
			}
			logging.Log(logging.Fields{Service: serviceName, Step: "migrate", Status: "done", Count: n})
			return nil
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	orders, err := store.NewStore(initCtx, store.Options{
		Kind:        cfg.Store,
		DatabaseURL: cfg.DatabaseURL,
		SeedFile:    cfg.SeedFile,
		EventsTopic: cfg.KafkaTopic,
	})
	if err != nil {
		return fmt.Errorf("store error: %w", err)
	}
	defer orders.Close()

	limiter, closeLimiter, err := newLimiter(initCtx, ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	srvMetrics := metrics.NewServerMetrics(prometheus.DefaultRegisterer, serviceName)
	svc, err := placement.NewService(placement.Deps{Store: orders, ServiceName: serviceName})
	if err != nil {
		return err
	}

	relayDone := closedChan()
	if pg, ok := orders.(*store.PostgresStore); ok {
		relayDone = startRelay(ctx, cfg, pg)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(srvMetrics.Instrument)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	handler := api.NewHandler(svc, srvMetrics, api.AllowAll)
	handler.Routes(r, ratelimit.Middleware(limiter, ratelimit.ClientIP, serviceName))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logging.Log(logging.Fields{Service: serviceName, Step: "listen", Status: "started", Message: "listening on :" + cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		<-relayDone
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	shutdownErr := srv.Shutdown(shutdownCtx)
	// the deferred store Close must not run while the relay is mid batch
	<-relayDone
	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}
	logging.Log(logging.Fields{Service: serviceName, Step: "shutdown", Status: "done"})
	return nil
}

// newLimiter picks Redis counters when a URL is configured, otherwise an
// in-process store swept for the lifetime of runCtx.
func newLimiter(initCtx, runCtx context.Context, cfg config.Config) (*ratelimit.Limiter, func(), error) {
	if cfg.RedisURL != "" {
		rs, err := ratelimit.NewRedisStore(initCtx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		l, err := ratelimit.New(rs, cfg.RateLimit, cfg.RateWindow, serviceName+":")
		if err != nil {
			_ = rs.Close()
			return nil, nil, err
		}
		return l, func() { _ = rs.Close() }, nil
	}
	ms := ratelimit.NewMemoryStore(time.Now)
	go ms.RunSweeper(runCtx, cfg.RateWindow)
	l, err := ratelimit.New(ms, cfg.RateLimit, cfg.RateWindow, "")
	if err != nil {
		return nil, nil, err
	}
	return l, func() {}, nil
}

// startRelay returns a channel closed once the relay has stopped and closed
// its writers.
func startRelay(ctx context.Context, cfg config.Config, pg *store.PostgresStore) <-chan struct{} {
	client := kafka.NewClient(cfg.KafkaBrokers)
	if !client.Enabled() {
		logging.Log(logging.Fields{Service: serviceName, Step: "outbox_relay", Status: "disabled"})
		return closedChan()
	}
	writers := map[string]kafka.MessageWriter{}
	relay := &outbox.Relay{
		DB:       pg.DB(),
		Interval: cfg.OutboxInterval,
		Batch:    cfg.OutboxBatch,
		Service:  serviceName,
		Publish: func(ctx context.Context, rec outbox.Record) error {
			w, ok := writers[rec.Topic]
			if !ok {
				w = client.NewWriter(rec.Topic)
				writers[rec.Topic] = w
			}
			return kafka.Publish(ctx, w, rec.Key, rec.Payload)
		},
	}
	return relay.Start(ctx, func() {
		for _, w := range writers {
			if c, ok := w.(io.Closer); ok {
				_ = c.Close()
			}
		}
	})
}

func closedChan() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
