package main

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/orna-ly/orna.ly-sub000/internal/payment"
	"github.com/orna-ly/orna.ly-sub000/internal/ratelimit"
	"github.com/orna-ly/orna.ly-sub000/pkg/contracts"
	"github.com/orna-ly/orna.ly-sub000/pkg/httpx"
	"github.com/orna-ly/orna.ly-sub000/pkg/kafka"
	"github.com/orna-ly/orna.ly-sub000/pkg/logging"
	"github.com/orna-ly/orna.ly-sub000/pkg/metrics"
)

const serviceName = "payment-service"

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Simulated card charge service",
		SilenceUsage:  true,
		SilenceErrors: true,
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
	config.Register(root, v, "8081")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	srvMetrics := metrics.NewServerMetrics(prometheus.DefaultRegisterer, serviceName)

	var sink payment.EventSink
	client := kafka.NewClient(cfg.KafkaBrokers)
	if client.Enabled() {
		writer := client.NewWriter(contracts.DefaultPaymentsTopic)
		defer writer.Close()
		sink = payment.BrokerSink{Writer: writer}
	}

	var store ratelimit.Store
	if cfg.RedisURL != "" {
		rs, err := ratelimit.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rs.Close()
		store = rs
	} else {
		ms := ratelimit.NewMemoryStore(time.Now)
		go ms.RunSweeper(ctx, cfg.RateWindow)
		store = ms
	}
	limiter, err := ratelimit.New(store, cfg.RateLimit, cfg.RateWindow, serviceName+":")
	if err != nil {
		return err
	}

	gateway := &payment.SimulatedGateway{Delay: cfg.PaymentDelay}
	charges := payment.NewChargeHandler(gateway, sink, time.Now)

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
	payment.NewHTTPHandler(charges, srvMetrics, time.Now).
		Routes(r, ratelimit.Middleware(limiter, ratelimit.ClientIP, serviceName))

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
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
