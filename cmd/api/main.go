package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/otakudescriptor/api/internal/account"
	"github.com/otakudescriptor/api/internal/api/handlers"
	"github.com/otakudescriptor/api/internal/api/router"
	"github.com/otakudescriptor/api/internal/config"
	"github.com/otakudescriptor/api/internal/entitlement"
	"github.com/otakudescriptor/api/internal/mailer"
	"github.com/otakudescriptor/api/internal/payment"
	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/pkg/validator"
	"github.com/otakudescriptor/api/internal/ratelimit"
	"github.com/otakudescriptor/api/internal/store/mongo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
	st, err := mongo.Connect(ctx, cfg.Mongo)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer st.Close(context.Background())

	if err := st.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	log.Info("Connected to MongoDB")

	val := validator.New()
	mail := mailer.NewSMTPMailer(cfg.SMTP, log)
	paypal := payment.NewPayPalClient(cfg.PayPal, log)

	quota := ratelimit.New(st, cfg.Limits)
	ledger := entitlement.New(st, quota, log)
	accounts := account.NewService(st, mail, log)
	payments := payment.NewService(st, paypal, ledger, cfg.Premium, log)

	h := &router.Handlers{
		Health:  handlers.NewHealthHandler(st, log),
		Auth:    handlers.NewAuthHandler(accounts, ledger, quota, log, val),
		Payment: handlers.NewPaymentHandler(payments, log, val),
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(cfg, log, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-stop:
		log.Infof("Received signal %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Graceful shutdown failed: %v", err)
		}
	}

	log.Info("Server stopped")
}
