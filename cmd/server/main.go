package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/rentledger-server/internal/api"
	"github.com/rongwang/rentledger-server/internal/config"
	"github.com/rongwang/rentledger-server/internal/payment"
	"github.com/rongwang/rentledger-server/internal/repository"
	"github.com/rongwang/rentledger-server/internal/service"
	"github.com/rongwang/rentledger-server/internal/tracing"
	"github.com/rongwang/rentledger-server/internal/utils"
	"github.com/rongwang/rentledger-server/internal/worker"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	logger := utils.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, logger, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName, cfg.Telemetry.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	loc, err := utils.LoadLocation(cfg.Lease.Timezone)
	if err != nil {
		log.Fatalf("Failed to load timezone %q: %v", cfg.Lease.Timezone, err)
	}

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}
	defer db.Close()

	store := repository.NewSQLStore(db)

	gateway := payment.NewCardknoxClient(payment.CardknoxConfig{
		GatewayURL:      cfg.Payment.GatewayURL,
		APIURL:          cfg.Payment.APIURL,
		APIKey:          cfg.Payment.APIKey,
		SoftwareName:    cfg.Payment.SoftwareName,
		SoftwareVersion: cfg.Payment.SoftwareVersion,
		Timeout:         time.Duration(cfg.Payment.TimeoutSeconds) * time.Second,
	}, logger)

	// Create service
	svc := service.NewDefaultService(store, gateway, logger, service.Options{
		JWTSecret:               cfg.Auth.JWTSecret,
		TokenDuration:           time.Duration(cfg.Auth.TokenHours) * time.Hour,
		Location:                loc,
		PreserveLedgerHistory:   cfg.Lease.PreserveLedgerHistory,
		RegisterGatewayCustomer: cfg.Lease.RegisterGatewayCustomer,
	})

	// Daily notifications
	if cfg.Notify.Enabled {
		deduper, err := worker.NewDeduper(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer deduper.Close()

		notifier := worker.NewNotifier(store.Notices(), worker.NewLogSender(logger), deduper, logger, worker.NotifierConfig{
			Hour:                cfg.Notify.Hour,
			Location:            loc,
			GraceBusinessDays:   cfg.Notify.GraceBusinessDays,
			UpcomingPaymentDays: cfg.Notify.UpcomingDayOffsets,
			UpcomingMoveInDays:  cfg.Notify.MoveInDayOffsets,
			DedupeTTL:           time.Duration(cfg.Notify.DedupeTTLHours) * time.Hour,
		})
		go notifier.Start(ctx)
	}

	// Set up Gin router
	router := gin.Default()
	api.NewHandler(svc, []byte(cfg.Auth.JWTSecret), logger).SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", "addr", server.Addr, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			sigChan <- syscall.SIGTERM
		}
	}()

	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	cancel() // stop the notifier
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
