// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"nexus/internal/audit"
	"nexus/internal/budget"
	"nexus/internal/config"
	"nexus/internal/domain"
	"nexus/internal/httpapi"
	"nexus/internal/logger"
	"nexus/internal/pricing"
	"nexus/internal/quality"
	"nexus/internal/routing"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	port := flag.Int("port", 0, "HTTP server port, overrides config file and environment")
	monthlyLimit := flag.Float64("monthly-limit", 0, "monthly budget limit in dollars, overrides config file and environment")
	hardLimitAction := flag.String("hard-limit-action", "", `one of "reject", "queue", "local-only"`)
	flag.Parse()

	log := logger.New("nexus")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("", "", "failed to load config", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	config.ApplyFlagOverrides{
		Port:            *port,
		ConfigPath:      *configPath,
		MonthlyLimit:    *monthlyLimit,
		HardLimitAction: *hardLimitAction,
	}.Apply(cfg)

	built, err := config.Build(cfg)
	if err != nil {
		log.Error("", "", "failed to build routing configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	budgetState := budget.New(built.MonthlyLimitCents, built.SoftLimitPercent, built.HardLimitAction, built.BillingCycleStartDay)
	budgetState.StartDailyReset(1 * time.Hour)
	defer budgetState.Stop()

	auditLogger := audit.New(os.Getenv("NEXUS_AUDIT_DATABASE_URL"))
	defer auditLogger.Close()

	qualityStore := quality.New()
	qualityStore.StartRecompute(30 * time.Second)
	defer qualityStore.Stop()

	router := routing.New(routing.Config{
		Registry:         built.Registry,
		Policies:         built.Policies,
		Aliases:          built.Aliases,
		Fallbacks:        built.Fallbacks,
		QualityStore:     qualityStore,
		BudgetState:      budgetState,
		Pricing:          pricing.New(),
		QualityThreshold: built.QualityThreshold,
		AuditLogger:      auditLogger,
	})

	var opts []httpapi.Option
	if secret := os.Getenv("NEXUS_JWT_SECRET"); secret != "" {
		opts = append(opts, httpapi.WithJWTSecret(secret))
	}
	if built.HardLimitAction == domain.HardLimitQueue {
		opts = append(opts, httpapi.WithQueue(budget.NewQueue(64)))
	}
	server := httpapi.New(router, opts...)

	httpServer := &http.Server{
		Addr:              addrFor(cfg.Server.Port),
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("", "", "nexus listening", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("", "", "server stopped unexpectedly", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("", "", "shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("", "", "graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}

func addrFor(port int) string {
	if port <= 0 {
		port = 8085
	}
	return ":" + strconv.Itoa(port)
}
