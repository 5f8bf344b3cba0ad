/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Command jitbroker-api serves the broker's core over HTTP: entitlement
// listing, self-activation, MPA proposal/approval, and a Prometheus
// /metrics endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"google.golang.org/grpc"

	"github.com/marcus-qen/jitbroker/internal/activator"
	"github.com/marcus-qen/jitbroker/internal/catalog"
	"github.com/marcus-qen/jitbroker/internal/config"
	"github.com/marcus-qen/jitbroker/internal/gcpboundary"
	"github.com/marcus-qen/jitbroker/internal/justification"
	"github.com/marcus-qen/jitbroker/internal/notify"
	"github.com/marcus-qen/jitbroker/internal/proposal"
	"github.com/marcus-qen/jitbroker/internal/repository"
	"github.com/marcus-qen/jitbroker/internal/repository/analyzer"
	"github.com/marcus-qen/jitbroker/internal/repository/assetinventory"
	"github.com/marcus-qen/jitbroker/internal/shared/ratelimit"
	"github.com/marcus-qen/jitbroker/internal/telemetry"
	"github.com/marcus-qen/jitbroker/internal/token"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	zapLogger, _ := zap.NewProduction()
	defer zapLogger.Sync()
	log := zapr.NewLogger(zapLogger)

	cfgPath := os.Getenv("JITBROKER_CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		zapLogger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTraceProvider(ctx, cfg.Telemetry.OtlpEndpoint, version)
	if err != nil {
		zapLogger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	srv, err := buildServer(ctx, cfg, log)
	if err != nil {
		zapLogger.Fatal("failed to build server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.Telemetry.ListenAddr,
		Handler:      srv.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info("starting jitbroker-api", "addr", cfg.Telemetry.ListenAddr, "version", version, "backend", cfg.Repository.Backend)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	if srv.sweeper != nil {
		srv.sweeper.Start(ctx)
	}

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "shutdown error")
	}
	if srv.sweeper != nil {
		srv.sweeper.Stop()
	}
}

// server bundles the wired core plus the mux exposing it over HTTP.
type server struct {
	mux     *http.ServeMux
	sweeper *proposal.Sweeper
}

func buildServer(ctx context.Context, cfg *config.Config, log logr.Logger) (*server, error) {
	var conn *grpc.ClientConn
	if cfg.Boundary.Endpoint != "" {
		c, err := gcpboundary.Dial(ctx, gcpboundary.DialOptions{Endpoint: cfg.Boundary.Endpoint, Insecure: cfg.Boundary.Insecure})
		if err != nil {
			return nil, fmt.Errorf("dial boundary endpoint: %w", err)
		}
		conn = c
	}

	repo, err := buildRepository(cfg, conn)
	if err != nil {
		return nil, err
	}
	switch r := repo.(type) {
	case *analyzer.Repository:
		r.Logger = log
	case *assetinventory.Repository:
		r.Log = log
	}

	var resourceManager catalog.ResourceManager
	if conn != nil {
		resourceManager = &gcpboundary.ResourceManager{Conn: conn}
	}

	cat := catalog.New(repo, resourceManager, catalog.Options{
		OrgScope:              cfg.Catalog.OrgScope,
		ProjectSearchQuery:     cfg.Catalog.ProjectSearchQuery,
		MinActivationDuration:  cfg.Catalog.MinActivationDuration,
		MaxActivationDuration:  cfg.Catalog.MaxActivationDuration,
		MinReviewers:           cfg.Catalog.MinReviewers,
		MaxReviewers:           cfg.Catalog.MaxReviewers,
	})
	cat.Logger = log

	var mutator activator.PolicyMutator
	if conn != nil {
		mutator = &gcpboundary.PolicyMutator{Conn: conn}
	}

	act := &activator.Activator{
		Catalog:       cat,
		Justification: justification.DefaultPolicy{},
		Mutator:       mutator,
		RateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			MaxConcurrentCluster:         10,
			MaxConcurrentPerUser:         cfg.RateLimit.MaxConcurrentActivations,
			MaxActivationsPerHourCluster: 200,
			MaxActivationsPerHourPerUser: cfg.RateLimit.MaxActivationsPerUserPerHour,
		}),
		Logger: log,
	}

	signer, err := buildSigner(cfg)
	if err != nil {
		return nil, err
	}

	sink := notify.NewSMTPSink(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
	sink.Logger = log

	var sweeper *proposal.Sweeper
	if cfg.Proposal.SweepInterval > 0 {
		sweeper, err = proposal.NewSweeper(cfg.Proposal.SweepInterval, "")
		if err != nil {
			return nil, fmt.Errorf("build sweeper: %w", err)
		}
	}

	handler := &proposal.Handler{
		Signer:          signer,
		Notifier:        sink,
		Activator:       act,
		Timeout:         cfg.Proposal.Timeout,
		ApprovalBaseURL: cfg.Proposal.ApprovalBaseURL,
		Sweeper:         sweeper,
		Logger:          log,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, &api{catalog: cat, activator: act, proposal: handler})

	return &server{mux: mux, sweeper: sweeper}, nil
}

func buildRepository(cfg *config.Config, conn *grpc.ClientConn) (repository.EntitlementRepository, error) {
	switch cfg.Repository.Backend {
	case "assetinventory":
		var client assetinventory.Client
		var directory assetinventory.Directory
		if conn != nil {
			client = &gcpboundary.AssetInventoryClient{Conn: conn}
			directory = &gcpboundary.DirectoryClient{Conn: conn}
		}
		repo := assetinventory.New(client, directory, cfg.Catalog.OrgScope)
		if cfg.Repository.FanOutDegree > 0 {
			repo.MaxConcurrency = cfg.Repository.FanOutDegree
		}
		return repo, nil
	case "analyzer", "":
		var client analyzer.Client
		if conn != nil {
			client = &gcpboundary.AnalyzerClient{Conn: conn}
		}
		return analyzer.New(client, cfg.Catalog.OrgScope), nil
	default:
		return nil, fmt.Errorf("unknown repository backend %q", cfg.Repository.Backend)
	}
}

func buildSigner(cfg *config.Config) (*token.Signer, error) {
	if cfg.Signer.DevMode {
		oracle := token.NewDevHMACOracle([]byte(cfg.Signer.Identity+"-dev-master-key"), cfg.Signer.Identity)
		return &token.Signer{Oracle: oracle, Identity: cfg.Signer.Identity, KeyFunc: oracle.KeyFunc}, nil
	}

	oracle := &gcpboundary.IAMCredentialsOracle{}
	keyFunc := &gcpboundary.JWKSKeyFunc{URL: oracle.JwksUrl(cfg.Signer.Identity)}
	return &token.Signer{Oracle: oracle, Identity: cfg.Signer.Identity, KeyFunc: keyFunc.KeyFunc}, nil
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
