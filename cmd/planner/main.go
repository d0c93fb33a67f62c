/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// The clinkerplan planner is the standalone service that manages staged
// ingestion of supply-chain master data and runs asynchronous MILP
// optimization jobs against it.
//
// Runs as a single binary. Serves:
//   - REST-ish batch and optimization API (ingest, validate, promote, submit)
//   - Health and version endpoints
//   - Prometheus metrics
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marcus-qen/clinkerplan/internal/config"
	"github.com/marcus-qen/clinkerplan/internal/ingestion"
	"github.com/marcus-qen/clinkerplan/internal/jobs"
	"github.com/marcus-qen/clinkerplan/internal/kpi"
	"github.com/marcus-qen/clinkerplan/internal/logging"
	"github.com/marcus-qen/clinkerplan/internal/planning/pipeline"
	"github.com/marcus-qen/clinkerplan/internal/planning/solver"
	"github.com/marcus-qen/clinkerplan/internal/promotion"
	"github.com/marcus-qen/clinkerplan/internal/routing"
	"github.com/marcus-qen/clinkerplan/internal/staging"
	"github.com/marcus-qen/clinkerplan/internal/store"
	"github.com/marcus-qen/clinkerplan/internal/telemetry"
	"github.com/marcus-qen/clinkerplan/internal/validation"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var errMissingRouteParams = errors.New("origin_id and destination_id are required")

func main() {
	cfg, err := config.Load(os.Getenv("PLANNER_CONFIG_FILE"))
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTraceProvider(ctx, cfg.TracingEndpoint, version)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	if !cfg.HasCanonicalStore() {
		logger.Fatal("PLANNER_DATABASE_URL (or config database_url) must be set")
	}
	canonical, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open canonical store", zap.Error(err))
	}
	defer canonical.Close()

	stagingStore, err := staging.NewStore(filepath.Join(cfg.DataDir, "staging.db"))
	if err != nil {
		logger.Fatal("failed to open staging store", zap.Error(err))
	}
	defer stagingStore.Close()

	jobStore, err := jobs.NewStore(filepath.Join(cfg.DataDir, "jobs.db"))
	if err != nil {
		logger.Fatal("failed to open job store", zap.Error(err))
	}
	defer jobStore.Close()

	if recovered, err := jobStore.RecoverCrashedJobs(); err != nil {
		logger.Error("crash recovery failed", zap.Error(err))
	} else if len(recovered) > 0 {
		logger.Warn("recovered crashed jobs", zap.Int("count", len(recovered)))
	}

	ingestor := ingestion.New(stagingStore, canonical, logger)
	validator := validation.New(stagingStore, canonical, logger)
	promoter := promotion.New(stagingStore, canonical, logger)
	resolver := routing.NewResolver(canonical, cfg.Routing, logger)

	driver := solver.NewDriver(solver.ChainFor(cfg.Solver.Default), logger)
	materializer := kpi.NewMaterializer(canonical, logger)
	worker := pipeline.NewWorker(canonical, driver, materializer, solver.Options{
		TimeLimitSeconds: cfg.Solver.TimeLimitSeconds,
		MIPGap:           cfg.Solver.MIPGap,
	}, logger)

	scheduler := jobs.NewScheduler(jobStore, worker.Run, cfg.Jobs.WorkerPoolSize, cfg.Jobs.QueueCapacity, logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	cron := jobs.NewCronDispatcher(scheduler, logger)
	cron.Start()
	defer cron.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version, "commit": commit, "date": date})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/batches", handleIngest(ingestor))
	mux.HandleFunc("POST /api/v1/batches/{id}/validate", handleValidate(validator))
	mux.HandleFunc("POST /api/v1/batches/{id}/promote", handlePromote(promoter))
	mux.HandleFunc("GET /api/v1/batches/{id}", handleBatchStatus(ingestor))

	mux.HandleFunc("POST /api/v1/optimizations", handleSubmitOptimization(scheduler))
	mux.HandleFunc("GET /api/v1/optimizations/{id}", handleJobStatus(scheduler))

	mux.HandleFunc("GET /api/v1/routes/resolve", handleResolveRoute(resolver))

	srv := &http.Server{
		Addr:         addrFromEnv(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("starting planner", zap.String("addr", srv.Addr), zap.String("version", version))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

func addrFromEnv() string {
	if addr := os.Getenv("PLANNER_LISTEN_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func handleIngest(ingestor *ingestion.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Rows        []map[string]any `json:"rows"`
			TargetTable string            `json:"target_table"`
			Source      string            `json:"source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		batchID, staged, err := ingestor.Ingest(r.Context(), body.Rows, body.TargetTable, body.Source)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"batch_id": batchID, "rows_staged": staged})
	}
}

func handleValidate(validator *validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := r.PathValue("id")
		report, err := validator.Validate(r.Context(), batchID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handlePromote(promoter *promotion.Promoter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := r.PathValue("id")
		rowsPromoted, err := promoter.Promote(r.Context(), batchID)
		if err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"rows_promoted": rowsPromoted})
	}
}

func handleBatchStatus(ingestor *ingestion.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := r.PathValue("id")
		batch, err := ingestor.Status(r.Context(), batchID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, batch)
	}
}

func handleSubmitOptimization(scheduler *jobs.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		payload, err := json.Marshal(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		job, err := scheduler.Submit(jobs.Job{Type: jobs.TypeOptimizationRun, Payload: payload})
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID, "status": job.Status})
	}
}

func handleResolveRoute(resolver *routing.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.URL.Query().Get("origin_id")
		destination := r.URL.Query().Get("destination_id")
		mode := r.URL.Query().Get("mode")
		if mode == "" {
			mode = "driving"
		}
		if origin == "" || destination == "" {
			writeError(w, http.StatusBadRequest, errMissingRouteParams)
			return
		}
		resolution, err := resolver.Resolve(r.Context(), origin, destination, mode)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusOK, resolution)
	}
}

func handleJobStatus(scheduler *jobs.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := r.PathValue("id")
		job, err := scheduler.Status(jobID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}
