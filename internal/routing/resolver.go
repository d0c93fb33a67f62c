/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package routing implements the Routing Resolver: cache lookup, coordinate
// resolution against the canonical plant table, and a retrying provider
// chain, durably caching whatever a provider returns (spec §4.4).
package routing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marcus-qen/clinkerplan/internal/config"
	"github.com/marcus-qen/clinkerplan/internal/errs"
	"github.com/marcus-qen/clinkerplan/internal/metrics"
	"github.com/marcus-qen/clinkerplan/internal/store"
)

// Resolution is one resolved (origin, destination, mode) lookup.
type Resolution struct {
	DistanceKM      float64
	DurationMinutes float64
	Provider        string
}

// Resolver orchestrates cache lookup, coordinate resolution, and the
// provider fallback chain.
type Resolver struct {
	canonical  *store.CanonicalStore
	providers  []Provider
	maxRetries int
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewResolver builds a Resolver. The provider chain tries the secondary
// provider first when credentialed, then always falls back to the
// always-available internal haversine estimator (spec §4.4 step 3 default).
func NewResolver(canonical *store.CanonicalStore, cfg config.RoutingConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var providers []Provider
	if cfg.Credentialed() {
		name := cfg.SecondaryProvider
		if name == "" {
			name = "secondary"
		}
		providers = append(providers, newHTTPProvider(name, cfg.SecondaryProviderURL, cfg.SecondaryProviderKey, timeout))
	}
	providers = append(providers, newHaversineProvider())

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var cacheTTL time.Duration
	if cfg.CacheTTLHours > 0 {
		cacheTTL = time.Duration(cfg.CacheTTLHours) * time.Hour
	}

	return &Resolver{canonical: canonical, providers: providers, maxRetries: maxRetries, cacheTTL: cacheTTL, logger: logger}
}

// Resolve returns (distance_km, duration_minutes, provider) for
// (originID, destinationID, mode), caching the result durably (spec §4.4).
func (r *Resolver) Resolve(ctx context.Context, originID, destinationID, mode string) (Resolution, error) {
	if cached, err := r.canonical.LookupRoute(originID, destinationID, mode); err != nil {
		return Resolution{}, errs.Wrap(errs.KindStorageError, "routing.Resolve", err)
	} else if cached != nil {
		metrics.RecordRouteCacheLookup("hit")
		return Resolution{DistanceKM: cached.DistanceKM, DurationMinutes: cached.DurationMin, Provider: cached.Provider}, nil
	}
	metrics.RecordRouteCacheLookup("miss")

	origin, err := r.coordinateFor(originID)
	if err != nil {
		return Resolution{}, err
	}
	destination, err := r.coordinateFor(destinationID)
	if err != nil {
		return Resolution{}, err
	}

	for _, provider := range r.providers {
		if !provider.IsAvailable() {
			continue
		}
		distanceKM, durationMinutes, err := r.resolveWithRetry(ctx, provider, origin, destination)
		if err != nil {
			metrics.RecordRoutingProviderRequest(provider.Name(), "failed")
			r.logger.Warn("routing provider failed, trying next", zap.String("provider", provider.Name()), zap.Error(err))
			continue
		}
		metrics.RecordRoutingProviderRequest(provider.Name(), "succeeded")

		entry := store.RouteCacheEntry{
			OriginID: originID, DestinationID: destinationID, Mode: mode,
			DistanceKM: distanceKM, DurationMin: durationMinutes, Provider: provider.Name(),
		}
		if r.cacheTTL > 0 {
			expiresAt := time.Now().UTC().Add(r.cacheTTL)
			entry.ExpiresAt = &expiresAt
		}
		if err := r.canonical.UpsertRouteCache(entry); err != nil {
			return Resolution{}, errs.Wrap(errs.KindStorageError, "routing.Resolve", err)
		}

		return Resolution{DistanceKM: distanceKM, DurationMinutes: durationMinutes, Provider: provider.Name()}, nil
	}

	return Resolution{}, errs.New(errs.KindRouteUnavailable, "routing.Resolve",
		fmt.Sprintf("no routing provider could resolve %s -> %s (%s)", originID, destinationID, mode))
}

// resolveWithRetry retries a transient failure with exponential backoff up
// to r.maxRetries attempts; a permanent failure returns immediately so the
// caller falls through to the next provider.
func (r *Resolver) resolveWithRetry(ctx context.Context, provider Provider, origin, destination Coordinate) (float64, float64, error) {
	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		distanceKM, durationMinutes, err := provider.Resolve(ctx, origin, destination)
		if err == nil {
			return distanceKM, durationMinutes, nil
		}
		lastErr = err
		if !isTransient(err) {
			return 0, 0, err
		}
		if attempt == r.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return 0, 0, lastErr
}

func (r *Resolver) coordinateFor(nodeID string) (Coordinate, error) {
	plant, err := r.canonical.GetPlant(nodeID)
	if err != nil {
		return Coordinate{}, errs.Wrap(errs.KindCoordinateMissing, "routing.coordinateFor", err)
	}
	if plant.Latitude == nil || plant.Longitude == nil {
		return Coordinate{}, errs.New(errs.KindCoordinateMissing, "routing.coordinateFor",
			fmt.Sprintf("node %q has no coordinates on record", nodeID))
	}
	return Coordinate{Lat: *plant.Latitude, Lon: *plant.Longitude}, nil
}
