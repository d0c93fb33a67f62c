/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package routing

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/marcus-qen/clinkerplan/internal/config"
	"github.com/marcus-qen/clinkerplan/internal/errs"
	"github.com/marcus-qen/clinkerplan/internal/store"
)

func TestHaversineProviderKnownDistance(t *testing.T) {
	p := newHaversineProvider()
	// Paris to Berlin, roughly 878km great-circle.
	paris := Coordinate{Lat: 48.8566, Lon: 2.3522}
	berlin := Coordinate{Lat: 52.5200, Lon: 13.4050}

	distanceKM, durationMinutes, err := p.Resolve(context.Background(), paris, berlin)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if math.Abs(distanceKM-878) > 20 {
		t.Fatalf("expected ~878km, got %.1f", distanceKM)
	}
	wantMinutes := (distanceKM / 60) * 60
	if math.Abs(durationMinutes-wantMinutes) > 0.01 {
		t.Fatalf("expected duration %.2f, got %.2f", wantMinutes, durationMinutes)
	}
}

func TestHaversineProviderZeroDistance(t *testing.T) {
	p := newHaversineProvider()
	origin := Coordinate{Lat: 10, Lon: 10}
	distanceKM, durationMinutes, err := p.Resolve(context.Background(), origin, origin)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if distanceKM != 0 || durationMinutes != 0 {
		t.Fatalf("expected zero distance/duration, got %.4f/%.4f", distanceKM, durationMinutes)
	}
}

func TestHaversineProviderAlwaysAvailable(t *testing.T) {
	p := newHaversineProvider()
	if p.Name() != "internal" {
		t.Fatalf("unexpected name %q", p.Name())
	}
	if !p.IsAvailable() {
		t.Fatal("expected haversine provider to always be available")
	}
}

func TestHTTPProviderIsAvailableRequiresBothFields(t *testing.T) {
	p := newHTTPProvider("secondary", "", "", time.Second)
	if p.IsAvailable() {
		t.Fatal("expected unavailable with no url or key")
	}
	p = newHTTPProvider("secondary", "http://example.invalid", "", time.Second)
	if p.IsAvailable() {
		t.Fatal("expected unavailable with no key")
	}
	p = newHTTPProvider("secondary", "http://example.invalid", "key", time.Second)
	if !p.IsAvailable() {
		t.Fatal("expected available with both url and key")
	}
}

func TestHTTPProviderClassifiesStatusCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := newHTTPProvider("secondary", srv.URL, "key", 5*time.Second)
	_, _, err := p.Resolve(context.Background(), Coordinate{}, Coordinate{})
	if err == nil || !isTransient(err) {
		t.Fatalf("expected transient error for 503, got %v", err)
	}
}

func TestHTTPProviderClassifiesClientErrorAsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := newHTTPProvider("secondary", srv.URL, "key", 5*time.Second)
	_, _, err := p.Resolve(context.Background(), Coordinate{}, Coordinate{})
	if err == nil || isTransient(err) {
		t.Fatalf("expected permanent error for 400, got %v", err)
	}
}

func TestHTTPProviderDecodesSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"distance_km": 42.5, "duration_minutes": 37}`))
	}))
	defer srv.Close()

	p := newHTTPProvider("secondary", srv.URL, "key", 5*time.Second)
	distanceKM, durationMinutes, err := p.Resolve(context.Background(), Coordinate{}, Coordinate{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if distanceKM != 42.5 || durationMinutes != 37 {
		t.Fatalf("unexpected result %.1f/%.1f", distanceKM, durationMinutes)
	}
}

func TestResolverFallsThroughOnPermanentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := &Resolver{
		providers:  []Provider{newHTTPProvider("secondary", srv.URL, "key", 2*time.Second), newHaversineProvider()},
		maxRetries: 1,
	}

	distanceKM, _, err := r.resolveWithRetry(context.Background(), r.providers[0], Coordinate{Lat: 0, Lon: 0}, Coordinate{Lat: 0, Lon: 0})
	if err == nil || isTransient(err) {
		t.Fatalf("expected permanent error bubbling straight up, got %v (distance %.1f)", err, distanceKM)
	}
}

func newTestCanonicalStore(t *testing.T) *store.CanonicalStore {
	t.Helper()
	url := os.Getenv("PLANNER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PLANNER_TEST_DATABASE_URL not set; skipping routing integration test")
	}
	canonical, err := store.Open(url)
	if err != nil {
		t.Fatalf("open canonical store: %v", err)
	}
	t.Cleanup(func() { _ = canonical.Close() })
	return canonical
}

func TestResolveReturnsCoordinateMissingWhenPlantHasNoCoordinates(t *testing.T) {
	canonical := newTestCanonicalStore(t)

	if err := canonical.UpsertPlant(store.Plant{ID: "NOCOORD1", Name: "No Coord One", Type: "clinker"}); err != nil {
		t.Fatalf("upsert plant: %v", err)
	}
	if err := canonical.UpsertPlant(store.Plant{ID: "NOCOORD2", Name: "No Coord Two", Type: "cement"}); err != nil {
		t.Fatalf("upsert plant: %v", err)
	}

	r := NewResolver(canonical, config.RoutingConfig{MaxRetries: 1}, nil)
	_, err := r.Resolve(context.Background(), "NOCOORD1", "NOCOORD2", "road")
	if !errs.Is(err, errs.KindCoordinateMissing) {
		t.Fatalf("expected coordinate missing error, got %v", err)
	}
}

func TestResolveFallsBackToHaversineAndCaches(t *testing.T) {
	canonical := newTestCanonicalStore(t)

	lat1, lon1 := 48.8566, 2.3522
	lat2, lon2 := 52.5200, 13.4050
	if err := canonical.UpsertPlant(store.Plant{ID: "HAV1", Name: "Haversine One", Type: "clinker", Latitude: &lat1, Longitude: &lon1}); err != nil {
		t.Fatalf("upsert plant: %v", err)
	}
	if err := canonical.UpsertPlant(store.Plant{ID: "HAV2", Name: "Haversine Two", Type: "cement", Latitude: &lat2, Longitude: &lon2}); err != nil {
		t.Fatalf("upsert plant: %v", err)
	}

	r := NewResolver(canonical, config.RoutingConfig{MaxRetries: 1, CacheTTLHours: 1}, nil)
	resolution, err := r.Resolve(context.Background(), "HAV1", "HAV2", "road")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Provider != "internal" {
		t.Fatalf("expected fallback to internal provider, got %q", resolution.Provider)
	}

	cached, err := canonical.LookupRoute("HAV1", "HAV2", "road")
	if err != nil {
		t.Fatalf("lookup route: %v", err)
	}
	if cached == nil {
		t.Fatal("expected a cache entry after resolve")
	}
	if cached.Provider != "internal" {
		t.Fatalf("unexpected cached provider %q", cached.Provider)
	}

	second, err := r.Resolve(context.Background(), "HAV1", "HAV2", "road")
	if err != nil {
		t.Fatalf("resolve (cached): %v", err)
	}
	if second.DistanceKM != resolution.DistanceKM {
		t.Fatalf("expected cached distance to match, got %.2f vs %.2f", second.DistanceKM, resolution.DistanceKM)
	}
}
