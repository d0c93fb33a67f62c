/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package store

import (
	"database/sql"
	"time"

	"github.com/marcus-qen/clinkerplan/internal/errs"
)

// LookupRoute returns the cache entry for (originID, destinationID, mode), or
// nil if absent or expired.
func (s *CanonicalStore) LookupRoute(originID, destinationID, mode string) (*RouteCacheEntry, error) {
	var e RouteCacheEntry
	var expiresAt sql.NullTime
	err := s.db.QueryRow(`SELECT origin_id, destination_id, mode, distance_km, duration_min, provider, created_at, expires_at
		FROM route_cache WHERE origin_id = $1 AND destination_id = $2 AND mode = $3`,
		originID, destinationID, mode).
		Scan(&e.OriginID, &e.DestinationID, &e.Mode, &e.DistanceKM, &e.DurationMin, &e.Provider, &e.CreatedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, "store.LookupRoute", err)
	}
	if expiresAt.Valid {
		e.ExpiresAt = &expiresAt.Time
		if time.Now().UTC().After(e.ExpiresAt.UTC()) {
			return nil, nil
		}
	}
	return &e, nil
}

// UpsertRouteCache inserts a resolved route, swallowing unique-constraint
// conflicts under concurrent writers: the existing row wins (spec §4.4 step 4).
func (s *CanonicalStore) UpsertRouteCache(e RouteCacheEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO route_cache (origin_id, destination_id, mode, distance_km, duration_min, provider, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (origin_id, destination_id, mode) DO NOTHING`,
		e.OriginID, e.DestinationID, e.Mode, e.DistanceKM, e.DurationMin, e.Provider, e.CreatedAt, e.ExpiresAt)
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.UpsertRouteCache", err)
	}
	return nil
}
