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
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/marcus-qen/clinkerplan/internal/errs"
)

const schemaVersion = 1

// CanonicalStore wraps the Postgres (or MySQL) connection that owns the
// planner's durable tables. It is opened once and threaded explicitly
// through every component that needs canonical data; there is no
// package-level singleton.
type CanonicalStore struct {
	db *sql.DB
}

// Open connects to databaseURL, selecting the driver from its scheme
// ("postgres://"/"postgresql://" selects pgx, "mysql://" selects
// go-sql-driver/mysql), applies schema migrations, and returns a ready store.
func Open(databaseURL string) (*CanonicalStore, error) {
	driverName, dsn := driverFor(databaseURL)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageError, "store.Open", fmt.Errorf("open %s: %w", driverName, err))
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.KindStorageError, "store.Open", fmt.Errorf("ping: %w", err))
	}

	s := &CanonicalStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenDB wraps an already-open *sql.DB (e.g. for tests against a disposable
// Postgres instance) and applies migrations.
func OpenDB(db *sql.DB) (*CanonicalStore, error) {
	s := &CanonicalStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func driverFor(databaseURL string) (driverName, dsn string) {
	switch {
	case strings.HasPrefix(databaseURL, "mysql://"):
		return "mysql", strings.TrimPrefix(databaseURL, "mysql://")
	default:
		return "pgx", databaseURL
	}
}

// Close closes the underlying connection pool.
func (s *CanonicalStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for components (e.g. the Promoter) that
// need to open their own cross-table transaction.
func (s *CanonicalStore) DB() *sql.DB {
	return s.db
}

// migrate applies the ordered schema migrations, tracked in a
// Postgres-flavored `_schema_version` table — the same idiom the job queue's
// SQLite store uses, adapted off sqlite_master/`?` placeholders onto
// information_schema and numbered ($1) placeholders.
func (s *CanonicalStore) migrate() error {
	current, err := s.currentVersion()
	if err != nil {
		return errs.Wrap(errs.KindStorageError, "store.migrate", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return errs.Wrap(errs.KindStorageError, "store.migrate", err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return errs.Wrap(errs.KindStorageError, "store.migrate", fmt.Errorf("v%d (%s): %w", m.version, m.description, err))
			}
		}
		if err := tx.Commit(); err != nil {
			return errs.Wrap(errs.KindStorageError, "store.migrate", err)
		}
		if err := s.setVersion(m.version); err != nil {
			return errs.Wrap(errs.KindStorageError, "store.migrate", err)
		}
	}
	return nil
}

func (s *CanonicalStore) currentVersion() (int, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS (
		SELECT 1 FROM information_schema.tables WHERE table_name = '_schema_version'
	)`).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check _schema_version: %w", err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = s.db.QueryRow(`SELECT version FROM _schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *CanonicalStore) setVersion(version int) error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS _schema_version (
		store_name TEXT NOT NULL DEFAULT '',
		version    INTEGER NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL
	)`); err != nil {
		return fmt.Errorf("create _schema_version: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(`UPDATE _schema_version SET version = $1, applied_at = $2`, version, now)
	if err != nil {
		return fmt.Errorf("update schema version: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		return nil
	}
	if _, err := s.db.Exec(`INSERT INTO _schema_version (store_name, version, applied_at) VALUES ('', $1, $2)`, version, now); err != nil {
		return fmt.Errorf("insert schema version: %w", err)
	}
	return nil
}

type storeMigration struct {
	version     int
	description string
	statements  []string
}

var migrations = []storeMigration{
	{
		version:     1,
		description: "initial canonical schema",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS plants (
				id        TEXT PRIMARY KEY,
				name      TEXT NOT NULL,
				type      TEXT NOT NULL,
				latitude  DOUBLE PRECISION,
				longitude DOUBLE PRECISION,
				region    TEXT NOT NULL DEFAULT '',
				country   TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS production_capacity_costs (
				plant_id      TEXT NOT NULL REFERENCES plants(id),
				period        TEXT NOT NULL,
				max_capacity  DOUBLE PRECISION NOT NULL,
				variable_cost DOUBLE PRECISION NOT NULL,
				fixed_cost    DOUBLE PRECISION NOT NULL,
				min_run_level DOUBLE PRECISION NOT NULL DEFAULT 0,
				holding_cost  DOUBLE PRECISION NOT NULL,
				PRIMARY KEY (plant_id, period)
			)`,
			`CREATE TABLE IF NOT EXISTS transport_routes (
				origin_plant_id      TEXT NOT NULL REFERENCES plants(id),
				destination_node_id  TEXT NOT NULL REFERENCES plants(id),
				transport_mode       TEXT NOT NULL,
				distance_km          DOUBLE PRECISION,
				variable_cost_per_tonne DOUBLE PRECISION NOT NULL DEFAULT 0,
				fixed_cost_per_trip  DOUBLE PRECISION NOT NULL DEFAULT 0,
				vehicle_capacity     DOUBLE PRECISION NOT NULL DEFAULT 0,
				min_batch_quantity   DOUBLE PRECISION NOT NULL DEFAULT 0,
				active               BOOLEAN NOT NULL DEFAULT TRUE,
				PRIMARY KEY (origin_plant_id, destination_node_id, transport_mode)
			)`,
			`CREATE TABLE IF NOT EXISTS demand_forecasts (
				customer_node_id TEXT NOT NULL,
				period           TEXT NOT NULL,
				demand           DOUBLE PRECISION NOT NULL,
				low_band         DOUBLE PRECISION,
				high_band        DOUBLE PRECISION,
				confidence       DOUBLE PRECISION,
				source           TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (customer_node_id, period)
			)`,
			`CREATE TABLE IF NOT EXISTS initial_inventory (
				node_id TEXT NOT NULL,
				period  TEXT NOT NULL,
				tonnes  DOUBLE PRECISION NOT NULL DEFAULT 0,
				PRIMARY KEY (node_id, period)
			)`,
			`CREATE TABLE IF NOT EXISTS safety_stock_policies (
				node_id              TEXT PRIMARY KEY,
				policy_type          TEXT NOT NULL,
				policy_value         DOUBLE PRECISION NOT NULL,
				safety_stock_tonnes  DOUBLE PRECISION NOT NULL,
				max_inventory_tonnes DOUBLE PRECISION
			)`,
			`CREATE TABLE IF NOT EXISTS validation_batches (
				batch_id          TEXT PRIMARY KEY,
				source_descriptor TEXT NOT NULL,
				target_table      TEXT NOT NULL,
				total_rows        INTEGER NOT NULL DEFAULT 0,
				valid_rows        INTEGER NOT NULL DEFAULT 0,
				invalid_rows      INTEGER NOT NULL DEFAULT 0,
				status            TEXT NOT NULL,
				error_summary     TEXT NOT NULL DEFAULT '',
				created_at        TIMESTAMPTZ NOT NULL,
				validated_at      TIMESTAMPTZ,
				promoted_at       TIMESTAMPTZ
			)`,
			`CREATE TABLE IF NOT EXISTS route_cache (
				origin_id      TEXT NOT NULL,
				destination_id TEXT NOT NULL,
				mode           TEXT NOT NULL,
				distance_km    DOUBLE PRECISION NOT NULL,
				duration_min   DOUBLE PRECISION NOT NULL,
				provider       TEXT NOT NULL,
				created_at     TIMESTAMPTZ NOT NULL,
				expires_at     TIMESTAMPTZ,
				PRIMARY KEY (origin_id, destination_id, mode)
			)`,
			`CREATE TABLE IF NOT EXISTS optimization_runs (
				run_id             TEXT PRIMARY KEY,
				scenario           TEXT NOT NULL,
				solver_name        TEXT NOT NULL DEFAULT '',
				solver_status      TEXT NOT NULL DEFAULT '',
				objective          DOUBLE PRECISION NOT NULL DEFAULT 0,
				solve_time_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
				time_limit_seconds INTEGER NOT NULL DEFAULT 0,
				gap_tolerance      DOUBLE PRECISION NOT NULL DEFAULT 0,
				started_at         TIMESTAMPTZ NOT NULL,
				finished_at        TIMESTAMPTZ,
				validation_status  TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS kpi_per_period (
				scenario                TEXT NOT NULL,
				period                  TEXT NOT NULL,
				total_cost              DOUBLE PRECISION NOT NULL DEFAULT 0,
				production_cost         DOUBLE PRECISION NOT NULL DEFAULT 0,
				transport_cost          DOUBLE PRECISION NOT NULL DEFAULT 0,
				fixed_trip_cost         DOUBLE PRECISION NOT NULL DEFAULT 0,
				holding_cost            DOUBLE PRECISION NOT NULL DEFAULT 0,
				penalty_cost            DOUBLE PRECISION NOT NULL DEFAULT 0,
				total_production_tonnes DOUBLE PRECISION NOT NULL DEFAULT 0,
				production_utilization  DOUBLE PRECISION NOT NULL DEFAULT 0,
				total_shipment_tonnes   DOUBLE PRECISION NOT NULL DEFAULT 0,
				total_trips             INTEGER NOT NULL DEFAULT 0,
				transport_utilization   DOUBLE PRECISION NOT NULL DEFAULT 0,
				sbq_compliance_rate     DOUBLE PRECISION NOT NULL DEFAULT 0,
				average_inventory       DOUBLE PRECISION NOT NULL DEFAULT 0,
				inventory_turns         DOUBLE PRECISION NOT NULL DEFAULT 0,
				total_demand            DOUBLE PRECISION NOT NULL DEFAULT 0,
				total_unmet_demand      DOUBLE PRECISION NOT NULL DEFAULT 0,
				demand_fulfillment_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
				service_level           DOUBLE PRECISION NOT NULL DEFAULT 0,
				stockout_events         INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (scenario, period)
			)`,
			`CREATE TABLE IF NOT EXISTS kpi_aggregated (
				scenario                TEXT PRIMARY KEY,
				total_cost              DOUBLE PRECISION NOT NULL DEFAULT 0,
				production_cost         DOUBLE PRECISION NOT NULL DEFAULT 0,
				transport_cost          DOUBLE PRECISION NOT NULL DEFAULT 0,
				fixed_trip_cost         DOUBLE PRECISION NOT NULL DEFAULT 0,
				holding_cost            DOUBLE PRECISION NOT NULL DEFAULT 0,
				penalty_cost            DOUBLE PRECISION NOT NULL DEFAULT 0,
				total_production_tonnes DOUBLE PRECISION NOT NULL DEFAULT 0,
				total_shipment_tonnes   DOUBLE PRECISION NOT NULL DEFAULT 0,
				total_trips             INTEGER NOT NULL DEFAULT 0,
				average_service_level   DOUBLE PRECISION NOT NULL DEFAULT 0,
				total_stockout_events   INTEGER NOT NULL DEFAULT 0
			)`,
		},
	},
}
