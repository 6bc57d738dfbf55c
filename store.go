package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DBConfig holds the optional Postgres settings for persisting a batch run.
type DBConfig struct {
	URL    string
	Schema string
	Tag    string
}

func dbURLFromEnv() string {
	if value := strings.TrimSpace(os.Getenv("DISPATCH_ROLLUP_DB_URL")); value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

func sanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("db schema is required")
	}
	valid := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	if !valid.MatchString(value) {
		return "", fmt.Errorf("invalid schema name: %s", value)
	}
	return value, nil
}

// RunRecord is the run-level row stored alongside the per-area funnel rows.
type RunRecord struct {
	AsOf            time.Time
	InputFile       string
	TotalRows       int
	DistinctZBMs    int
	DistinctReqs    int
	UnresolvedCount int
	DegradedRules   bool
	FallbackPolicy  FallbackPolicy
	RTOPolicy       RTOPolicy
}

// storeRunInDB persists the run summary, every per-area funnel row, and the
// unresolved diagnostics, all under one uuid run id.
func storeRunInDB(record RunRecord, reports []ZoneReport, unresolved []RequestResolution, cfg DBConfig) (string, error) {
	schema, err := sanitizeSchema(cfg.Schema)
	if err != nil {
		return "", err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return "", err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return "", err
	}
	if err := ensureSchema(ctx, db, schema); err != nil {
		return "", err
	}

	runID := uuid.New()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.rollup_runs (
			id, as_of, input_file, total_rows, distinct_zbms, distinct_requests,
			unresolved_count, degraded_rules, fallback_policy, rto_policy, run_tag
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, schema),
		runID,
		record.AsOf,
		record.InputFile,
		record.TotalRows,
		record.DistinctZBMs,
		record.DistinctReqs,
		record.UnresolvedCount,
		record.DegradedRules,
		string(record.FallbackPolicy),
		string(record.RTOPolicy),
		nullString(cfg.Tag),
	)
	if err != nil {
		return "", err
	}

	insertAreaSQL := fmt.Sprintf(`
		INSERT INTO %s.rollup_area_funnel (
			id, run_id, zbm_code, zbm_name, abm_code, abm_name, area_label,
			unique_tbms, unique_hcps, unique_requests,
			requests_raised, cancelled, pending_ho, sent_to_hub,
			pending_invoicing, pending_dispatch, dispatched, delivered, in_transit, rto
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`, schema)

	for _, report := range reports {
		for _, row := range report.Rows {
			_, err = tx.ExecContext(ctx, insertAreaSQL,
				uuid.New(),
				runID,
				report.ZBMCode,
				report.ZBMName,
				row.ABMCode,
				row.ABMName,
				row.AreaLabel,
				row.UniqueTBMs,
				row.UniqueHCPs,
				row.UniqueRequests,
				row.Funnel.Raised(),
				row.Funnel.Cancelled,
				row.Funnel.PendingHO,
				row.Funnel.SentToHub(),
				row.Funnel.PendingInvoicing,
				row.Funnel.PendingDispatch,
				row.Funnel.Dispatched(),
				row.Funnel.Delivered,
				row.Funnel.InTransit,
				row.Funnel.RTO,
			)
			if err != nil {
				return "", err
			}
		}
	}

	insertUnresolvedSQL := fmt.Sprintf(`
		INSERT INTO %s.rollup_unresolved (
			id, run_id, request_id, status_set
		) VALUES ($1,$2,$3,$4)`, schema)

	for _, resolution := range unresolved {
		_, err = tx.ExecContext(ctx, insertUnresolvedSQL,
			uuid.New(),
			runID,
			resolution.RequestID,
			strings.Join(resolution.StatusSet, ", "),
		)
		if err != nil {
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return runID.String(), nil
}

func ensureSchema(ctx context.Context, db *sql.DB, schema string) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.rollup_runs (
			id uuid PRIMARY KEY,
			as_of date NOT NULL,
			input_file text NOT NULL,
			total_rows integer NOT NULL,
			distinct_zbms integer NOT NULL,
			distinct_requests integer NOT NULL,
			unresolved_count integer NOT NULL,
			degraded_rules boolean NOT NULL,
			fallback_policy text NOT NULL,
			rto_policy text NOT NULL,
			run_tag text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.rollup_area_funnel (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.rollup_runs(id) ON DELETE CASCADE,
			zbm_code text NOT NULL,
			zbm_name text NOT NULL,
			abm_code text NOT NULL,
			abm_name text NOT NULL,
			area_label text NOT NULL,
			unique_tbms integer NOT NULL,
			unique_hcps integer NOT NULL,
			unique_requests integer NOT NULL,
			requests_raised integer NOT NULL,
			cancelled integer NOT NULL,
			pending_ho integer NOT NULL,
			sent_to_hub integer NOT NULL,
			pending_invoicing integer NOT NULL,
			pending_dispatch integer NOT NULL,
			dispatched integer NOT NULL,
			delivered integer NOT NULL,
			in_transit integer NOT NULL,
			rto integer NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.rollup_unresolved (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.rollup_runs(id) ON DELETE CASCADE,
			request_id text NOT NULL,
			status_set text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_rollup_area_funnel_run_idx ON %s.rollup_area_funnel (run_id)`, schema, schema))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_rollup_area_funnel_zbm_idx ON %s.rollup_area_funnel (zbm_code)`, schema, schema))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_rollup_unresolved_run_idx ON %s.rollup_unresolved (run_id)`, schema, schema))
	return err
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
