package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wattbuy/planengine/internal/cache"
	"github.com/wattbuy/planengine/internal/estimate"
)

// PgxEstimateCache is a direct pgxpool-backed cache.Store (spec §4.9),
// bypassing GORM's ORM overhead for the Estimate Cache's highest-QPS table:
// every pipeline run hits Get on every mapped template before it considers
// recomputing. Grounded on the teacher's raw-pool query style (this file's
// prior PostgresPoolStorage) rather than gorm_storage.go's pattern.
// NewGormStorage opens one of these alongside the GORM connection when
// driver is "postgrespool", and GormStorage.EstimateCache() prefers it over
// the GORM-backed EstimateCache in pipeline_store.go (the fallback for
// sqlite or plain "postgres" deployments).
type PgxEstimateCache struct {
	pool *pgxpool.Pool
}

// OpenPgxEstimateCache connects a pgxpool and ensures the estimate_cache
// table exists.
func OpenPgxEstimateCache(ctx context.Context, dsn string) (*PgxEstimateCache, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/planengine?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c := &PgxEstimateCache{pool: pool}
	if err := c.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

func (c *PgxEstimateCache) Close() error {
	c.pool.Close()
	return nil
}

func (c *PgxEstimateCache) migrate(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS estimate_cache (
			id BIGSERIAL PRIMARY KEY,
			home_id TEXT NOT NULL,
			rate_plan_id TEXT NOT NULL,
			inputs_sha256 TEXT NOT NULL,
			months_count INTEGER NOT NULL,
			estimate_json TEXT NOT NULL,
			computed_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			UNIQUE (home_id, rate_plan_id, inputs_sha256, months_count)
		);
		CREATE INDEX IF NOT EXISTS idx_estimate_cache_materialized
			ON estimate_cache (home_id, rate_plan_id, computed_at DESC);
	`)
	return err
}

// Get looks up a cached estimate by its content-addressed key (spec §4.9).
// A miss is never an error: it returns (zero value, false).
func (c *PgxEstimateCache) Get(homeID, ratePlanID, inputsSha256 string, monthsCount int) (cache.Entry, bool) {
	row := c.pool.QueryRow(context.Background(), `
		SELECT estimate_json, computed_at
		FROM estimate_cache
		WHERE home_id=$1 AND rate_plan_id=$2 AND inputs_sha256=$3 AND months_count=$4
	`, homeID, ratePlanID, inputsSha256, monthsCount)

	var estJSON string
	var computedAt time.Time
	if err := row.Scan(&estJSON, &computedAt); err != nil {
		return cache.Entry{}, false
	}
	var est estimate.Estimate
	if err := json.Unmarshal([]byte(estJSON), &est); err != nil {
		return cache.Entry{}, false
	}
	return cache.Entry{
		HomeID:       homeID,
		RatePlanID:   ratePlanID,
		InputsSha256: inputsSha256,
		MonthsCount:  monthsCount,
		Estimate:     est,
		ComputedAt:   computedAt,
	}, true
}

// Put writes an estimate by its content-addressed key (spec §4.9).
// Conflicting writes to the same key resolve last-write-wins.
func (c *PgxEstimateCache) Put(entry cache.Entry, expiresAt time.Time) error {
	estJSON, err := json.Marshal(entry.Estimate)
	if err != nil {
		return err
	}
	_, err = c.pool.Exec(context.Background(), `
		INSERT INTO estimate_cache (home_id, rate_plan_id, inputs_sha256, months_count, estimate_json, computed_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (home_id, rate_plan_id, inputs_sha256, months_count) DO UPDATE SET
			estimate_json=EXCLUDED.estimate_json,
			computed_at=EXCLUDED.computed_at,
			expires_at=EXCLUDED.expires_at
	`, entry.HomeID, entry.RatePlanID, entry.InputsSha256, entry.MonthsCount, string(estJSON), entry.ComputedAt, expiresAt)
	return err
}

// GetMaterialized reads the current-estimate view for (homeID, ratePlanID),
// regardless of which inputs hash produced it: the most recently computed
// row for that pair.
func (c *PgxEstimateCache) GetMaterialized(homeID, ratePlanID string) (cache.MaterializedEstimate, bool) {
	row := c.pool.QueryRow(context.Background(), `
		SELECT inputs_sha256, months_count, estimate_json, computed_at, expires_at
		FROM estimate_cache
		WHERE home_id=$1 AND rate_plan_id=$2
		ORDER BY computed_at DESC
		LIMIT 1
	`, homeID, ratePlanID)

	var inputsSha256 string
	var monthsCount int
	var estJSON string
	var computedAt, expiresAt time.Time
	if err := row.Scan(&inputsSha256, &monthsCount, &estJSON, &computedAt, &expiresAt); err != nil {
		return cache.MaterializedEstimate{}, false
	}
	var est estimate.Estimate
	if err := json.Unmarshal([]byte(estJSON), &est); err != nil {
		return cache.MaterializedEstimate{}, false
	}
	return cache.MaterializedEstimate{
		Entry: cache.Entry{
			HomeID:       homeID,
			RatePlanID:   ratePlanID,
			InputsSha256: inputsSha256,
			MonthsCount:  monthsCount,
			Estimate:     est,
			ComputedAt:   computedAt,
		},
		ExpiresAt: expiresAt,
	}, true
}
