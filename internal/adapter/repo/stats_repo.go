package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"studio/internal/domain"
)

// StatsRepositoryPG implements domain.StatsRepository using PostgreSQL.
type StatsRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepositoryPG {
	return &StatsRepositoryPG{pool: pool}
}

// RecordRequest upserts the per-day counter for one generation request.
func (r *StatsRepositoryPG) RecordRequest(ctx context.Context, kind domain.JobKind, country string) error {
	query := `
INSERT INTO stats_daily (day, kind, country, requests)
VALUES ($1, $2, $3, 1)
ON CONFLICT (day, kind, country) DO UPDATE SET
    requests = stats_daily.requests + 1;
`
	day := time.Now().UTC().Format("2006-01-02")
	if country == "" {
		country = "unknown"
	}
	_, err := r.pool.Exec(ctx, query, day, kind, country)
	return err
}

// Daily returns today's request counts keyed by media kind.
func (r *StatsRepositoryPG) Daily(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `
SELECT kind, SUM(requests)
FROM stats_daily
WHERE day = $1
GROUP BY kind;
`, time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var total int64
		if err := rows.Scan(&kind, &total); err != nil {
			return nil, err
		}
		counts[kind] = total
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
