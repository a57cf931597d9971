package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"studio/internal/domain"
)

// AssetRepositoryPG implements domain.AssetRepository using PostgreSQL.
type AssetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAssetRepository constructs a new asset repository instance.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepositoryPG {
	return &AssetRepositoryPG{pool: pool}
}

// Insert persists one artifact record.
func (r *AssetRepositoryPG) Insert(ctx context.Context, asset *domain.Asset) error {
	query := `
INSERT INTO assets (id, job_id, user_id, storage_key, source_url, mime, bytes, width, height)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := r.pool.Exec(ctx, query,
		asset.ID,
		asset.JobID,
		asset.UserID,
		asset.StorageKey,
		asset.SourceURL,
		asset.MIME,
		asset.Bytes,
		asset.Width,
		asset.Height,
	)
	return err
}

// ListByJob returns all assets belonging to the user's job.
func (r *AssetRepositoryPG) ListByJob(ctx context.Context, jobID, userID string) ([]domain.Asset, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, job_id, user_id, storage_key, source_url, mime, bytes, width, height, created_at
FROM assets
WHERE job_id = $1 AND user_id = $2
ORDER BY created_at ASC;
`, jobID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var asset domain.Asset
		if err := rows.Scan(&asset.ID, &asset.JobID, &asset.UserID, &asset.StorageKey, &asset.SourceURL, &asset.MIME, &asset.Bytes, &asset.Width, &asset.Height, &asset.CreatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}
