package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripradar/tripradar/internal/domain"
)

// ArchiveRepository persists finished searches past the Redis TTL.
// Rows carry a sliding expiry of `retention`; Save and Get both push
// it forward.
type ArchiveRepository struct {
	pool      *pgxpool.Pool
	retention time.Duration
}

func NewArchiveRepository(pool *pgxpool.Pool, retention time.Duration) *ArchiveRepository {
	return &ArchiveRepository{pool: pool, retention: retention}
}

const archiveColumns = `job_id, client_id, status, params, result, error,
	       custom_name, created_at, expires_at, last_accessed_at`

func (r *ArchiveRepository) Save(ctx context.Context, rec *domain.ArchivedSearch) error {
	query := `
		INSERT INTO searches (
			job_id, client_id, status, params, result, error,
			created_at, expires_at, last_accessed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (job_id) DO UPDATE
		SET status           = EXCLUDED.status,
		    result           = EXCLUDED.result,
		    error            = EXCLUDED.error,
		    expires_at       = EXCLUDED.expires_at,
		    last_accessed_at = NOW()`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, query,
		rec.JobID,
		rec.ClientID,
		string(rec.Status),
		rec.Params,
		rec.Result,
		rec.Error,
		createdAt,
		time.Now().UTC().Add(r.retention),
	)
	if err != nil {
		return fmt.Errorf("save search %s: %w", rec.JobID, err)
	}
	return nil
}

func (r *ArchiveRepository) Get(ctx context.Context, jobID string) (*domain.ArchivedSearch, error) {
	// Reads extend the row's life; only live rows qualify.
	query := `
		UPDATE searches
		SET    expires_at       = $2,
		       last_accessed_at = NOW()
		WHERE  job_id = $1 AND expires_at > NOW()
		RETURNING ` + archiveColumns

	row := r.pool.QueryRow(ctx, query, jobID, time.Now().UTC().Add(r.retention))
	rec, err := scanArchived(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSearchNotFound
	}
	return rec, err
}

func (r *ArchiveRepository) ListByClient(ctx context.Context, clientID string) ([]*domain.ArchivedSearch, error) {
	query := `
		SELECT ` + archiveColumns + `,
		       EXISTS (
		           SELECT 1 FROM saved_searches ss
		           WHERE ss.job_id = searches.job_id
		             AND ss.client_id = $1 AND ss.deleted_at IS NULL
		       ) AS saved
		FROM searches
		WHERE client_id = $1
		  AND expires_at > NOW()
		  AND NOT EXISTS (
		      SELECT 1 FROM hidden_searches h
		      WHERE h.job_id = searches.job_id AND h.client_id = $1
		  )
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("list searches of %s: %w", clientID, err)
	}
	defer rows.Close()

	var out []*domain.ArchivedSearch
	for rows.Next() {
		rec, err := scanArchivedWithSaved(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *ArchiveRepository) SaveForClient(ctx context.Context, jobID, clientID, customName string) error {
	query := `
		INSERT INTO saved_searches (job_id, client_id, custom_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, client_id) DO UPDATE
		SET custom_name = EXCLUDED.custom_name,
		    saved_at    = NOW(),
		    deleted_at  = NULL`

	_, err := r.pool.Exec(ctx, query, jobID, clientID, customName)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrSearchNotFound
		}
		return fmt.Errorf("save search %s for %s: %w", jobID, clientID, err)
	}
	return nil
}

func (r *ArchiveRepository) Unsave(ctx context.Context, jobID, clientID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE saved_searches SET deleted_at = NOW()
		WHERE job_id = $1 AND client_id = $2 AND deleted_at IS NULL`,
		jobID, clientID)
	if err != nil {
		return fmt.Errorf("unsave search %s for %s: %w", jobID, clientID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSearchNotFound
	}
	return nil
}

func (r *ArchiveRepository) ListSaved(ctx context.Context, clientID string) ([]*domain.ArchivedSearch, error) {
	// The bookmark's own name wins over the row's name when set.
	query := `
		SELECT s.job_id, s.client_id, s.status, s.params, s.result, s.error,
		       COALESCE(NULLIF(ss.custom_name, ''), s.custom_name),
		       s.created_at, s.expires_at, s.last_accessed_at
		FROM saved_searches ss
		JOIN searches s ON s.job_id = ss.job_id
		WHERE ss.client_id = $1
		  AND ss.deleted_at IS NULL
		  AND s.expires_at > NOW()
		ORDER BY ss.saved_at DESC`

	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("list saved searches of %s: %w", clientID, err)
	}
	defer rows.Close()

	var out []*domain.ArchivedSearch
	for rows.Next() {
		rec, err := scanArchived(rows)
		if err != nil {
			return nil, err
		}
		rec.Saved = true
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *ArchiveRepository) Hide(ctx context.Context, jobID, clientID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO hidden_searches (job_id, client_id) VALUES ($1, $2)
		ON CONFLICT (job_id, client_id) DO NOTHING`,
		jobID, clientID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrSearchNotFound
		}
		return fmt.Errorf("hide search %s for %s: %w", jobID, clientID, err)
	}
	return nil
}

func (r *ArchiveRepository) Unhide(ctx context.Context, jobID, clientID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM hidden_searches WHERE job_id = $1 AND client_id = $2`,
		jobID, clientID)
	if err != nil {
		return fmt.Errorf("unhide search %s for %s: %w", jobID, clientID, err)
	}
	return nil
}

func (r *ArchiveRepository) Rename(ctx context.Context, jobID, clientID, name string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE searches SET custom_name = $3
		WHERE job_id = $1 AND client_id = $2 AND expires_at > NOW()`,
		jobID, clientID, name)
	if err != nil {
		return fmt.Errorf("rename search %s: %w", jobID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish a missing row from somebody else's row.
	var owner string
	err = r.pool.QueryRow(ctx,
		`SELECT client_id FROM searches WHERE job_id = $1 AND expires_at > NOW()`,
		jobID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrSearchNotFound
	}
	if err != nil {
		return fmt.Errorf("check owner of search %s: %w", jobID, err)
	}
	return domain.ErrNotOwner
}

func (r *ArchiveRepository) PurgeExpired(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM searches WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired searches: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanArchived(row pgx.Row) (*domain.ArchivedSearch, error) {
	var rec domain.ArchivedSearch
	var status string
	err := row.Scan(
		&rec.JobID,
		&rec.ClientID,
		&status,
		&rec.Params,
		&rec.Result,
		&rec.Error,
		&rec.CustomName,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&rec.LastAccessedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.Status(status)
	return &rec, nil
}

func scanArchivedWithSaved(row pgx.Row) (*domain.ArchivedSearch, error) {
	var rec domain.ArchivedSearch
	var status string
	err := row.Scan(
		&rec.JobID,
		&rec.ClientID,
		&status,
		&rec.Params,
		&rec.Result,
		&rec.Error,
		&rec.CustomName,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&rec.LastAccessedAt,
		&rec.Saved,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.Status(status)
	return &rec, nil
}
