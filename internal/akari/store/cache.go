package store

// cache.go: the web-search result cache. Keys are hashes of the normalised
// query so that "Weather in Tokyo" and "weather in tokyo" share an entry.

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

func cacheKey(query string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// CachedSearch returns the stored results for query if they are younger
// than maxAge. ok is false on miss or staleness; stale rows are left for
// PruneSearchCache.
func (s *Store) CachedSearch(ctx context.Context, query string, maxAge time.Duration) (results string, ok bool, err error) {
	var cachedAt time.Time
	err = s.db.QueryRowContext(ctx,
		`SELECT results, cached_at FROM search_cache WHERE query_hash = ?`,
		cacheKey(query),
	).Scan(&results, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read search cache: %w", err)
	}
	if time.Since(cachedAt) > maxAge {
		return "", false, nil
	}
	return results, true, nil
}

// PutSearchCache stores (or refreshes) the results for query.
func (s *Store) PutSearchCache(ctx context.Context, query, results string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_cache (query_hash, query, results, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(query_hash) DO UPDATE SET
			query = excluded.query,
			results = excluded.results,
			cached_at = excluded.cached_at`,
		cacheKey(query), query, results, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write search cache: %w", err)
	}
	return nil
}

// PruneSearchCache deletes entries older than maxAge.
func (s *Store) PruneSearchCache(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM search_cache WHERE cached_at < ?`,
		time.Now().UTC().Add(-maxAge),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune search cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
