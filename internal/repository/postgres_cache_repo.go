package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresCacheRepo はPostgreSQLを使用したTTL付きバイト列キャッシュ。
// 複数プロセスからでも同じキャッシュを共有できる。
type PostgresCacheRepo struct {
	db *sql.DB
}

// NewPostgresCacheRepo はPostgresCacheRepoを生成する。
func NewPostgresCacheRepo(db *sql.DB) *PostgresCacheRepo {
	return &PostgresCacheRepo{db: db}
}

// Get は有効期限内の値を返す。
func (r *PostgresCacheRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM import_cache WHERE cache_key = $1 AND expires_at > now()`,
		key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return value, true, nil
}

// Set は値をTTL付きで保存する。
func (r *PostgresCacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := time.Now().UTC().Add(ttl)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO import_cache (cache_key, value, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (cache_key) DO UPDATE SET
		     value = EXCLUDED.value,
		     expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れのエントリを削除する。
func (r *PostgresCacheRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return deleteExpired(ctx, r.db, "import_cache")
}

// compile-time interface check
var _ CacheRepository = (*PostgresCacheRepo)(nil)
