package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const (
	// pqForeignKeyViolation はPostgreSQLの外部キー制約違反のSQLSTATE。
	pqForeignKeyViolation = "23503"

	// markRecordFK はmarked_records.record_idの外部キー制約名。
	markRecordFK = "marked_records_record_fk"
)

// PostgresMarkRepo はPostgreSQLを使用したマークリポジトリ。
type PostgresMarkRepo struct {
	db *sql.DB
}

// NewPostgresMarkRepo はPostgresMarkRepoを生成する。
func NewPostgresMarkRepo(db *sql.DB) *PostgresMarkRepo {
	return &PostgresMarkRepo{db: db}
}

// Insert はマークを冪等に作成する。
// UNIQUE(record_id, session_id)制約とON CONFLICT DO NOTHINGにより、
// 同時に2回呼ばれても行は1つしか作られず、エラーにもならない。
func (r *PostgresMarkRepo) Insert(ctx context.Context, recordID int64, sessionID string, markedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO marked_records (record_id, session_id, marked_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (record_id, session_id) DO NOTHING`,
		recordID, sessionID, markedAt,
	)
	if err != nil {
		return markInsertError(err)
	}
	return nil
}

// markInsertError はrecord_idの参照切れのみをErrReferenceMissingに変換する。
// セッション側の参照切れ(挿入直前にクリーンアップで削除された等)は内部エラーとして返す。
func markInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation && pqErr.Constraint == markRecordFK {
		return ErrReferenceMissing
	}
	return fmt.Errorf("failed to insert mark: %w", err)
}

// Delete はマークを冪等に削除する。
func (r *PostgresMarkRepo) Delete(ctx context.Context, recordID int64, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM marked_records WHERE record_id = $1 AND session_id = $2`,
		recordID, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete mark: %w", err)
	}
	return nil
}

// CountDistinctBySession はセッションがマークしたレコード数を返す。
// recordsとJOINし、参照先のない古いマークは数えない。
func (r *PostgresMarkRepo) CountDistinctBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT m.record_id)
		 FROM marked_records m
		 JOIN records r ON r.id = m.record_id
		 WHERE m.session_id = $1`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count marks: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ MarkRepository = (*PostgresMarkRepo)(nil)
