package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/recordman/internal/model"
)

// queryer は*sql.DBと*sql.Txに共通するクエリ操作。
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sortColumnSQL はソート列からSQL式への許可リスト。
// ORDER BY句にはここに含まれる値のみを埋め込む。
var sortColumnSQL = map[model.SortColumn]string{
	model.SortColumnID:        "r.id",
	model.SortColumnFirstName: "r.first_name",
	model.SortColumnLastName:  "r.last_name",
	model.SortColumnDate:      "r.date",
}

// sortDirectionSQL はソート方向からSQLへの許可リスト。
// NULLの位置は昇順で先頭、降順で末尾に揃える。
var sortDirectionSQL = map[model.SortDirection]string{
	model.SortAsc:  "ASC NULLS FIRST",
	model.SortDesc: "DESC NULLS LAST",
}

// PostgresRecordRepo はPostgreSQLを使用したレコードリポジトリ。
type PostgresRecordRepo struct {
	db *sql.DB
	q  queryer
}

// NewPostgresRecordRepo はPostgresRecordRepoを生成する。
func NewPostgresRecordRepo(db *sql.DB) *PostgresRecordRepo {
	return &PostgresRecordRepo{db: db, q: db}
}

// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
func (r *PostgresRecordRepo) FindByID(ctx context.Context, id int64) (*model.Record, error) {
	record := &model.Record{}
	var date sql.NullTime

	err := r.q.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, date FROM records WHERE id = $1`,
		id,
	).Scan(&record.ID, &record.FirstName, &record.LastName, &date)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find record by ID: %w", err)
	}

	record.Date = nullTimePtr(date)
	return record, nil
}

// Count は全レコード数を返す。
func (r *PostgresRecordRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// ListWithMarks は全レコードを指定セッションのマーク状態付きで返す。
// マーク状態はEXISTSで判定するため、各レコードは必ず1行になる。
func (r *PostgresRecordRepo) ListWithMarks(ctx context.Context, sessionID string, order model.SortOrder) ([]model.RecordWithMark, error) {
	query := `SELECT r.id, r.first_name, r.last_name, r.date,
	                 EXISTS (
	                     SELECT 1 FROM marked_records m
	                     WHERE m.record_id = r.id AND m.session_id = $1
	                 ) AS is_marked
	          FROM records r
	          ORDER BY ` + orderByClause(order)

	rows, err := r.q.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records with marks: %w", err)
	}
	defer rows.Close()

	var results []model.RecordWithMark
	for rows.Next() {
		var rec model.RecordWithMark
		var date sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.FirstName, &rec.LastName, &date, &rec.IsMarked); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Date = nullTimePtr(date)
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return results, nil
}

// ListForExport は全レコードを日付降順で返す。
func (r *PostgresRecordRepo) ListForExport(ctx context.Context) ([]model.Record, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT r.id, r.first_name, r.last_name, r.date
		 FROM records r
		 ORDER BY `+orderByClause(model.DefaultSortOrder()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records for export: %w", err)
	}
	defer rows.Close()

	var results []model.Record
	for rows.Next() {
		var rec model.Record
		var date sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.FirstName, &rec.LastName, &date); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Date = nullTimePtr(date)
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return results, nil
}

// Upsert は自然キー (first_name, last_name) でレコードをUPSERTする。
// UNIQUE(first_name, last_name)制約を利用したINSERT ON CONFLICTで実装し、
// 並行インポートでも重複行が生まれないようにする。
// 既存行の場合は日付のみを更新し、名前は変更しない。
// xmax = 0 は今回のINSERTで作成された行であることを示す。
func (r *PostgresRecordRepo) Upsert(ctx context.Context, item model.ImportItem) (bool, error) {
	now := time.Now().UTC()

	var inserted bool
	err := r.q.QueryRowContext(ctx,
		`INSERT INTO records (first_name, last_name, date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (first_name, last_name) DO UPDATE SET
		     date = EXCLUDED.date,
		     updated_at = EXCLUDED.updated_at
		 RETURNING (xmax = 0) AS inserted`,
		item.FirstName, item.LastName, nullTimeOf(item.Date), now,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert record (%s %s): %w", item.FirstName, item.LastName, err)
	}

	return inserted, nil
}

// WithinTx はfnを1つのトランザクション内で実行する。
// fnがエラーを返した場合、またはコミットに失敗した場合はバッチ全体がロールバックされる。
func (r *PostgresRecordRepo) WithinTx(ctx context.Context, fn func(RecordUpserter) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&PostgresRecordRepo{db: r.db, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// orderByClause は検証済みのソート指定からORDER BY句を組み立てる。
// 許可リストにない値はデフォルト（日付降順）に置き換える。
func orderByClause(order model.SortOrder) string {
	col, ok := sortColumnSQL[order.Column]
	if !ok {
		col = sortColumnSQL[model.SortColumnDate]
	}
	dir, ok := sortDirectionSQL[order.Direction]
	if !ok {
		dir = sortDirectionSQL[model.SortDesc]
	}
	return col + " " + dir + ", r.id ASC"
}

// nullTimePtr はsql.NullTimeを*time.Timeに変換する。
func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullTimeOf は*time.Timeをsql.NullTimeに変換する。
func nullTimeOf(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// compile-time interface check
var (
	_ RecordRepository = (*PostgresRecordRepo)(nil)
	_ RecordUpserter   = (*PostgresRecordRepo)(nil)
	_ RecordTxRunner   = (*PostgresRecordRepo)(nil)
)
