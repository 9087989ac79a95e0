package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// deleteExpired はexpires_atを過ぎた行をtableから削除し、削除件数を返す。
// tableはこのパッケージ内の定数のみを渡す。
func deleteExpired(ctx context.Context, db *sql.DB, table string) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired %s: %w", table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected for %s: %w", table, err)
	}
	return n, nil
}
