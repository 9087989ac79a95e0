// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/recordman/internal/model"
)

// ErrReferenceMissing は外部キー参照先が存在しない場合に返される。
// マーク挿入の直前にレコードが削除された場合などに発生する。
var ErrReferenceMissing = errors.New("referenced row does not exist")

// RecordRepository はレコードデータの参照インターフェース。
type RecordRepository interface {
	// FindByID は指定IDのレコードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Record, error)

	// Count は全レコード数を返す。セッションには依存しない。
	Count(ctx context.Context) (int, error)

	// ListWithMarks は全レコードを指定セッションのマーク状態付きで返す。
	// 各レコードはマーク状態に関わらず必ず1回だけ含まれる。
	// 同順位はid昇順で並ぶ。
	ListWithMarks(ctx context.Context, sessionID string, order model.SortOrder) ([]model.RecordWithMark, error)

	// ListForExport は全レコードを日付降順（NULLは末尾）、同順位はid昇順で返す。
	ListForExport(ctx context.Context) ([]model.Record, error)
}

// RecordUpserter は自然キー (first_name, last_name) によるUPSERTのインターフェース。
type RecordUpserter interface {
	// Upsert はトリム済みの名前の組でレコードを検索し、存在すれば日付のみ更新、
	// 存在しなければ新規作成する。新規作成した場合はtrueを返す。
	Upsert(ctx context.Context, item model.ImportItem) (inserted bool, err error)
}

// RecordTxRunner はレコードのUPSERTを単一トランザクション内で実行する。
type RecordTxRunner interface {
	// WithinTx はfnを1つのトランザクション内で実行する。
	// fnがエラーを返した場合はロールバックし、そのエラーを返す。
	WithinTx(ctx context.Context, fn func(RecordUpserter) error) error
}

// MarkRepository はセッションごとのマークの永続化インターフェース。
// 全クエリにsession_id条件を付与する。
type MarkRepository interface {
	// Insert はマークを冪等に作成する。既に存在する場合は何もしない。
	// レコードが存在しない場合はErrReferenceMissingを返す。
	Insert(ctx context.Context, recordID int64, sessionID string, markedAt time.Time) error

	// Delete はマークを冪等に削除する。存在しない場合は何もしない。
	Delete(ctx context.Context, recordID int64, sessionID string) error

	// CountDistinctBySession はセッションがマークした、現存するレコードの数を返す。
	CountDistinctBySession(ctx context.Context, sessionID string) (int, error)
}

// SessionRepository はブラウザセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Extend はアクセスのあったセッションの期限を延長する。
	Extend(ctx context.Context, id string, expiresAt time.Time) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	// 関連するmarked_recordsはCASCADE削除される。
	DeleteExpired(ctx context.Context) (int64, error)
}

// CacheRepository はTTL付きのバイト列キャッシュのインターフェース。
type CacheRepository interface {
	// Get は有効期限内の値を返す。存在しないか期限切れの場合はfalseを返す。
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set は値をTTL付きで保存する。既存の値は上書きされる。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteExpired は期限切れのエントリを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
