// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Record は管理対象の名簿レコードを表す。
// インポート時の同一性は生成IDではなく (FirstName, LastName) の組で判定する。
type Record struct {
	ID        int64
	FirstName string
	LastName  string
	Date      *time.Time
}

// FullName は「名 姓」を連結しトリムした表示名を返す。
func (r Record) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// RecordWithMark はレコードと現在のセッションでのマーク状態を結合したモデル。
// marked_recordsテーブルとLEFT JOINして取得される。
type RecordWithMark struct {
	Record
	IsMarked bool
}

// Mark はセッションごとのレコードのマークを表す。
// (RecordID, SessionID) の組はストレージ層のUNIQUE制約で一意に保たれる。
type Mark struct {
	RecordID  int64
	SessionID string
	MarkedAt  time.Time
}

// Stats はセッションごとの集計値を表す。
type Stats struct {
	Total      int
	Marked     int
	Percentage int
}

// SortColumn はテーブル表示で許可されたソート列を表す。
type SortColumn string

const (
	// SortColumnID はID列。
	SortColumnID SortColumn = "id"
	// SortColumnFirstName は名の列。
	SortColumnFirstName SortColumn = "firstName"
	// SortColumnLastName は姓の列。
	SortColumnLastName SortColumn = "lastName"
	// SortColumnDate は日付列。デフォルトのソート列。
	SortColumnDate SortColumn = "date"
)

// SortDirection はソート方向を表す。
type SortDirection string

const (
	// SortAsc は昇順。
	SortAsc SortDirection = "ASC"
	// SortDesc は降順。デフォルトのソート方向。
	SortDesc SortDirection = "DESC"
)

// SortOrder は検証済みのソート指定。
type SortOrder struct {
	Column    SortColumn
	Direction SortDirection
}

// DefaultSortOrder は日付の降順を返す。
func DefaultSortOrder() SortOrder {
	return SortOrder{Column: SortColumnDate, Direction: SortDesc}
}

// ImportItem はリモートデータソースから取得した1件分の検証済みデータ。
// 名前はトリム済み。
type ImportItem struct {
	FirstName string
	LastName  string
	Date      *time.Time
}

// ImportResult はインポート1回分の集計結果。
type ImportResult struct {
	Imported int
	Updated  int
}
