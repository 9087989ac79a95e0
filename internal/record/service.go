// Package record はレコード一覧のテーブル組み立てを提供する。
package record

import (
	"context"
	"strings"

	"github.com/hitoshi/recordman/internal/model"
	"github.com/hitoshi/recordman/internal/repository"
)

// Table はソート済みのレコード一覧と適用されたソート指定。
type Table struct {
	Order   model.SortOrder
	Records []model.RecordWithMark
}

// TableService はセッションのマーク状態付きレコード一覧を組み立てる。
type TableService struct {
	recordRepo repository.RecordRepository
}

// NewTableService はTableServiceの新しいインスタンスを生成する。
func NewTableService(recordRepo repository.RecordRepository) *TableService {
	return &TableService{recordRepo: recordRepo}
}

// List は要求されたソート指定を正規化し、全レコードをマーク状態付きで返す。
// 不正なソート指定はエラーにせずデフォルトに置き換える。
func (s *TableService) List(ctx context.Context, sessionID, order, dir string) (*Table, error) {
	sortOrder := ResolveSortOrder(order, dir)

	records, err := s.recordRepo.ListWithMarks(ctx, sessionID, sortOrder)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.RecordWithMark{}
	}

	return &Table{Order: sortOrder, Records: records}, nil
}

// ResolveSortOrder はクエリパラメータのソート指定を許可リストで正規化する。
// 列は完全一致、方向は大文字小文字を区別しない。
func ResolveSortOrder(order, dir string) model.SortOrder {
	result := model.DefaultSortOrder()

	switch col := model.SortColumn(order); col {
	case model.SortColumnID, model.SortColumnFirstName, model.SortColumnLastName, model.SortColumnDate:
		result.Column = col
	}

	switch d := model.SortDirection(strings.ToUpper(strings.TrimSpace(dir))); d {
	case model.SortAsc, model.SortDesc:
		result.Direction = d
	}

	return result
}
