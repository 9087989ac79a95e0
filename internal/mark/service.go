// Package mark はセッションごとのレコードマークと統計を提供する。
package mark

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/recordman/internal/model"
	"github.com/hitoshi/recordman/internal/repository"
)

// Recorder はマーク操作のメトリクス記録インターフェース。
type Recorder interface {
	RecordMarkToggle(marked bool)
}

// MarkService はレコードのマーク状態の管理サービス。
// トグルではなく明示的な状態指定で冪等に更新する。
type MarkService struct {
	recordRepo repository.RecordRepository
	markRepo   repository.MarkRepository
	recorder   Recorder
	now        func() time.Time
}

// NewMarkService はMarkServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewMarkService(
	recordRepo repository.RecordRepository,
	markRepo repository.MarkRepository,
	recorder Recorder,
) *MarkService {
	return &MarkService{
		recordRepo: recordRepo,
		markRepo:   markRepo,
		recorder:   recorder,
		now:        time.Now,
	}
}

// SetMarked はセッションにおけるレコードのマーク状態を設定し、結果の状態を返す。
// recordIDが正でない場合はINVALID_INPUT、レコードが存在しない場合はNOT_FOUNDを返す。
// 同じ状態を繰り返し指定しても結果は変わらない。
func (s *MarkService) SetMarked(ctx context.Context, sessionID string, recordID int64, marked bool) (bool, error) {
	if recordID <= 0 {
		return false, model.NewInvalidRecordIDError()
	}

	record, err := s.recordRepo.FindByID(ctx, recordID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, model.NewRecordNotFoundError(recordID)
	}

	if marked {
		err = s.markRepo.Insert(ctx, recordID, sessionID, s.now())
		// 存在確認とINSERTの間にレコードが消えた場合
		if errors.Is(err, repository.ErrReferenceMissing) {
			return false, model.NewRecordNotFoundError(recordID)
		}
	} else {
		err = s.markRepo.Delete(ctx, recordID, sessionID)
	}
	if err != nil {
		return false, err
	}

	slog.Debug("マーク状態を更新",
		"session_id", sessionID,
		"record_id", recordID,
		"marked", marked,
	)
	if s.recorder != nil {
		s.recorder.RecordMarkToggle(marked)
	}

	return marked, nil
}
