package mark

import (
	"context"
	"math"

	"github.com/hitoshi/recordman/internal/model"
	"github.com/hitoshi/recordman/internal/repository"
)

// StatsService はセッションのマーク統計を算出する。キャッシュは行わない。
type StatsService struct {
	recordRepo repository.RecordRepository
	markRepo   repository.MarkRepository
}

// NewStatsService はStatsServiceの新しいインスタンスを生成する。
func NewStatsService(recordRepo repository.RecordRepository, markRepo repository.MarkRepository) *StatsService {
	return &StatsService{recordRepo: recordRepo, markRepo: markRepo}
}

// Compute は全レコード数、セッションのマーク数、マーク率を返す。
func (s *StatsService) Compute(ctx context.Context, sessionID string) (*model.Stats, error) {
	total, err := s.recordRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	marked, err := s.markRepo.CountDistinctBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &model.Stats{
		Total:      total,
		Marked:     marked,
		Percentage: Percentage(marked, total),
	}, nil
}

// Percentage はmarked/totalを百分率の整数に丸める（0.5は0から遠い方へ）。
// totalが0の場合は0を返し、結果は[0,100]に収める。
func Percentage(marked, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(marked) * 100 / float64(total)))
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
