package importer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/recordman/internal/model"
	"github.com/hitoshi/recordman/internal/repository"
)

// ResultRecorder はインポート結果のメトリクス記録インターフェース。
type ResultRecorder interface {
	RecordImportSuccess(imported, updated int)
	RecordImportFailure(code string)
}

// Service は取得、検証、UPSERT、コミットの一連のインポート処理を実行する。
type Service struct {
	source   Source
	txRunner repository.RecordTxRunner
	cleaner  NameCleaner
	recorder ResultRecorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	source Source,
	txRunner repository.RecordTxRunner,
	cleaner NameCleaner,
	recorder ResultRecorder,
) *Service {
	return &Service{
		source:   source,
		txRunner: txRunner,
		cleaner:  cleaner,
		recorder: recorder,
	}
}

// Run はインポートを1回実行し、新規作成数と更新数を返す。
// 取得と全体検証は書き込みの前に行う。
// UPSERTは1トランザクションで実行し、途中で失敗した場合は全件ロールバックして
// IMPORT_FAILEDを返す。
func (s *Service) Run(ctx context.Context) (*model.ImportResult, error) {
	result, err := s.run(ctx)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.RecordImportSuccess(result.Imported, result.Updated)
	}
	slog.Info("インポート完了",
		slog.Int("imported", result.Imported),
		slog.Int("updated", result.Updated),
	)
	return result, nil
}

func (s *Service) run(ctx context.Context) (*model.ImportResult, error) {
	body, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	raws, err := ParsePayload(body)
	if err != nil {
		return nil, err
	}

	items := make([]model.ImportItem, 0, len(raws))
	for i, raw := range raws {
		item, ok := ParseItem(raw, s.cleaner)
		if !ok {
			slog.Debug("不正な要素をスキップしました", slog.Int("index", i))
			continue
		}
		items = append(items, item)
	}

	result := &model.ImportResult{}
	err = s.txRunner.WithinTx(ctx, func(u repository.RecordUpserter) error {
		// ロールバック時に部分的な件数を返さない
		var imported, updated int
		for _, item := range items {
			inserted, err := u.Upsert(ctx, item)
			if err != nil {
				return err
			}
			if inserted {
				imported++
			} else {
				updated++
			}
		}
		result.Imported = imported
		result.Updated = updated
		return nil
	})
	if err != nil {
		slog.Error("インポートをロールバックしました",
			slog.Int("items", len(items)),
			slog.String("error", err.Error()),
		)
		return nil, model.NewImportFailedError(err)
	}

	return result, nil
}

func (s *Service) recordFailure(err error) {
	if s.recorder == nil {
		return
	}
	code := model.ErrCodeInternal
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.Code
	}
	s.recorder.RecordImportFailure(code)
}
