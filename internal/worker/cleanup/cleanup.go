// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 期限切れのセッション（関連するmarked_recordsはCASCADE削除される）と
// 期限切れのインポートキャッシュを削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredDeleter は期限切れ行を削除し、削除件数を返すインターフェース。
// repository.SessionRepository と repository.CacheRepository が満たす。
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Recorder はクリーンアップ結果のメトリクス記録インターフェース。
type Recorder interface {
	RecordCleanup(kind string, deleted int64)
}

// Target は削除対象の種別とその削除処理の組。
type Target struct {
	Kind    string
	Deleter ExpiredDeleter
}

// CleanupJob は期限切れデータの削除ジョブ。
// 削除処理は冪等で、対象がなくてもエラーにならない。
type CleanupJob struct {
	targets  []Target
	recorder Recorder
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(targets []Target, recorder Recorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		targets:  targets,
		recorder: recorder,
		logger:   logger,
	}
}

// Run は全対象の期限切れ行を削除する。
// ある対象が失敗しても残りの対象は処理し、失敗をまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	var errs []error
	for _, target := range j.targets {
		if err := j.runTarget(ctx, target); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (j *CleanupJob) runTarget(ctx context.Context, target Target) error {
	start := time.Now()

	deletedCount, err := target.Deleter.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("kind", target.Kind),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s のクリーンアップに失敗: %w", target.Kind, err)
	}

	if j.recorder != nil {
		j.recorder.RecordCleanup(target.Kind, deletedCount)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.String("kind", target.Kind),
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、その後interval毎にRunを実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
