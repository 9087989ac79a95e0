package importer

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 4 * time.Second
)

// IsRetryable は取得エラーが一時的なものかを判定する。
// 429と5xx、および通信レベルの失敗を一時的とみなす。
// 4xxやURL検証での拒否、本文の不正は再試行しない。
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429 || statusErr.StatusCode >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// CalculateBackoff は失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回500ms、2倍ずつ増加、最大4秒。
func CalculateBackoff(failures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// RetryingSource は一時的な失敗に対して内側のSourceを再試行する。
type RetryingSource struct {
	inner    Source
	attempts int
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetryingSource はRetryingSourceを生成する。attemptsは初回を含む試行回数。
func NewRetryingSource(inner Source, attempts int) *RetryingSource {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryingSource{
		inner:    inner,
		attempts: attempts,
		sleep:    sleepContext,
	}
}

// Fetch は成功するか、再試行不能なエラーか、試行回数の上限に達するまで取得を繰り返す。
func (s *RetryingSource) Fetch(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(attempt - 1)
			slog.Info("リモートデータの取得を再試行します",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)
			if err := s.sleep(ctx, delay); err != nil {
				return nil, lastErr
			}
		}

		body, err := s.inner.Fetch(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
