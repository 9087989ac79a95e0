// Package importer はリモートデータソースからのレコード一括取り込みを提供する。
package importer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/recordman/internal/model"
	"github.com/hitoshi/recordman/internal/repository"
)

// Source はインポート対象のJSONバイト列を返す。
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// URLGuard はインポート元URLの検証とHTTPクライアント生成のインターフェース。
type URLGuard interface {
	ValidateURL(rawURL string) error
	NewClient(timeout time.Duration) *http.Client
}

// FetchRecorder は取得処理のメトリクス記録インターフェース。
type FetchRecorder interface {
	RecordFetchLatency(duration time.Duration)
	RecordCacheLookup(hit bool)
}

// HTTPSource はHTTP GETでデータを取得するSource。
type HTTPSource struct {
	url      string
	guard    URLGuard
	timeout  time.Duration
	maxSize  int64
	recorder FetchRecorder
}

// NewHTTPSource はHTTPSourceを生成する。recorderはnilでもよい。
func NewHTTPSource(url string, guard URLGuard, timeout time.Duration, maxSize int64, recorder FetchRecorder) *HTTPSource {
	return &HTTPSource{
		url:      url,
		guard:    guard,
		timeout:  timeout,
		maxSize:  maxSize,
		recorder: recorder,
	}
}

// URL は取得先URLを返す。
func (s *HTTPSource) URL() string {
	return s.url
}

// Fetch はリモートデータを取得する。
// 通信失敗、2xx以外のステータス、サイズ超過、JSONとして不正な本文はFETCH_ERRORを返す。
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := s.guard.ValidateURL(s.url); err != nil {
		return nil, model.NewFetchError("source URL rejected", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, model.NewFetchError("failed to build request", err)
	}
	req.Header.Set("User-Agent", "Recordman/1.0")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.guard.NewClient(s.timeout).Do(req)
	if s.recorder != nil {
		s.recorder.RecordFetchLatency(time.Since(start))
	}
	if err != nil {
		slog.Warn("リモートデータの取得に失敗しました",
			slog.String("url", s.url),
			slog.String("error", err.Error()),
		)
		return nil, model.NewFetchError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("リモートデータソースが異常なステータスを返しました",
			slog.String("url", s.url),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewFetchError(
			fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode),
			&StatusError{StatusCode: resp.StatusCode},
		)
	}

	// 上限+1バイトまで読み、超過を検出する
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, model.NewFetchError("failed to read response body", err)
	}
	if int64(len(body)) > s.maxSize {
		return nil, model.NewFetchError(fmt.Sprintf("response exceeds %d bytes", s.maxSize), nil)
	}
	if !json.Valid(body) {
		return nil, model.NewFetchError("invalid JSON format", nil)
	}

	return body, nil
}

// StatusError はリモートデータソースが2xx以外を返したことを表す。
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote source returned HTTP %d", e.StatusCode)
}

// CacheKey はURLに対応するキャッシュキーを返す。
func CacheKey(url string) string {
	sum := md5.Sum([]byte(url))
	return "json_data_" + hex.EncodeToString(sum[:])
}

// CachedSource はSourceの前段にTTL付きキャッシュを置く。
// 取得データは配列として検証に通った場合のみキャッシュする。
// キャッシュの読み書きに失敗してもインポートは継続する。
type CachedSource struct {
	inner    Source
	cache    repository.CacheRepository
	key      string
	ttl      time.Duration
	recorder FetchRecorder
}

// NewCachedSource はCachedSourceを生成する。recorderはnilでもよい。
func NewCachedSource(inner Source, cache repository.CacheRepository, key string, ttl time.Duration, recorder FetchRecorder) *CachedSource {
	return &CachedSource{
		inner:    inner,
		cache:    cache,
		key:      key,
		ttl:      ttl,
		recorder: recorder,
	}
}

// Fetch は有効なキャッシュがあればそれを返し、なければ内側のSourceから取得する。
func (s *CachedSource) Fetch(ctx context.Context) ([]byte, error) {
	cached, ok, err := s.cache.Get(ctx, s.key)
	if err != nil {
		slog.Warn("インポートキャッシュの読み込みに失敗しました",
			slog.String("cache_key", s.key),
			slog.String("error", err.Error()),
		)
	}
	if s.recorder != nil {
		s.recorder.RecordCacheLookup(ok)
	}
	if ok {
		slog.Debug("インポートキャッシュを使用します", slog.String("cache_key", s.key))
		return cached, nil
	}

	body, err := s.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := ParsePayload(body); err != nil {
		return body, nil
	}
	if err := s.cache.Set(ctx, s.key, body, s.ttl); err != nil {
		slog.Warn("インポートキャッシュの保存に失敗しました",
			slog.String("cache_key", s.key),
			slog.String("error", err.Error()),
		)
	}

	return body, nil
}
