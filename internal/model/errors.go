// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, record, import, export, system
	Action   string // ユーザー向け対処方法
	Cause    error  // 原因となった内部エラー（レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Cause
}

// 定義済みエラーコード
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeFetchError        = "FETCH_ERROR"
	ErrCodeEmptyPayload      = "EMPTY_PAYLOAD"
	ErrCodeInvalidFormat     = "INVALID_FORMAT"
	ErrCodeImportFailed      = "IMPORT_FAILED"
	ErrCodeNoData            = "NO_DATA"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// IsCode はerrがcodeを持つAPIErrorかどうかを判定する。
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewInvalidInputError はリクエストデータ不正エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  reason,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidRecordIDError はレコードIDが正の整数でない場合のエラーを生成する。
func NewInvalidRecordIDError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  "Invalid record ID",
		Category: "validation",
		Action:   "レコードIDには正の整数を指定してください。",
	}
}

// NewUnsupportedFormatError は未対応のエクスポート形式エラーを生成する。
func NewUnsupportedFormatError(format string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedFormat,
		Message:  fmt.Sprintf("Unsupported export format: %s", format),
		Category: "validation",
		Action:   "形式には csv または json を指定してください。",
	}
}

// NewRecordNotFoundError はレコード未検出エラーを生成する。
func NewRecordNotFoundError(recordID int64) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Record not found",
		Category: "record",
		Action:   fmt.Sprintf("レコードID %d が存在するか確認してください。", recordID),
	}
}

// NewFetchError はリモートデータソースの取得失敗エラーを生成する。
func NewFetchError(reason string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeFetchError,
		Message:  fmt.Sprintf("Failed to download data from remote source: %s", reason),
		Category: "import",
		Action:   "しばらく待ってから再度お試しください。",
		Cause:    cause,
	}
}

// NewEmptyPayloadError は取得データが空の場合のエラーを生成する。
func NewEmptyPayloadError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyPayload,
		Message:  "No data received from remote source",
		Category: "import",
		Action:   "データソースの内容を確認してください。",
	}
}

// NewInvalidFormatError は取得データの形式が不正な場合のエラーを生成する。
func NewInvalidFormatError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFormat,
		Message:  "Invalid data format - expected array",
		Category: "import",
		Action:   "データソースがJSON配列を返しているか確認してください。",
	}
}

// NewImportFailedError はトランザクション失敗によるインポート失敗エラーを生成する。
// バッチ全体がロールバックされていることを示す。
func NewImportFailedError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeImportFailed,
		Message:  "Database import failed",
		Category: "import",
		Action:   "変更はすべて取り消されました。しばらく待ってから再度お試しください。",
		Cause:    cause,
	}
}

// NewNoDataError はエクスポート対象のレコードが存在しない場合のエラーを生成する。
func NewNoDataError() *APIError {
	return &APIError{
		Code:     ErrCodeNoData,
		Message:  "No data available for export",
		Category: "export",
		Action:   "先にデータをインポートしてください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An error occurred while processing your request.",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Cause:    cause,
	}
}
