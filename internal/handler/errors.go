// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/hitoshi/recordman/internal/middleware"
	"github.com/hitoshi/recordman/internal/model"
	"github.com/hitoshi/recordman/internal/view"
)

// statusForAPIError はAPIErrorコードからHTTPステータスコードにマッピングする。
func statusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidInput, model.ErrCodeUnsupportedFormat:
		return http.StatusBadRequest
	case model.ErrCodeNotFound, model.ErrCodeNoData:
		return http.StatusNotFound
	case model.ErrCodeFetchError, model.ErrCodeEmptyPayload, model.ErrCodeInvalidFormat:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// toAPIError はサービス層のエラーをAPIErrorに変換する。
// APIError以外のエラーはログに記録し、詳細を伏せた内部エラーにする。
func toAPIError(ctx context.Context, err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Cause != nil {
			slog.WarnContext(ctx, "request failed",
				slog.String("code", apiErr.Code),
				slog.String("error", apiErr.Error()),
			)
		}
		return apiErr
	}

	slog.ErrorContext(ctx, "internal server error", slog.String("error", err.Error()))
	return model.NewInternalError(err)
}

// handleServiceError はサービス層のエラーをJSONエラーレスポンスとして書き込む。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(r.Context(), err)
	middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
}

// renderErrorPage はサービス層のエラーをHTMLエラーページとして書き込む。
func renderErrorPage(w http.ResponseWriter, r *http.Request, title string, err error) {
	apiErr := toAPIError(r.Context(), err)
	renderPage(w, r, statusForAPIError(apiErr), view.ErrorPage(view.ErrorPageData{
		Title:   title,
		Message: apiErr.Message,
		Action:  apiErr.Action,
		Code:    apiErr.Code,
	}))
}

// renderPage はtemplコンポーネントを指定ステータスで描画する。
func renderPage(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}

// sessionIDOrFail はコンテキストからセッションIDを取得する。
// セッションミドルウェアを通っていない場合は500を書き込みfalseを返す。
func sessionIDOrFail(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.SessionIDFromContext(r.Context())
	if !ok {
		slog.ErrorContext(r.Context(), "session ID missing from request context",
			slog.String("path", r.URL.Path),
		)
		middleware.WriteInternalServerError(w)
		return "", false
	}
	return id, true
}
