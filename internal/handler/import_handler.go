package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/recordman/internal/middleware"
	"github.com/hitoshi/recordman/internal/model"
)

// ImportServiceInterface はインポートサービスのインターフェース。
type ImportServiceInterface interface {
	Run(ctx context.Context) (*model.ImportResult, error)
}

// ImportHandler はリモートデータ取り込みのHTTPハンドラー。
type ImportHandler struct {
	service ImportServiceInterface
}

// NewImportHandler はImportHandlerを生成する。
func NewImportHandler(service ImportServiceInterface) *ImportHandler {
	return &ImportHandler{service: service}
}

type importResponse struct {
	Success  bool `json:"success"`
	Imported int  `json:"imported"`
	Updated  int  `json:"updated"`
}

// Download は取り込みを実行し、成功時は一覧ページへリダイレクトする。
// GET /download
func (h *ImportHandler) Download(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Run(r.Context()); err != nil {
		renderErrorPage(w, r, "Import failed", err)
		return
	}
	http.Redirect(w, r, "/?success=import", http.StatusSeeOther)
}

// Import は取り込みを実行し、件数をJSONで返す。
// POST /api/import
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Run(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, importResponse{
		Success:  true,
		Imported: result.Imported,
		Updated:  result.Updated,
	})
}
