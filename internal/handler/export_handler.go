package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/recordman/internal/export"
)

// ExportServiceInterface はエクスポートサービスのインターフェース。
type ExportServiceInterface interface {
	Export(ctx context.Context, format string) (*export.File, error)
}

// ExportHandler はレコードのファイルダウンロードのHTTPハンドラー。
type ExportHandler struct {
	service ExportServiceInterface
}

// NewExportHandler はExportHandlerを生成する。
func NewExportHandler(service ExportServiceInterface) *ExportHandler {
	return &ExportHandler{service: service}
}

// Export は全レコードを指定形式のファイルとして返す。
// GET /export?format=csv|json （省略時はcsv）
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := string(export.DefaultFormat)
	if q := r.URL.Query(); q.Has("format") {
		format = q.Get("format")
	}

	file, err := h.service.Export(r.Context(), format)
	if err != nil {
		renderErrorPage(w, r, "Export failed", err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", file.ContentType)
	header.Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	header.Set("Content-Length", strconv.Itoa(len(file.Body)))
	header.Set("Cache-Control", "must-revalidate, post-check=0, pre-check=0")
	header.Set("Expires", "0")
	header.Set("Pragma", "public")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(file.Body); err != nil {
		slog.WarnContext(r.Context(), "failed to write export body",
			slog.String("filename", file.Filename),
			slog.String("error", err.Error()),
		)
	}
}
