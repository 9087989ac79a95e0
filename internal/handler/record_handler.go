package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/recordman/internal/middleware"
	"github.com/hitoshi/recordman/internal/model"
	"github.com/hitoshi/recordman/internal/record"
	"github.com/hitoshi/recordman/internal/view"
)

// importSuccessMessage は取り込み後のリダイレクト先で表示するメッセージ。
const importSuccessMessage = "Data has been successfully imported."

// MarkServiceInterface はマーク更新サービスのインターフェース。
type MarkServiceInterface interface {
	SetMarked(ctx context.Context, sessionID string, recordID int64, marked bool) (bool, error)
}

// StatsServiceInterface は統計サービスのインターフェース。
type StatsServiceInterface interface {
	Compute(ctx context.Context, sessionID string) (*model.Stats, error)
}

// TableServiceInterface はレコード一覧サービスのインターフェース。
type TableServiceInterface interface {
	List(ctx context.Context, sessionID, order, dir string) (*record.Table, error)
}

// RecordHandler はレコード一覧・統計・マークのHTTPハンドラー。
type RecordHandler struct {
	table    TableServiceInterface
	stats    StatsServiceInterface
	mark     MarkServiceInterface
	validate *validator.Validate
	now      func() time.Time
}

// NewRecordHandler はRecordHandlerを生成する。
func NewRecordHandler(table TableServiceInterface, stats StatsServiceInterface, mark MarkServiceInterface) *RecordHandler {
	return &RecordHandler{
		table:    table,
		stats:    stats,
		mark:     mark,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// --- リクエスト/レスポンス型 ---

// markRequest はマーク更新リクエストのボディ。
type markRequest struct {
	ID     *int64 `json:"id" validate:"required"`
	Marked *bool  `json:"marked" validate:"required"`
}

type markResponse struct {
	Success   bool  `json:"success"`
	Marked    bool  `json:"marked"`
	Timestamp int64 `json:"timestamp"`
}

type markErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	Timestamp int64  `json:"timestamp"`
}

type statsResponse struct {
	Success    bool `json:"success"`
	Total      int  `json:"total"`
	Marked     int  `json:"marked"`
	Percentage int  `json:"percentage"`
}

type recordResponse struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Date      *string `json:"date"`
	FullName  string  `json:"full_name"`
	IsMarked  bool    `json:"is_marked"`
}

type recordListResponse struct {
	Success   bool             `json:"success"`
	OrderBy   string           `json:"order_by"`
	Direction string           `json:"direction"`
	Total     int              `json:"total"`
	Marked    int              `json:"marked"`
	Records   []recordResponse `json:"records"`
}

// Index はレコード一覧ページを描画する。
// GET /?order=id|firstName|lastName|date&dir=ASC|DESC&success=import
func (h *RecordHandler) Index(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrFail(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	table, err := h.table.List(r.Context(), sessionID, q.Get("order"), q.Get("dir"))
	if err != nil {
		renderErrorPage(w, r, "Failed to load records", err)
		return
	}
	stats, err := h.stats.Compute(r.Context(), sessionID)
	if err != nil {
		renderErrorPage(w, r, "Failed to load records", err)
		return
	}

	data := view.TablePageData{
		Records: table.Records,
		Order:   table.Order,
		Stats:   *stats,
	}
	if q.Get("success") == "import" {
		data.SuccessMessage = importSuccessMessage
	}

	renderPage(w, r, http.StatusOK, view.TablePage(data))
}

// ListRecords はレコード一覧をJSONで返す。
// GET /api/records?order=...&dir=...
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrFail(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	table, err := h.table.List(r.Context(), sessionID, q.Get("order"), q.Get("dir"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := recordListResponse{
		Success:   true,
		OrderBy:   string(table.Order.Column),
		Direction: string(table.Order.Direction),
		Total:     len(table.Records),
		Records:   make([]recordResponse, 0, len(table.Records)),
	}
	for _, rec := range table.Records {
		if rec.IsMarked {
			resp.Marked++
		}
		resp.Records = append(resp.Records, toRecordResponse(rec))
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Stats はセッションのマーク統計を返す。
// GET /api/stats
func (h *RecordHandler) Stats(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrFail(w, r)
	if !ok {
		return
	}

	stats, err := h.stats.Compute(r.Context(), sessionID)
	if err != nil {
		apiErr := toAPIError(r.Context(), err)
		middleware.WriteJSON(w, http.StatusInternalServerError, middleware.ErrorResponseBody{
			Message:  "Error fetching statistics",
			Code:     apiErr.Code,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, statsResponse{
		Success:    true,
		Total:      stats.Total,
		Marked:     stats.Marked,
		Percentage: stats.Percentage,
	})
}

// Mark はレコードのマーク状態を明示的に設定する。
// POST /mark  {"id": 5, "marked": true}
func (h *RecordHandler) Mark(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		middleware.WriteJSON(w, http.StatusMethodNotAllowed, markErrorResponse{
			Message:   "Method not allowed - POST required",
			Code:      model.ErrCodeInvalidInput,
			Timestamp: h.now().Unix(),
		})
		return
	}

	sessionID, ok := sessionIDOrFail(w, r)
	if !ok {
		return
	}

	req, err := h.decodeMarkRequest(r.Body)
	if err != nil {
		h.writeMarkError(w, r, err)
		return
	}

	marked, err := h.mark.SetMarked(r.Context(), sessionID, *req.ID, *req.Marked)
	if err != nil {
		h.writeMarkError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, markResponse{
		Success:   true,
		Marked:    marked,
		Timestamp: h.now().Unix(),
	})
}

// decodeMarkRequest は未知のフィールドを拒否してボディを読み取り、必須項目を検証する。
func (h *RecordHandler) decodeMarkRequest(body io.Reader) (*markRequest, error) {
	var req markRequest
	dec := json.NewDecoder(io.LimitReader(body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "id" {
			return nil, model.NewInvalidRecordIDError()
		}
		return nil, model.NewInvalidInputError("Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, model.NewInvalidInputError("Missing required parameters: id and marked")
	}
	return &req, nil
}

// writeMarkError はマーク更新のエラーを書き込む。
// 入力不正とレコード未検出は400、それ以外は500とする。
func (h *RecordHandler) writeMarkError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(r.Context(), err)
	status := http.StatusInternalServerError
	if apiErr.Code == model.ErrCodeInvalidInput || apiErr.Code == model.ErrCodeNotFound {
		status = http.StatusBadRequest
	}
	middleware.WriteJSON(w, status, markErrorResponse{
		Message:   apiErr.Message,
		Code:      apiErr.Code,
		Timestamp: h.now().Unix(),
	})
}

func toRecordResponse(rec model.RecordWithMark) recordResponse {
	resp := recordResponse{
		ID:        rec.ID,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		FullName:  rec.FullName(),
		IsMarked:  rec.IsMarked,
	}
	if rec.Date != nil {
		d := rec.Date.Format("2006-01-02")
		resp.Date = &d
	}
	return resp
}
