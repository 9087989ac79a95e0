package importer

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/recordman/internal/model"
)

// ParsePayload は取得データ全体を検証し、配列の各要素を返す。
// トップレベルが配列でなければINVALID_FORMAT、空配列ならEMPTY_PAYLOADを返す。
func ParsePayload(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, model.NewInvalidFormatError()
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, model.NewInvalidFormatError()
	}
	if len(items) == 0 {
		return nil, model.NewEmptyPayloadError()
	}

	return items, nil
}

// NameCleaner は名前からマークアップを除去しトリムする。
type NameCleaner interface {
	Clean(name string) string
}

// dateLayouts はdateフィールドとして受け付ける書式。
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02.01.2006",
}

// ParseItem は配列の1要素をImportItemに変換する。
// 名前の組がどちらも空でない文字列でない要素はokがfalseになる。
// 日付が解釈できない場合は日付なしとして扱う。
func ParseItem(raw json.RawMessage, cleaner NameCleaner) (item model.ImportItem, ok bool) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.ImportItem{}, false
	}

	first, ok := stringField(fields, "jmeno", "firstName")
	if !ok {
		return model.ImportItem{}, false
	}
	last, ok := stringField(fields, "prijmeni", "lastName")
	if !ok {
		return model.ImportItem{}, false
	}

	item.FirstName = cleaner.Clean(first)
	item.LastName = cleaner.Clean(last)
	if item.FirstName == "" || item.LastName == "" {
		return model.ImportItem{}, false
	}

	if value, found := stringField(fields, "date", "datum"); found {
		item.Date = parseDate(value)
		if item.Date == nil && strings.TrimSpace(value) != "" {
			slog.Warn("日付を解釈できないため日付なしで取り込みます",
				slog.String("first_name", item.FirstName),
				slog.String("last_name", item.LastName),
				slog.String("date", value),
			)
		}
	}

	return item, true
}

// stringField は最初に見つかったキーの値が文字列ならそれを返す。
func stringField(fields map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		v, found := fields[key]
		if !found || v == nil {
			continue
		}
		s, isString := v.(string)
		return s, isString
	}
	return "", false
}

// parseDate は日付文字列をUTCの日付に変換する。解釈できない場合はnil。
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	}
	return nil
}
