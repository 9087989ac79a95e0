// Package export はレコードのCSV/JSONエクスポートを提供する。
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hitoshi/recordman/internal/model"
	"github.com/hitoshi/recordman/internal/repository"
)

// Format はエクスポート形式。
type Format string

const (
	// FormatCSV はセミコロン区切りのCSV。デフォルトの形式。
	FormatCSV Format = "csv"
	// FormatJSON はメタデータ付きのJSON。
	FormatJSON Format = "json"
)

// DefaultFormat は形式が指定されなかった場合の形式。
const DefaultFormat = FormatCSV

// utf8BOM は表計算ソフトにUTF-8として認識させるためのBOM。
const utf8BOM = "\xEF\xBB\xBF"

// csvHeader はCSVのヘッダー行。
var csvHeader = []string{"ID", "First Name", "Last Name", "Date"}

// File はダウンロード用に生成されたファイル。
type File struct {
	Filename    string
	ContentType string
	Body        []byte
	Records     int
}

// Recorder はエクスポートのメトリクス記録インターフェース。
type Recorder interface {
	RecordExport(format string)
}

// Exporter は全レコードを指定形式のファイルに書き出す。
type Exporter struct {
	recordRepo repository.RecordRepository
	recorder   Recorder
	now        func() time.Time
}

// NewExporter はExporterを生成する。recorderはnilでもよい。
func NewExporter(recordRepo repository.RecordRepository, recorder Recorder) *Exporter {
	return &Exporter{
		recordRepo: recordRepo,
		recorder:   recorder,
		now:        time.Now,
	}
}

// ParseFormat は形式名を検証する。未対応の形式はUNSUPPORTED_FORMATを返す。
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", model.NewUnsupportedFormatError(name)
}

// Export は全レコードを日付降順で書き出す。レコードが0件の場合はNO_DATAを返す。
func (e *Exporter) Export(ctx context.Context, format string) (*File, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	records, err := e.recordRepo.ListForExport(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, model.NewNoDataError()
	}

	now := e.now()
	var body []byte
	switch f {
	case FormatCSV:
		body, err = encodeCSV(records)
	case FormatJSON:
		body, err = encodeJSON(records, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s export: %w", f, err)
	}

	if e.recorder != nil {
		e.recorder.RecordExport(string(f))
	}

	return &File{
		Filename:    Filename(f, now),
		ContentType: contentType(f),
		Body:        body,
		Records:     len(records),
	}, nil
}

// Filename は data_export_YYYY-MM-DD_HH-MM-SS.<ext> 形式のファイル名を返す。
func Filename(f Format, at time.Time) string {
	return "data_export_" + at.Format("2006-01-02_15-04-05") + "." + string(f)
}

func contentType(f Format) string {
	if f == FormatJSON {
		return "application/json; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

func encodeCSV(records []model.Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		date := ""
		if r.Date != nil {
			date = r.Date.Format("02.01.2006")
		}
		if err := w.Write([]string{
			strconv.FormatInt(r.ID, 10),
			r.FirstName,
			r.LastName,
			date,
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

type jsonExport struct {
	Metadata jsonMetadata `json:"metadata"`
	Data     []jsonRecord `json:"data"`
}

type jsonMetadata struct {
	ExportedAt   string `json:"exported_at"`
	TotalRecords int    `json:"total_records"`
	Format       string `json:"format"`
	Version      string `json:"version"`
}

type jsonRecord struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Date      *string `json:"date"`
	FullName  string  `json:"full_name"`
}

func encodeJSON(records []model.Record, now time.Time) ([]byte, error) {
	doc := jsonExport{
		Metadata: jsonMetadata{
			ExportedAt:   now.Format(time.RFC3339),
			TotalRecords: len(records),
			Format:       string(FormatJSON),
			Version:      "1.0",
		},
		Data: make([]jsonRecord, 0, len(records)),
	}
	for _, r := range records {
		jr := jsonRecord{
			ID:        r.ID,
			FirstName: r.FirstName,
			LastName:  r.LastName,
			FullName:  r.FullName(),
		}
		if r.Date != nil {
			d := r.Date.Format("2006-01-02")
			jr.Date = &d
		}
		doc.Data = append(doc.Data, jr)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
