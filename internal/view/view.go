// Package view はHTMLページのtemplコンポーネントを提供する。
package view

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/hitoshi/recordman/internal/model"
)

// TablePageData はレコード一覧ページの表示データ。
type TablePageData struct {
	Records        []model.RecordWithMark
	Order          model.SortOrder
	Stats          model.Stats
	SuccessMessage string
}

// ErrorPageData はエラーページの表示データ。
type ErrorPageData struct {
	Title   string
	Message string
	Action  string
	Code    string
}

// columns は表の列見出しとソートキー。
var columns = []struct {
	label  string
	column model.SortColumn
}{
	{"ID", model.SortColumnID},
	{"First Name", model.SortColumnFirstName},
	{"Last Name", model.SortColumnLastName},
	{"Date", model.SortColumnDate},
}

// pageWriter はエラーを最初の1回だけ保持する書き込みヘルパー。
type pageWriter struct {
	out   io.Writer
	err   error
	nonce string
}

func (x *pageWriter) raw(s string) {
	if x.err == nil {
		_, x.err = io.WriteString(x.out, s)
	}
}

func (x *pageWriter) text(s string) {
	x.raw(templ.EscapeString(s))
}

// openTag はCSPのnonceが設定されていればそれを付けて開始タグを書く。
func (x *pageWriter) openTag(name string) {
	if x.nonce == "" {
		x.raw(`<` + name + `>`)
		return
	}
	x.raw(`<` + name + ` nonce="`)
	x.text(x.nonce)
	x.raw(`">`)
}

// layout は共通のページ枠で本文を包む。
func layout(title string, body func(x *pageWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		x := &pageWriter{out: out, nonce: templ.GetNonce(ctx)}
		x.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		x.raw(`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		x.text(title)
		x.raw(`</title>`)
		x.openTag("style")
		x.raw(pageCSS + `</style></head><body><main>`)
		body(x)
		x.raw(`</main></body></html>`)
		return x.err
	})
}

// TablePage はソート可能なレコード一覧ページを返す。
func TablePage(data TablePageData) templ.Component {
	return layout("Records", func(x *pageWriter) {
		x.raw(`<h1>Records</h1>`)
		if data.SuccessMessage != "" {
			x.raw(`<div class="flash success" role="status">`)
			x.text(data.SuccessMessage)
			x.raw(`</div>`)
		}

		x.raw(`<nav class="actions"><a class="button" href="/download">Import data</a>`)
		x.raw(`<a class="button" href="/export?format=csv">Export CSV</a>`)
		x.raw(`<a class="button" href="/export?format=json">Export JSON</a></nav>`)

		x.raw(`<p class="stats">Total: <span id="totalCount">`)
		x.text(strconv.Itoa(data.Stats.Total))
		x.raw(`</span> / Marked: <span id="markedCount">`)
		x.text(strconv.Itoa(data.Stats.Marked))
		x.raw(`</span> (<span id="markedPercentage">`)
		x.text(strconv.Itoa(data.Stats.Percentage))
		x.raw(`</span>%)</p>`)

		if len(data.Records) == 0 {
			x.raw(`<p class="empty">No records yet. Use Import data to load them.</p>`)
			return
		}

		x.raw(`<table><thead><tr>`)
		for _, c := range columns {
			x.raw(`<th><a href="`)
			x.text(sortLink(c.column, data.Order))
			x.raw(`">`)
			x.text(c.label)
			if c.column == data.Order.Column {
				if data.Order.Direction == model.SortAsc {
					x.raw(` &#9650;`)
				} else {
					x.raw(` &#9660;`)
				}
			}
			x.raw(`</a></th>`)
		}
		x.raw(`<th>Status</th></tr></thead><tbody>`)

		for _, r := range data.Records {
			x.raw(`<tr data-id="`)
			x.text(strconv.FormatInt(r.ID, 10))
			x.raw(`"`)
			if r.IsMarked {
				x.raw(` class="row-marked"`)
			}
			x.raw(`><td>`)
			x.text(strconv.FormatInt(r.ID, 10))
			x.raw(`</td><td>`)
			x.text(r.FirstName)
			x.raw(`</td><td>`)
			x.text(r.LastName)
			x.raw(`</td><td>`)
			if r.Date != nil {
				x.text(r.Date.Format("02.01.2006"))
			}
			x.raw(`</td><td><span class="badge">`)
			if r.IsMarked {
				x.raw(`Marked`)
			}
			x.raw(`</span></td></tr>`)
		}
		x.raw(`</tbody></table>`)
		x.openTag("script")
		x.raw(tableJS + `</script>`)
	})
}

// ErrorPage はエラー内容と対処方法を表示するページを返す。
func ErrorPage(data ErrorPageData) templ.Component {
	return layout(data.Title, func(x *pageWriter) {
		x.raw(`<h1>`)
		x.text(data.Title)
		x.raw(`</h1><div class="flash error" role="alert"><p>`)
		x.text(data.Message)
		x.raw(`</p>`)
		if data.Action != "" {
			x.raw(`<p class="action">`)
			x.text(data.Action)
			x.raw(`</p>`)
		}
		if data.Code != "" {
			x.raw(`<p class="code">`)
			x.text(data.Code)
			x.raw(`</p>`)
		}
		x.raw(`</div><p><a class="button" href="/">Back to records</a></p>`)
	})
}

// sortLink は列見出しのリンク先を返す。
// 現在のソート列をもう一度選ぶと方向が反転する。
func sortLink(column model.SortColumn, current model.SortOrder) string {
	dir := model.SortAsc
	if column == current.Column && current.Direction == model.SortAsc {
		dir = model.SortDesc
	}
	q := url.Values{}
	q.Set("order", string(column))
	q.Set("dir", string(dir))
	return "/?" + q.Encode()
}

const pageCSS = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse;width:100%}th,td{padding:.4rem .6rem;border-bottom:1px solid #ddd;text-align:left}
th a{color:inherit;text-decoration:none}tbody tr{cursor:pointer}tr.row-marked{background:#fff3c4}
.badge{font-size:.8rem;color:#8a6d00}.flash{padding:.6rem 1rem;margin:1rem 0;border-radius:4px}
.success{background:#e6f4ea}.error{background:#fdecea}.actions{margin:1rem 0}
.button{display:inline-block;margin-right:.5rem;padding:.3rem .8rem;border:1px solid #888;border-radius:4px;color:inherit;text-decoration:none}
.code{font-family:monospace;color:#666}`

// tableJS は行クリックでマーク状態を更新し、統計表示を反映する。
const tableJS = `(function(){
function csrf(){var m=document.cookie.match(/(?:^|; )csrf_token=([^;]*)/);return m?decodeURIComponent(m[1]):"";}
function refreshStats(){fetch("/api/stats",{credentials:"same-origin"}).then(function(r){return r.json();}).then(function(s){
if(!s.success)return;document.getElementById("totalCount").textContent=s.total;
document.getElementById("markedCount").textContent=s.marked;document.getElementById("markedPercentage").textContent=s.percentage;});}
document.querySelectorAll("tbody tr").forEach(function(row){row.addEventListener("click",function(){
var marked=!row.classList.contains("row-marked");
fetch("/mark",{method:"POST",credentials:"same-origin",headers:{"Content-Type":"application/json","X-CSRF-Token":csrf()},
body:JSON.stringify({id:parseInt(row.dataset.id,10),marked:marked})}).then(function(r){return r.json();}).then(function(res){
if(!res.success){alert(res.message);return;}row.classList.toggle("row-marked",res.marked);
row.querySelector(".badge").textContent=res.marked?"Marked":"";refreshStats();});});});
})();`
