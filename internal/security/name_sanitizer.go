package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizer は外部から取り込んだ名前からマークアップを除去する。
// bluemondayのStrictPolicyで全タグを落とし、エスケープを戻してトリムする。
// HTML出力時のエスケープはビュー側で行う。
type NameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerを生成する。
func NewNameSanitizer() *NameSanitizer {
	return &NameSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はタグを除去しトリムした名前を返す。
func (s *NameSanitizer) Clean(name string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(name)))
}
