// Package model はドメインモデルを定義する。
package model

import "time"

// Session はブラウザごとの匿名セッションを表す。
// マークの分割キーとしてのみ使用される。
type Session struct {
	ID        string
	ExpiresAt time.Time
	CreatedAt time.Time
}
