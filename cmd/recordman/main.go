// Command recordman はレコード管理サービスを起動する。
//
// サブコマンド:
//
//	serve        HTTPサーバー（デフォルト）
//	worker       期限切れセッション・キャッシュの定期削除
//	migrate      データベースマイグレーション
//	import       リモートデータソースからの取り込みを1回実行
//	healthcheck  /health の疎通確認（Dockerヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/recordman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "recordman: %v\n", err)
		os.Exit(1)
	}
}
