// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

var (
	sourceSchemes = []string{"http", "https"}
	sourcePorts   = []int{80, 443}
)

// privatePrefixes はインポート元として拒否するアドレス範囲。
// 名前解決後の接続先はsafeurlが改めて検証する。
var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // メタデータIPを含む
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// SourceGuard はインポート元URLへのアクセスをSSRFから保護する。
// allowPrivateはローカル開発でモックサーバーを参照するためのもの。
type SourceGuard struct {
	allowPrivate bool
}

// NewSourceGuard はSourceGuardを生成する。
func NewSourceGuard(allowPrivate bool) *SourceGuard {
	return &SourceGuard{allowPrivate: allowPrivate}
}

// NewClient はインポート元取得用のHTTPクライアントを返す。
// allowPrivateでなければsafeurlのクライアントとなり、内部アドレスへの接続はDial時に拒否される。
func (g *SourceGuard) NewClient(timeout time.Duration) *http.Client {
	if g.allowPrivate {
		return &http.Client{Timeout: timeout}
	}

	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(sourceSchemes...).
		SetAllowedPorts(sourcePorts...).
		Build()
	return safeurl.Client(cfg).Client
}

// ValidateURL は名前解決を行わずにインポート元URLを検証する。
// 設定誤りを取得前に検出するためのもので、最終的な防御はNewClient側にある。
func (g *SourceGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty import source URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse import source URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if !slices.Contains(sourceSchemes, scheme) {
		return fmt.Errorf("import source scheme %q not allowed", scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("import source URL has no host")
	}
	if g.allowPrivate {
		return nil
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || !slices.Contains(sourcePorts, port) {
			return fmt.Errorf("import source port %q not allowed", p)
		}
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("import source host %q not allowed", host)
	}
	if addr, err := netip.ParseAddr(host); err == nil && isPrivateAddr(addr) {
		return fmt.Errorf("import source address %s not allowed", addr)
	}
	return nil
}

func isPrivateAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range privatePrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
