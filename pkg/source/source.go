// Package source は入力参照（ローカルパス・data URI・http(s) URL・
// gs:// URI）をパイプラインが扱えるバイト列や Frame へ解決します。
package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/shouni/gemini-style-kit/pkg/domain"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

var (
	// ErrNoHTTPClient は httpClient 未設定の Resolver に http(s) 参照を
	// 渡した場合のエラーです。
	ErrNoHTTPClient = fmt.Errorf("http(s) 参照を解決する httpClient が設定されていません")
	// ErrNoReader は reader 未設定の Resolver に gs:// 参照を
	// 渡した場合のエラーです。
	ErrNoReader = fmt.Errorf("gs:// 参照を解決する reader が設定されていません")
)

// Resolver は参照の種類を見分けて適切な取得経路へ振り分けます。
type Resolver struct {
	httpClient httpkit.ClientInterface
	reader     remoteio.InputReader
}

// Option は Resolver の生成オプションです。
type Option func(*Resolver)

// WithHTTPClient は http(s) URL の取得クライアントを設定します。
// 未設定の場合、http(s) 参照はエラーになります。
func WithHTTPClient(c httpkit.ClientInterface) Option {
	return func(r *Resolver) { r.httpClient = c }
}

// WithReader は gs:// URI の読み取り実装を設定します。
// 未設定の場合、gs:// 参照はエラーになります。
func WithReader(rd remoteio.InputReader) Option {
	return func(r *Resolver) { r.reader = rd }
}

// New は Resolver を生成します。
func New(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch は参照をバイト列へ解決します。
func (r *Resolver) Fetch(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		frame, err := domain.DecodeDataURI(ref)
		if err != nil {
			return nil, err
		}
		return frame.Bytes()

	case strings.HasPrefix(ref, "gs://"):
		if r.reader == nil {
			return nil, ErrNoReader
		}
		rc, err := r.reader.Open(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("gs:// の読み取りに失敗しました: %w", err)
		}
		defer rc.Close()
		return io.ReadAll(rc)

	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if r.httpClient == nil {
			return nil, ErrNoHTTPClient
		}
		if safe, err := isSafeURL(ref); err != nil || !safe {
			return nil, fmt.Errorf("安全ではないURLが指定されました: %w", err)
		}
		return r.httpClient.FetchBytes(ctx, ref)

	default:
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("ファイルの読み取りに失敗しました: %w", err)
		}
		return data, nil
	}
}

// Frame は参照を解決し、MIMEタイプを判定して画像 Frame を構築します。
// 画像ではないデータはエラーになります。
func (r *Resolver) Frame(ctx context.Context, ref string) (domain.Frame, error) {
	data, err := r.Fetch(ctx, ref)
	if err != nil {
		return domain.Frame{}, err
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.Frame{}, fmt.Errorf("画像ではないデータです (detected: %s)", mimeType)
	}
	return domain.FrameFromBytes(mimeType, data), nil
}

// isSafeURL は SSRF 対策として URL を検証します。
// 名前解決されたすべての IP アドレスに対してプライベート IP チェックを行います。
func isSafeURL(rawURL string) (bool, error) {
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return false, fmt.Errorf("URLパース失敗: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false, fmt.Errorf("不許可スキーム: %s", parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		resolvedIPs, err := net.LookupIP(host)
		if err != nil {
			return false, fmt.Errorf("名前解決失敗: %w", err)
		}
		ips = resolvedIPs
	}

	if len(ips) == 0 {
		return false, fmt.Errorf("IPが見つかりません")
	}

	for _, ip := range ips {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return false, fmt.Errorf("制限されたネットワークへのアクセスを検知: %s", ip.String())
		}
	}

	return true, nil
}
