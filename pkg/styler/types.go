package styler

import (
	"context"

	"github.com/shouni/gemini-style-kit/pkg/domain"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// DefaultModel はスタイル変換に使う既定の画像生成モデルです。
const DefaultModel = "gemini-2.5-flash-image"

// GenerativeModel は通信クライアントの窓口です。
// go-gemini-client のクライアントをそのまま差し込めます。
type GenerativeModel interface {
	GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error)
}

// FrameStyler は1フレームのスタイル変換を抽象化します。
// BatchStyler はこのインターフェース越しに StyleClient を駆動します。
type FrameStyler interface {
	Style(ctx context.Context, req domain.StyleRequest) (domain.Frame, error)
}

// ProgressFunc は処理中フレームの進捗通知です。
// current は 1 起点で、呼び出しは必ずフレーム順になります。
type ProgressFunc func(current, total int)
