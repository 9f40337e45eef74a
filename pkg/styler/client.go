package styler

import (
	"context"
	"fmt"

	"github.com/shouni/gemini-style-kit/pkg/domain"
	"github.com/shouni/gemini-style-kit/pkg/imgutil"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

const (
	// UseImageCompression が有効な場合、送信前にフレームをJPEGへ
	// 圧縮して転送量を抑えます。圧縮できないデータはそのまま送ります。
	UseImageCompression     = true
	ImageCompressionQuality = 85
)

// StyleClient は1フレームと画風プロンプトを生成APIへ送り、
// スタイル済みの新しい Frame を返すクライアントです。
// リトライは行わず、失敗の分類だけを呼び出し側へ返します。
type StyleClient struct {
	aiClient GenerativeModel
	model    string
}

// NewStyleClient は依存関係を注入して StyleClient を初期化します。
// model が空の場合は DefaultModel を使います。
func NewStyleClient(aiClient GenerativeModel, model string) (*StyleClient, error) {
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient (GenerativeModel) is required")
	}
	if model == "" {
		model = DefaultModel
	}
	return &StyleClient{aiClient: aiClient, model: model}, nil
}

// Style はフレームのペイロード・MIMEタイプ・プロンプトを送信し、
// 応答の最初のインライン画像から新しい Frame を構築して返します。
//   - 画像パーツなし       → ErrNoImageReturned（回復可能）
//   - 資格情報エラー       → ErrAuthentication（致命、バッチ中断）
//   - その他の通信エラー   → *TransferError（回復可能）
func (c *StyleClient) Style(ctx context.Context, req domain.StyleRequest) (domain.Frame, error) {
	raw, err := req.Frame.Bytes()
	if err != nil {
		return domain.Frame{}, err
	}

	mimeType := req.Frame.MimeType
	if UseImageCompression && mimeType != "image/jpeg" {
		if compressed, err := imgutil.CompressToJPEG(raw, ImageCompressionQuality); err == nil {
			raw = compressed
			mimeType = "image/jpeg"
		}
	}

	parts := []*genai.Part{
		{Text: req.Prompt},
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: raw}},
	}

	resp, err := c.aiClient.GenerateWithParts(ctx, c.model, parts, gemini.GenerateOptions{})
	if err != nil {
		return domain.Frame{}, classify(err)
	}

	mimeType, data, err := extractImage(resp)
	if err != nil {
		return domain.Frame{}, err
	}
	return domain.FrameFromBytes(mimeType, data), nil
}

// extractImage は応答の最初の候補からインライン画像パーツを探します。
func extractImage(resp *gemini.Response) (string, []byte, error) {
	if resp == nil || resp.RawResponse == nil || len(resp.RawResponse.Candidates) == 0 {
		return "", nil, &TransferError{Err: fmt.Errorf("Geminiからの有効な応答がありませんでした")}
	}

	candidate := resp.RawResponse.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.MIMEType, part.InlineData.Data, nil
			}
		}
	}

	// 安全フィルター等で止まった場合も画像なしとして扱う
	return "", nil, fmt.Errorf("%w (FinishReason: %s)", ErrNoImageReturned, candidate.FinishReason)
}
