package styler

import (
	"context"

	"github.com/shouni/gemini-style-kit/pkg/domain"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// --- Mocks ---

type mockAIClient struct {
	generateWithPartsFunc func(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error)
}

func (m *mockAIClient) GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
	if m.generateWithPartsFunc != nil {
		return m.generateWithPartsFunc(ctx, model, parts, opts)
	}
	return imageResponse("image/png", []byte("fake")), nil
}

// imageResponse はインライン画像1枚入りの応答を組み立てるヘルパーなのだ。
func imageResponse(mimeType string, data []byte) *gemini.Response {
	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{
					Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}},
				},
			}},
		},
	}
}

// textOnlyResponse は画像パーツを含まない応答なのだ。
func textOnlyResponse(text string) *gemini.Response {
	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: text}},
				},
			}},
		},
	}
}

// mockStyler は BatchStyler 用のフレーム単位モックなのだ。
// styleFunc はフレームの添字を受け取って挙動を切り替えられる。
type mockStyler struct {
	calls     int
	styleFunc func(index int, req domain.StyleRequest) (domain.Frame, error)
}

func (m *mockStyler) Style(ctx context.Context, req domain.StyleRequest) (domain.Frame, error) {
	index := m.calls
	m.calls++
	if m.styleFunc != nil {
		return m.styleFunc(index, req)
	}
	return domain.FrameFromBytes("image/png", []byte("styled")), nil
}
