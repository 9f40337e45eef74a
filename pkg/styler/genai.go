package styler

import (
	"context"
	"fmt"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// genaiModel は公式 genai SDK を GenerativeModel として使うための
// アダプターです。go-gemini-client 互換の Response 形に包んで返します。
type genaiModel struct {
	client *genai.Client
}

// NewGenaiModel は APIキーから Gemini API バックエンドのクライアントを
// 構築します。
func NewGenaiModel(ctx context.Context, apiKey string) (GenerativeModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの初期化に失敗しました: %w", err)
	}
	return &genaiModel{client: client}, nil
}

func (m *genaiModel) GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	var cfg *genai.GenerateContentConfig
	if opts.SystemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser),
		}
	}

	resp, err := m.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, err
	}
	return &gemini.Response{RawResponse: resp}, nil
}
