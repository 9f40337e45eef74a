// stylize は画像・動画を生成AIで画風変換するコマンドラインツールです。
//
//	stylize image -i photo.png -p "浮世絵風" -l ukiyoe
//	stylize video -i clip.mp4 -p "浮世絵風" -l ukiyoe --frames 10 --fps 5
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shouni/gemini-style-kit/pkg/assembler"
	"github.com/shouni/gemini-style-kit/pkg/domain"
	"github.com/shouni/gemini-style-kit/pkg/keystore"
	"github.com/shouni/gemini-style-kit/pkg/pipeline"
	"github.com/shouni/gemini-style-kit/pkg/sampler"
	"github.com/shouni/gemini-style-kit/pkg/source"
	"github.com/shouni/gemini-style-kit/pkg/styler"

	"github.com/schollz/progressbar/v3"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	cli "github.com/urfave/cli/v3"
)

const (
	minFrameCount = 1
	maxFrameCount = 60
)

func main() {
	app := &cli.Command{
		Name:  "stylize",
		Usage: "画像・動画をGeminiで画風変換する",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "prompt",
				Aliases: []string{"p"},
				Usage:   "画風プロンプト",
			},
			&cli.StringFlag{
				Name:    "label",
				Aliases: []string{"l"},
				Usage:   "出力ファイル名に入るスタイルラベル",
				Value:   "styled",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "使用する画像生成モデル",
				Value: styler.DefaultModel,
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "Gemini APIキー（未指定ならローカル保存値か GEMINI_API_KEY）",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "出力ディレクトリ",
				Value:   ".",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "image",
				Usage: "1枚の画像を画風変換する",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "入力画像（パス / data URI / URL / gs://）",
						Required: true,
					},
				},
				Action: runImage,
			},
			{
				Name:  "video",
				Usage: "動画からフレームを抽出して画風変換動画を作る",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "入力動画のパス",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "frames",
						Aliases: []string{"n"},
						Usage:   "抽出フレーム数 (1-60)。1 の場合は動画ではなく静止画を出力",
						Value:   10,
					},
					&cli.IntFlag{
						Name:  "fps",
						Usage: "出力動画のフレームレート",
						Value: 5,
					},
				},
				Action: runVideo,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("実行に失敗しました", "error", err)
		os.Exit(1)
	}
}

// buildStyler は資格情報を解決してスタイル変換クライアントを組み立てます。
func buildStyler(ctx context.Context, cmd *cli.Command) (*styler.StyleClient, *keystore.Store, error) {
	store, err := keystore.New()
	if err != nil {
		return nil, nil, err
	}

	apiKey := cmd.String("api-key")
	if apiKey == "" {
		if apiKey, err = store.Load(); err != nil {
			return nil, nil, err
		}
	} else if err := store.Save(apiKey); err != nil {
		slog.Warn("APIキーの保存に失敗しました", "error", err)
	}
	if apiKey == "" {
		return nil, nil, fmt.Errorf("APIキーが見つかりません。--api-key か環境変数 %s で指定してください", keystore.EnvVar)
	}

	model, err := styler.NewGenaiModel(ctx, apiKey)
	if err != nil {
		return nil, nil, err
	}
	client, err := styler.NewStyleClient(model, cmd.String("model"))
	if err != nil {
		return nil, nil, err
	}
	return client, store, nil
}

// newResolver は入力参照のリゾルバを実際の取得クライアントつきで
// 組み立てます。gs:// リーダーは資格情報の無い環境では初期化に
// 失敗することがあるため、その場合は警告だけ出して残りのスキーム
// （パス / data URI / URL）を生かします。
func newResolver(ctx context.Context) *source.Resolver {
	opts := []source.Option{source.WithHTTPClient(httpkit.New(0))}
	if factory, err := gcsfactory.New(ctx); err != nil {
		slog.Warn("gs:// リーダーを初期化できませんでした。gs:// 入力は使えません", "error", err)
	} else if reader, err := factory.InputReader(); err != nil {
		slog.Warn("gs:// リーダーを初期化できませんでした。gs:// 入力は使えません", "error", err)
	} else {
		opts = append(opts, source.WithReader(reader))
	}
	return source.New(opts...)
}

// handleAuthFailure は保存済みの資格情報を破棄して再入力を促します。
func handleAuthFailure(store *keystore.Store, err error) error {
	if !errors.Is(err, styler.ErrAuthentication) {
		return err
	}
	if invErr := store.Invalidate(); invErr != nil {
		slog.Warn("APIキーの破棄に失敗しました", "error", invErr)
	}
	return cli.Exit("APIキーが無効です。保存済みのキーを破棄しました。--api-key で新しいキーを指定してください", 3)
}

func runImage(ctx context.Context, cmd *cli.Command) error {
	prompt := cmd.String("prompt")
	if prompt == "" {
		return cli.Exit("prompt を指定してください", 2)
	}

	client, store, err := buildStyler(ctx, cmd)
	if err != nil {
		return err
	}

	frame, err := newResolver(ctx).Frame(ctx, cmd.String("input"))
	if err != nil {
		return fmt.Errorf("入力画像を読み込めませんでした: %w", err)
	}

	slog.Info("画像をスタイル変換します", "prompt", prompt)
	styled, err := client.Style(ctx, domain.StyleRequest{Frame: frame, Prompt: prompt})
	if err != nil {
		return handleAuthFailure(store, err)
	}

	outPath, err := writeImage(cmd.String("out"), cmd.String("label"), styled)
	if err != nil {
		return err
	}
	fmt.Println(outPath)
	return nil
}

func runVideo(ctx context.Context, cmd *cli.Command) error {
	prompt := cmd.String("prompt")
	if prompt == "" {
		return cli.Exit("prompt を指定してください", 2)
	}
	frameCount := int(cmd.Int("frames"))
	if frameCount < minFrameCount || frameCount > maxFrameCount {
		return cli.Exit(fmt.Sprintf("frames は %d-%d の範囲で指定してください", minFrameCount, maxFrameCount), 2)
	}
	fps := int(cmd.Int("fps"))
	if fps < 1 {
		return cli.Exit("fps は1以上を指定してください", 2)
	}

	client, store, err := buildStyler(ctx, cmd)
	if err != nil {
		return err
	}

	frames, err := sampler.New().Sample(ctx, cmd.String("input"), frameCount)
	if err != nil {
		return fmt.Errorf("フレーム抽出に失敗しました: %w", err)
	}

	batch, err := styler.NewBatchStyler(client)
	if err != nil {
		return err
	}

	outDir := cmd.String("out")
	label := cmd.String("label")

	if len(frames) == 1 {
		outPath, err := styleSingleFrame(ctx, client, frames[0], prompt, outDir, label)
		if err != nil {
			return handleAuthFailure(store, err)
		}
		fmt.Println(outPath)
		return nil
	}

	orch, err := pipeline.New(batch, assembler.New())
	if err != nil {
		return err
	}

	bars := map[pipeline.Pass]*progressbar.ProgressBar{}
	result, err := orch.Run(ctx, frames, pipeline.Request{
		Prompt: prompt,
		Label:  label,
		FPS:    fps,
		OutDir: outDir,
		OnPreview: func(preview domain.FrameSequence) {
			if dir, err := writePreview(outDir, label, preview); err != nil {
				slog.Warn("プレビューの書き出しに失敗しました", "error", err)
			} else {
				slog.Info("低解像度プレビューを書き出しました", "dir", dir)
			}
		},
		OnProgress: func(pass pipeline.Pass, current, total int) {
			bar, ok := bars[pass]
			if !ok {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription(string(pass)),
					progressbar.OptionShowCount(),
				)
				bars[pass] = bar
			}
			_ = bar.Set(current)
		},
	})
	if err != nil {
		if result != nil && result.Preview != nil {
			slog.Info("本番パスは失敗しましたが、プレビューは残っています")
		}
		return handleAuthFailure(store, err)
	}

	if result.Degraded {
		slog.Warn("一部のフレームはスタイルできず、元フレームのまま動画に入っています",
			"succeeded", result.Final.SucceededCount, "attempted", result.Final.AttemptedCount)
	}
	fmt.Println(result.Video.Path)
	return nil
}

// styleSingleFrame は1枚だけのフレーム列を静止画として処理します。
// フレームが1枚では二段階フローにも動画コンテナにも意味がないため、
// 動画の代わりに画像1枚を出力します。
func styleSingleFrame(ctx context.Context, st styler.FrameStyler, frame domain.Frame, prompt, outDir, label string) (string, error) {
	slog.InfoContext(ctx, "フレームが1枚のため動画は組み立てず、静止画1枚を出力します")
	styled, err := st.Style(ctx, domain.StyleRequest{Frame: frame, Prompt: prompt})
	if err != nil {
		return "", err
	}
	return writeImage(outDir, label, styled)
}

// writeImage はスタイル済みFrameを出力ディレクトリへ書き出します。
func writeImage(outDir, label string, frame domain.Frame) (string, error) {
	data, err := frame.Bytes()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("stylized_%s_%s%s", label, time.Now().Format("20060102-150405"), extensionFor(frame.MimeType))
	path := filepath.Join(outDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("出力画像の書き込みに失敗しました: %w", err)
	}
	return path, nil
}

// writePreview は低解像度プレビュー列を連番画像として書き出します。
func writePreview(outDir, label string, frames domain.FrameSequence) (string, error) {
	dir := filepath.Join(outDir, fmt.Sprintf("preview_%s", label))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	for i, frame := range frames {
		data, err := frame.Bytes()
		if err != nil {
			return "", err
		}
		name := fmt.Sprintf("frame_%03d%s", i, extensionFor(frame.MimeType))
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".img"
	}
}
