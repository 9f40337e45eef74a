// Package pipeline は動画スタイル変換の二段階フロー
// （低解像度プレビュー → 全解像度本番 → 動画組み立て）を調整します。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/gemini-style-kit/pkg/assembler"
	"github.com/shouni/gemini-style-kit/pkg/domain"
	"github.com/shouni/gemini-style-kit/pkg/imgutil"
	"github.com/shouni/gemini-style-kit/pkg/styler"
)

// PreviewScale はプレビューパスの線形縮小率です。縦横それぞれ 1/4 になります。
const PreviewScale = 0.25

// ErrPreviewGenerationFailed はプレビューパスで1枚もスタイル変換が
// 成功しなかった場合のエラーです。実スタイル0枚のプレビューは
// 見せる価値がないため、操作全体の失敗として扱います。
var ErrPreviewGenerationFailed = errors.New("プレビュー生成に失敗しました")

// Pass は進捗通知がどちらのパスのものかを示します。
type Pass string

const (
	PassPreview Pass = "preview"
	PassFinal   Pass = "final"
)

// Batcher は一括スタイル変換の窓口です。*styler.BatchStyler が満たします。
type Batcher interface {
	StyleAll(ctx context.Context, frames domain.FrameSequence, prompt string, onProgress styler.ProgressFunc) (domain.BatchResult, error)
}

// Assembling は動画組み立ての窓口です。*assembler.Assembler が満たします。
type Assembling interface {
	Assemble(ctx context.Context, frames domain.FrameSequence, fps int, outDir, label string) (*assembler.Output, error)
}

// Request は1回のオーケストレーション実行の入力です。
type Request struct {
	Prompt string
	Label  string
	FPS    int
	OutDir string
	// OnPreview はプレビューパス成功直後に低解像度のスタイル済み列を
	// 受け取ります。ループ再生表示など、本番パス completion を待たない
	// 用途のためのフックです。
	OnPreview func(domain.FrameSequence)
	// OnProgress は両パスのフレーム進捗を受け取ります。
	// 呼び出し順はパス内のフレーム順と一致します。
	OnProgress func(pass Pass, current, total int)
}

// Result は実行結果です。本番パスや組み立てが失敗しても、
// 成功済みのプレビューは Preview に残ります。
type Result struct {
	Preview domain.FrameSequence
	Final   domain.BatchResult
	Video   *assembler.Output
	// Degraded は本番パスが部分成功（フォールバック混じり）だった
	// ことを示す警告フラグです。
	Degraded bool
}

// Orchestrator は二段階スタイル変換と動画組み立てを逐次に駆動します。
type Orchestrator struct {
	batcher   Batcher
	assembler Assembling
}

// New は依存関係を注入して Orchestrator を初期化します。
func New(batcher Batcher, asm Assembling) (*Orchestrator, error) {
	if batcher == nil {
		return nil, fmt.Errorf("batcher is required")
	}
	if asm == nil {
		return nil, fmt.Errorf("assembler is required")
	}
	return &Orchestrator{batcher: batcher, assembler: asm}, nil
}

// Run は2枚以上のフレーム列に対して二段階フローを実行します。
//
// パス1: 全フレームを PreviewScale に縮小して一括スタイル変換。
// 成功0枚なら ErrPreviewGenerationFailed で全体を中断し、パス2は
// 開始しません。成功したら OnPreview に低解像度列を渡します。
//
// パス2: 元の全解像度列を同じプロンプトで一括スタイル変換。
// 部分成功は致命ではなく、Degraded フラグを立てたまま組み立てに
// 進みます。認証エラーはどちらのパスでも全体を中断します。
func (o *Orchestrator) Run(ctx context.Context, frames domain.FrameSequence, req Request) (*Result, error) {
	if len(frames) < 2 {
		return nil, fmt.Errorf("二段階フローには2枚以上のフレームが必要です: %d", len(frames))
	}

	small := downsampleAll(ctx, frames, PreviewScale)

	preview, err := o.batcher.StyleAll(ctx, small, req.Prompt, progressFor(req.OnProgress, PassPreview))
	if err != nil {
		return nil, fmt.Errorf("プレビューパスが中断されました: %w", err)
	}
	if preview.SucceededCount == 0 {
		return nil, fmt.Errorf("%w: %d枚中0枚しかスタイルできませんでした", ErrPreviewGenerationFailed, preview.AttemptedCount)
	}

	if req.OnPreview != nil {
		req.OnPreview(preview.Frames)
	}
	result := &Result{Preview: preview.Frames}

	final, err := o.batcher.StyleAll(ctx, frames, req.Prompt, progressFor(req.OnProgress, PassFinal))
	if err != nil {
		// プレビューは成果物として残す
		return result, fmt.Errorf("本番パスが中断されました: %w", err)
	}
	result.Final = final
	if final.SucceededCount < final.AttemptedCount {
		result.Degraded = true
		slog.WarnContext(ctx, "本番パスは部分成功です。フォールバックフレーム混じりで組み立てます",
			"succeeded", final.SucceededCount, "attempted", final.AttemptedCount)
	}

	video, err := o.assembler.Assemble(ctx, final.Frames, req.FPS, req.OutDir, req.Label)
	if err != nil {
		return result, fmt.Errorf("動画の組み立てに失敗しました: %w", err)
	}
	result.Video = video

	return result, nil
}

// downsampleAll は各フレームを縮小します。縮小に失敗したフレームは
// 元のまま使い、列の長さを保存します。
func downsampleAll(ctx context.Context, frames domain.FrameSequence, scale float64) domain.FrameSequence {
	out := make(domain.FrameSequence, 0, len(frames))
	for i, frame := range frames {
		raw, err := frame.Bytes()
		if err == nil {
			var smallData []byte
			if smallData, err = imgutil.Downsample(raw, scale); err == nil {
				out = append(out, domain.FrameFromBytes("image/jpeg", smallData))
				continue
			}
		}
		slog.WarnContext(ctx, "フレームの縮小に失敗したため原寸のまま使います", "index", i, "error", err)
		out = append(out, frame)
	}
	return out
}

func progressFor(fn func(Pass, int, int), pass Pass) styler.ProgressFunc {
	if fn == nil {
		return nil
	}
	return func(current, total int) { fn(pass, current, total) }
}
