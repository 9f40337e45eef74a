package styler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/gemini-style-kit/pkg/domain"
)

// BatchStyler は順序付きフレーム列を1枚ずつ StyleClient に通します。
// 外部APIがレート制限されていること、進捗通知の順序をフレーム順と
// 一致させることから、並列化はせず厳密に逐次実行します。
type BatchStyler struct {
	styler FrameStyler
}

// NewBatchStyler は FrameStyler を注入して BatchStyler を初期化します。
func NewBatchStyler(s FrameStyler) (*BatchStyler, error) {
	if s == nil {
		return nil, fmt.Errorf("styler (FrameStyler) is required")
	}
	return &BatchStyler{styler: s}, nil
}

// StyleAll は入力列をフレーム順に処理し、同じ長さの結果列を返します。
// フレーム i の処理は次の順序です。
//  1. onProgress(i+1, total) を通知する
//  2. スタイル変換を呼ぶ
//  3. 成功なら位置 i にスタイル済みフレームを置く
//  4. 回復可能な失敗なら位置 i に元フレームを置く（静かなフォールバック、
//     列の長さは保存され、忠実度だけが落ちる）
//  5. ErrAuthentication なら即中断し、残りのフレームは処理しない
//
// 非致命パスでは len(result.Frames) == len(frames) が常に成り立ちます。
// SucceededCount は実際にスタイル結果へ置換できたフレーム数です。
func (b *BatchStyler) StyleAll(ctx context.Context, frames domain.FrameSequence, prompt string, onProgress ProgressFunc) (domain.BatchResult, error) {
	total := len(frames)
	out := make(domain.FrameSequence, 0, total)
	succeeded := 0

	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return domain.BatchResult{Frames: out, SucceededCount: succeeded, AttemptedCount: len(out)}, err
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}

		styled, err := b.styler.Style(ctx, domain.StyleRequest{Frame: frame, Prompt: prompt})
		switch {
		case err == nil:
			out = append(out, styled)
			succeeded++
		case errors.Is(err, ErrAuthentication):
			// 致命: 以降のフレームには手を付けずに伝播する
			return domain.BatchResult{Frames: out, SucceededCount: succeeded, AttemptedCount: len(out)}, err
		case ctx.Err() != nil:
			return domain.BatchResult{Frames: out, SucceededCount: succeeded, AttemptedCount: len(out)}, ctx.Err()
		default:
			// 回復可能: 元フレームで穴埋めして続行する
			slog.WarnContext(ctx, "フレームのスタイル変換に失敗したため元フレームで継続します",
				"index", i, "error", err)
			out = append(out, frame)
		}
	}

	return domain.BatchResult{Frames: out, SucceededCount: succeeded, AttemptedCount: len(out)}, nil
}
