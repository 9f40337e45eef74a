package assembler

import (
	"context"
	"fmt"
	"io"

	"github.com/shouni/gemini-style-kit/pkg/domain"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ffmpegEncoder は image2pipe 経由でJPEGフレームを ffmpeg に流し込みます。
// 入力側の -framerate がコンテナ上のフレーム時刻を決めるため、
// 書き込みループでの実時間ウェイトは不要です。
type ffmpegEncoder struct {
	pw   *io.PipeWriter
	done chan error
	stop chan struct{}
}

// newFFmpegEncoder は既定の EncoderFactory です。
func newFFmpegEncoder(ctx context.Context, codec domain.CodecDescriptor, fps int, outPath string) (Encoder, error) {
	pr, pw := io.Pipe()

	cmd := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"format":    "image2pipe",
		"framerate": fps,
	}).
		Output(outPath, ffmpeg.KwArgs{
			"c:v":     codec.EncoderName,
			"pix_fmt": "yuv420p",
		}).
		OverWriteOutput().
		WithInput(pr).
		Silent(true).
		Compile()

	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("ffmpeg起動に失敗しました: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	// コンテキスト打ち切りでパイプを壊してプロセスを止め、
	// 書き込み側のブロックを解く
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			pw.CloseWithError(ctx.Err())
			_ = cmd.Process.Kill()
		case <-stop:
		}
	}()

	return &ffmpegEncoder{pw: pw, done: done, stop: stop}, nil
}

func (e *ffmpegEncoder) Push(frame []byte) error {
	if _, err := e.pw.Write(frame); err != nil {
		return fmt.Errorf("ffmpegへのフレーム書き込みに失敗しました: %w", err)
	}
	return nil
}

func (e *ffmpegEncoder) Close() error {
	_ = e.pw.Close()
	err := <-e.done
	close(e.stop)
	if err != nil {
		return fmt.Errorf("ffmpegエンコードに失敗しました: %w", err)
	}
	return nil
}
