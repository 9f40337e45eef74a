// Package assembler は順序付きフレーム列を固定フレームレートで
// 動画コンテナへエンコードします。
package assembler

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/shouni/gemini-style-kit/pkg/domain"
)

var (
	// ErrEmptyInput は0枚の列を組み立てようとした場合のエラーです。
	ErrEmptyInput = fmt.Errorf("組み立てるフレームがありません")
	// ErrDecode は先頭フレームがデコードできずキャンバス寸法を
	// 確立できない場合のエラーです。
	ErrDecode = fmt.Errorf("先頭フレームのデコードに失敗しました")
)

// canvasJPEGQuality はエンコーダへ渡す中間フレームのJPEG品質です。
const canvasJPEGQuality = 90

// Encoder は順序どおりに渡されるJPEGフレームをコンテナへ書き込みます。
// frame のバッファは呼び出し側で再利用されるため、実装は Push から
// 戻るまでに内容を消費するか複製する必要があります。
type Encoder interface {
	Push(frame []byte) error
	Close() error
}

// EncoderFactory は選択済みコーデックで出力先に対するエンコーダを開きます。
type EncoderFactory func(ctx context.Context, codec domain.CodecDescriptor, fps int, outPath string) (Encoder, error)

// Output は組み立てられた動画成果物への参照です。
type Output struct {
	Path              string
	FileExtension     string
	ContainerMimeType string
}

// Assembler はフレーム列を1枚ずつキャンバスへ描画してエンコーダに送ります。
type Assembler struct {
	prober     EncoderProber
	newEncoder EncoderFactory
}

// Option は Assembler の生成オプションです。
type Option func(*Assembler)

// WithProber はコーデック対応の検出実装を差し替えます（テスト用途）。
func WithProber(p EncoderProber) Option {
	return func(a *Assembler) { a.prober = p }
}

// WithEncoderFactory はエンコーダ実装を差し替えます（テスト用途）。
func WithEncoderFactory(f EncoderFactory) Option {
	return func(a *Assembler) { a.newEncoder = f }
}

// New は ffmpeg ベースの Assembler を生成します。
func New(opts ...Option) *Assembler {
	a := &Assembler{
		prober:     &ffmpegProber{},
		newEncoder: newFFmpegEncoder,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble はフレーム列を fps で動画にエンコードし、成果物への参照を
// 返します。出力ファイル名はスタイルラベルとタイムスタンプから
// 決定的に組み立てられます。
//
// 先頭フレームがキャンバスのピクセル寸法を確立します。2枚目以降の
// フレームはデコードに失敗しても全体を失敗させず、代わりに黒一色の
// フレームを描画して続行します。
func (a *Assembler) Assemble(ctx context.Context, frames domain.FrameSequence, fps int, outDir, label string) (*Output, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyInput
	}
	if fps < 1 {
		return nil, fmt.Errorf("fps は1以上を指定してください: %d", fps)
	}

	firstRaw, err := frames[0].Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	firstImg, _, err := image.Decode(bytes.NewReader(firstRaw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	width := firstImg.Bounds().Dx()
	height := firstImg.Bounds().Dy()

	codec, err := SelectCodec(a.prober)
	if err != nil {
		return nil, err
	}

	outPath := filepath.Join(outDir, outputFileName(label, time.Now(), codec))

	enc, err := a.newEncoder(ctx, codec, fps, outPath)
	if err != nil {
		return nil, fmt.Errorf("エンコーダを開けませんでした: %w", err)
	}

	slog.InfoContext(ctx, "動画の組み立てを開始します",
		"frames", len(frames), "fps", fps, "codec", codec.EncoderName, "out", outPath)

	// キャンバスは段内で使い回す。処理が厳密に逐次であることが前提。
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer

	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			_ = enc.Close()
			return nil, err
		}

		drawFrame(ctx, canvas, frame, i)

		buf.Reset()
		if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: canvasJPEGQuality}); err != nil {
			_ = enc.Close()
			return nil, fmt.Errorf("フレーム %d のエンコードに失敗しました: %w", i, err)
		}
		if err := enc.Push(buf.Bytes()); err != nil {
			_ = enc.Close()
			return nil, fmt.Errorf("フレーム %d の書き込みに失敗しました: %w", i, err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("エンコーダの終了に失敗しました: %w", err)
	}

	return &Output{
		Path:              outPath,
		FileExtension:     codec.FileExtension,
		ContainerMimeType: codec.ContainerMimeType,
	}, nil
}

// drawFrame はキャンバスを黒で塗り直してからフレーム画像を重ねます。
// デコードできないフレームは黒のまま残します（1枚の不良で動画全体を
// 失敗させない）。
func drawFrame(ctx context.Context, canvas *image.RGBA, frame domain.Frame, index int) {
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)

	raw, err := frame.Bytes()
	if err != nil {
		slog.WarnContext(ctx, "フレームのペイロードが壊れているため黒フレームで代替します", "index", index, "error", err)
		return
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		slog.WarnContext(ctx, "フレームをデコードできないため黒フレームで代替します", "index", index, "error", err)
		return
	}
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Over)
}

// outputFileName はスタイルラベルとタイムスタンプから出力名を決めます。
func outputFileName(label string, at time.Time, codec domain.CodecDescriptor) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "styled"
	}
	label = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':':
			return '-'
		}
		return r
	}, label)
	return fmt.Sprintf("stylized_%s_%s.%s", label, at.Format("20060102-150405"), codec.FileExtension)
}
