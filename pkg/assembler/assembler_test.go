package assembler

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shouni/gemini-style-kit/pkg/domain"
)

// --- Mocks ---

// mockProber は対応エンコーダを固定リストで報告するのだ。
type mockProber struct {
	supported map[string]bool
}

func (m *mockProber) Supports(encoderName string) bool {
	return m.supported[encoderName]
}

// mockEncoder は受け取ったフレームを複製して記録するのだ。
type mockEncoder struct {
	pushed [][]byte
	closed bool
}

func (m *mockEncoder) Push(frame []byte) error {
	m.pushed = append(m.pushed, bytes.Clone(frame))
	return nil
}

func (m *mockEncoder) Close() error {
	m.closed = true
	return nil
}

type recordedOpen struct {
	codec   domain.CodecDescriptor
	fps     int
	outPath string
}

func mockFactory(enc *mockEncoder, rec *recordedOpen) EncoderFactory {
	return func(ctx context.Context, codec domain.CodecDescriptor, fps int, outPath string) (Encoder, error) {
		if rec != nil {
			*rec = recordedOpen{codec: codec, fps: fps, outPath: outPath}
		}
		return enc, nil
	}
}

// --- Helpers ---

func solidFrame(t *testing.T, c color.RGBA, w, h int) domain.Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("failed to encode test frame: %v", err)
	}
	return domain.FrameFromBytes("image/png", buf.Bytes())
}

func decodePushed(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode pushed frame: %v", err)
	}
	return img
}

func allEncoders() *mockProber {
	return &mockProber{supported: map[string]bool{"libvpx-vp9": true, "libvpx": true, "libx264": true}}
}

// --- Tests ---

func TestSelectCodec(t *testing.T) {
	t.Run("video/mp4 しか対応しない環境では mp4 が選ばれるのだ", func(t *testing.T) {
		prober := &mockProber{supported: map[string]bool{"libx264": true}}

		codec, err := SelectCodec(prober)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if codec.ContainerMimeType != "video/mp4" || codec.FileExtension != "mp4" {
			t.Errorf("expected mp4 descriptor, got %+v", codec)
		}
	})

	t.Run("全対応環境では優先順位先頭の vp9/webm が選ばれる", func(t *testing.T) {
		codec, err := SelectCodec(allEncoders())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if codec.EncoderName != "libvpx-vp9" || codec.FileExtension != "webm" {
			t.Errorf("expected vp9/webm, got %+v", codec)
		}
	})

	t.Run("どれも対応しない場合は ErrNoCodecAvailable", func(t *testing.T) {
		if _, err := SelectCodec(&mockProber{}); !errors.Is(err, ErrNoCodecAvailable) {
			t.Errorf("expected ErrNoCodecAvailable, got %v", err)
		}
	})
}

func TestAssembler_Assemble(t *testing.T) {
	ctx := context.Background()
	green := color.RGBA{0, 200, 0, 255}

	t.Run("空の列は ErrEmptyInput なのだ", func(t *testing.T) {
		a := New(WithProber(allEncoders()), WithEncoderFactory(mockFactory(&mockEncoder{}, nil)))
		if _, err := a.Assemble(ctx, nil, 10, t.TempDir(), "test"); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("expected ErrEmptyInput, got %v", err)
		}
	})

	t.Run("先頭フレームが壊れていたら ErrDecode で中断する", func(t *testing.T) {
		frames := domain.FrameSequence{domain.FrameFromBytes("image/png", []byte("not an image"))}
		a := New(WithProber(allEncoders()), WithEncoderFactory(mockFactory(&mockEncoder{}, nil)))
		if _, err := a.Assemble(ctx, frames, 10, t.TempDir(), "test"); !errors.Is(err, ErrDecode) {
			t.Errorf("expected ErrDecode, got %v", err)
		}
	})

	t.Run("5枚中1枚がデコード不能でも5フレーム描画され、1枚は黒になるのだ", func(t *testing.T) {
		frames := domain.FrameSequence{
			solidFrame(t, green, 16, 16),
			solidFrame(t, green, 16, 16),
			domain.FrameFromBytes("image/png", []byte("broken frame")), // index 2
			solidFrame(t, green, 16, 16),
			solidFrame(t, green, 16, 16),
		}

		enc := &mockEncoder{}
		a := New(WithProber(allEncoders()), WithEncoderFactory(mockFactory(enc, nil)))

		out, err := a.Assemble(ctx, frames, 5, t.TempDir(), "test")
		if err != nil {
			t.Fatalf("1枚の不良フレームで全体を失敗させてはいけないのだ: %v", err)
		}
		if len(enc.pushed) != 5 {
			t.Fatalf("expected 5 pushed frames, got %d", len(enc.pushed))
		}
		if !enc.closed {
			t.Error("encoder must be closed after the last frame")
		}
		if out == nil || out.FileExtension != "webm" {
			t.Errorf("unexpected output: %+v", out)
		}

		// index 2 は黒、他は緑のまま
		black := decodePushed(t, enc.pushed[2])
		r, g, b, _ := black.At(8, 8).RGBA()
		if r>>8 > 16 || g>>8 > 16 || b>>8 > 16 {
			t.Errorf("frame 2 should be black, got rgb(%d,%d,%d)", r>>8, g>>8, b>>8)
		}
		ok := decodePushed(t, enc.pushed[1])
		_, g2, _, _ := ok.At(8, 8).RGBA()
		if g2>>8 < 150 {
			t.Errorf("frame 1 should keep its content, got green=%d", g2>>8)
		}
	})

	t.Run("出力寸法は先頭フレームで確立される", func(t *testing.T) {
		frames := domain.FrameSequence{
			solidFrame(t, green, 20, 12),
			solidFrame(t, green, 64, 64), // 寸法違いでもキャンバスは 20x12 のまま
		}

		enc := &mockEncoder{}
		a := New(WithProber(allEncoders()), WithEncoderFactory(mockFactory(enc, nil)))
		if _, err := a.Assemble(ctx, frames, 2, t.TempDir(), "test"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		img := decodePushed(t, enc.pushed[1])
		if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 12 {
			t.Errorf("expected 20x12 canvas, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
		}
	})

	t.Run("コーデック未対応環境では ErrNoCodecAvailable で中断", func(t *testing.T) {
		frames := domain.FrameSequence{solidFrame(t, green, 8, 8)}
		a := New(WithProber(&mockProber{}), WithEncoderFactory(mockFactory(&mockEncoder{}, nil)))
		if _, err := a.Assemble(ctx, frames, 10, t.TempDir(), "test"); !errors.Is(err, ErrNoCodecAvailable) {
			t.Errorf("expected ErrNoCodecAvailable, got %v", err)
		}
	})

	t.Run("出力名はラベルとタイムスタンプから決定的に組み立てられる", func(t *testing.T) {
		rec := &recordedOpen{}
		frames := domain.FrameSequence{solidFrame(t, green, 8, 8)}
		a := New(WithProber(allEncoders()), WithEncoderFactory(mockFactory(&mockEncoder{}, rec)))

		if _, err := a.Assemble(ctx, frames, 10, t.TempDir(), "sumi e"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		base := filepath.Base(rec.outPath)
		if !strings.HasPrefix(base, "stylized_sumi-e_") || !strings.HasSuffix(base, ".webm") {
			t.Errorf("unexpected output name: %s", base)
		}
	})
}

func TestOutputFileName(t *testing.T) {
	at := time.Date(2026, 8, 30, 12, 34, 56, 0, time.UTC)
	codec := domain.CodecDescriptor{FileExtension: "mp4"}

	got := outputFileName("Van Gogh", at, codec)
	want := "stylized_Van-Gogh_20260830-123456.mp4"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	if got := outputFileName("  ", at, codec); got != "stylized_styled_20260830-123456.mp4" {
		t.Errorf("empty label fallback mismatch: %q", got)
	}
}
