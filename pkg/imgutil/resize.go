package imgutil

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/nfnt/resize"
)

// DownsampleQuality はプレビュー用縮小フレームのJPEG品質です。
const DownsampleQuality = 80

// Downsample は画像データを線形スケール scale（0 < scale <= 1）で縮小し、
// JPEGとして再エンコードします。scale = 0.25 なら縦横それぞれ 1/4 になります。
func Downsample(data []byte, scale float64) ([]byte, error) {
	if scale <= 0 || scale > 1 {
		return nil, fmt.Errorf("scale は (0, 1] の範囲で指定してください: %g", scale)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("縮小対象画像のデコードに失敗しました: %w", err)
	}

	w := uint(float64(img.Bounds().Dx()) * scale)
	h := uint(float64(img.Bounds().Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	small := resize.Resize(w, h, img, resize.Lanczos3)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, small, &jpeg.Options{Quality: DownsampleQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Dimensions は画像データのピクセル寸法を返します。
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("画像寸法の取得に失敗しました: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
