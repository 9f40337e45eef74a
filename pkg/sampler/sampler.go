// Package sampler は動画リソースから等間隔のタイムスタンプで
// フレームを抽出し、時間順の FrameSequence を構築します。
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/gemini-style-kit/pkg/domain"
)

// DefaultFrameTimeout は1フレームあたりの抽出タイムアウトです。
// シーク完了を無制限に待つとハングするため、上限を設けています。
const DefaultFrameTimeout = 30 * time.Second

// ErrSourceNotReady は動画がシーク可能な状態にない
// （プローブ失敗・尺不明・寸法不明）場合に返されます。
var ErrSourceNotReady = fmt.Errorf("動画ソースが準備できていません")

// VideoInfo はプローブで得られる動画のメタデータです。
type VideoInfo struct {
	Duration float64 // 秒
	Width    int
	Height   int
}

// VideoProber は動画の尺とピクセル寸法を取得します。
type VideoProber interface {
	Probe(path string) (VideoInfo, error)
}

// FrameGrabber は指定タイムスタンプのフレームを1枚、
// 圧縮済み画像バイト列として取り出します。
type FrameGrabber interface {
	Grab(ctx context.Context, path string, at float64) ([]byte, error)
}

// Sampler は動画から frameCount 枚のフレームを等間隔で抽出します。
type Sampler struct {
	prober       VideoProber
	grabber      FrameGrabber
	frameTimeout time.Duration
}

// Option は Sampler の生成オプションです。
type Option func(*Sampler)

// WithProber はプローブ実装を差し替えます（テスト用途）。
func WithProber(p VideoProber) Option {
	return func(s *Sampler) { s.prober = p }
}

// WithGrabber はフレーム取り出し実装を差し替えます（テスト用途）。
func WithGrabber(g FrameGrabber) Option {
	return func(s *Sampler) { s.grabber = g }
}

// WithFrameTimeout は1フレームあたりの抽出タイムアウトを変更します。
func WithFrameTimeout(d time.Duration) Option {
	return func(s *Sampler) { s.frameTimeout = d }
}

// New は ffmpeg ベースの Sampler を生成します。
func New(opts ...Option) *Sampler {
	s := &Sampler{
		prober:       &ffprobeProber{},
		grabber:      &ffmpegGrabber{},
		frameTimeout: DefaultFrameTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SampleTimes は尺 duration（秒）を frameCount 等分したサンプル時刻
// t_i = i * duration / frameCount を返します。
// 結果は厳密に単調増加で、要素数はちょうど frameCount です。
func SampleTimes(duration float64, frameCount int) ([]float64, error) {
	if frameCount < 1 {
		return nil, fmt.Errorf("frameCount は1以上を指定してください: %d", frameCount)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("duration は正の値を指定してください: %g", duration)
	}

	interval := duration / float64(frameCount)
	times := make([]float64, frameCount)
	for i := 0; i < frameCount; i++ {
		times[i] = float64(i) * interval
	}
	return times, nil
}

// Sample は動画をプローブし、等間隔の各時刻でフレームを抽出して
// ちょうど frameCount 枚の FrameSequence を時間順に返します。
func (s *Sampler) Sample(ctx context.Context, path string, frameCount int) (domain.FrameSequence, error) {
	info, err := s.prober.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceNotReady, err)
	}
	if info.Duration <= 0 || info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%w: duration=%g size=%dx%d", ErrSourceNotReady, info.Duration, info.Width, info.Height)
	}

	times, err := SampleTimes(info.Duration, frameCount)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "フレーム抽出を開始します",
		"path", path, "frames", frameCount, "duration_sec", info.Duration)

	frames := make(domain.FrameSequence, 0, frameCount)
	for i, at := range times {
		frameCtx, cancel := context.WithTimeout(ctx, s.frameTimeout)
		data, err := s.grabber.Grab(frameCtx, path, at)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("フレーム %d (t=%.3fs) の抽出に失敗しました: %w", i, at, err)
		}
		frames = append(frames, domain.FrameFromBytes("image/jpeg", data))
	}

	return frames, nil
}
