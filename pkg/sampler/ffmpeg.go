package sampler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// grabQScale は抽出フレームのJPEG品質（ffmpeg qscale:v 2-31、小さいほど高品質）。
// おおよそ品質0.8相当です。
const grabQScale = 4

// ffprobeProber は ffprobe のJSON出力から尺と寸法を読み取ります。
type ffprobeProber struct{}

type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p *ffprobeProber) Probe(path string) (VideoInfo, error) {
	raw, err := ffmpeg.Probe(path)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe実行に失敗しました: %w", err)
	}

	var result probeResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe出力の解析に失敗しました: %w", err)
	}

	info := VideoInfo{}
	if result.Format.Duration != "" {
		if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	for _, st := range result.Streams {
		if st.CodecType == "video" {
			info.Width = st.Width
			info.Height = st.Height
			break
		}
	}
	return info, nil
}

// ffmpegGrabber は入力シーク（-ss）で指定時刻に飛び、
// 1フレームだけを mjpeg としてパイプに書き出します。
type ffmpegGrabber struct{}

func (g *ffmpegGrabber) Grab(ctx context.Context, path string, at float64) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	cmd := ffmpeg.Input(path, ffmpeg.KwArgs{"ss": at}).
		Output("pipe:", ffmpeg.KwArgs{
			"vframes":  1,
			"format":   "image2",
			"vcodec":   "mjpeg",
			"qscale:v": grabQScale,
		}).
		WithOutput(buf, io.Discard).
		Silent(true).
		Compile()

	if err := runUnderContext(ctx, cmd); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("t=%.3fs でフレームが得られませんでした", at)
	}
	return buf.Bytes(), nil
}

// runUnderContext はコンパイル済みコマンドをコンテキストの監視下で実行します。
// タイムアウトやキャンセルでプロセスを止め、シーク待ちのハングを防ぎます。
func runUnderContext(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg起動に失敗しました: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("ffmpeg実行に失敗しました: %w", err)
		}
		return nil
	}
}
