package assembler

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/shouni/gemini-style-kit/pkg/domain"
)

// ErrNoCodecAvailable は実行環境がどの候補コーデックにも対応していない
// 場合に返されます。
var ErrNoCodecAvailable = fmt.Errorf("利用可能な動画コーデックがありません")

// rankedCodecs は静的な優先順位付きコーデック表です。
// 先頭から順に、環境が対応を報告した最初のものが選ばれます。
var rankedCodecs = []domain.CodecDescriptor{
	{ContainerMimeType: "video/webm;codecs=vp9", FileExtension: "webm", EncoderName: "libvpx-vp9"},
	{ContainerMimeType: "video/webm;codecs=vp8", FileExtension: "webm", EncoderName: "libvpx"},
	{ContainerMimeType: "video/mp4", FileExtension: "mp4", EncoderName: "libx264"},
	{ContainerMimeType: "video/webm", FileExtension: "webm", EncoderName: "libvpx"},
}

// EncoderProber は実行環境が特定のエンコーダに対応しているかを報告します。
type EncoderProber interface {
	Supports(encoderName string) bool
}

// SelectCodec は優先順位表から環境が対応する最初のコーデックを選びます。
func SelectCodec(prober EncoderProber) (domain.CodecDescriptor, error) {
	for _, codec := range rankedCodecs {
		if prober.Supports(codec.EncoderName) {
			return codec, nil
		}
	}
	return domain.CodecDescriptor{}, ErrNoCodecAvailable
}

// ffmpegProber は `ffmpeg -encoders` の出力からエンコーダ一覧を読み取ります。
// 一覧は初回だけ取得してキャッシュします。
type ffmpegProber struct {
	once     sync.Once
	encoders map[string]bool
}

func (p *ffmpegProber) Supports(encoderName string) bool {
	p.once.Do(p.load)
	return p.encoders[encoderName]
}

func (p *ffmpegProber) load() {
	p.encoders = map[string]bool{}

	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return
	}
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").Output()
	if err != nil {
		return
	}

	// 出力行の形式: " V....D libx264              H.264 / ..."
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && strings.HasPrefix(fields[0], "V") {
			p.encoders[fields[1]] = true
		}
	}
}
