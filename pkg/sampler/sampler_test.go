package sampler

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// --- Mocks ---

type mockProber struct {
	info VideoInfo
	err  error
}

func (m *mockProber) Probe(path string) (VideoInfo, error) {
	return m.info, m.err
}

type mockGrabber struct {
	grabbed []float64
	err     error
}

func (m *mockGrabber) Grab(ctx context.Context, path string, at float64) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.grabbed = append(m.grabbed, at)
	return []byte(fmt.Sprintf("jpeg-at-%.3f", at)), nil
}

// --- Tests ---

func TestSampleTimes(t *testing.T) {
	t.Run("duration=10, frameCount=5 なら [0,2,4,6,8] になるのだ", func(t *testing.T) {
		times, err := SampleTimes(10, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []float64{0, 2, 4, 6, 8}
		if len(times) != len(want) {
			t.Fatalf("expected %d times, got %d", len(want), len(times))
		}
		for i := range want {
			if times[i] != want[i] {
				t.Errorf("t_%d: expected %g, got %g", i, want[i], times[i])
			}
		}
	})

	t.Run("サンプル時刻は厳密に単調増加で要素数はちょうどframeCount", func(t *testing.T) {
		for _, tc := range []struct {
			duration float64
			count    int
		}{
			{1, 1}, {7.5, 3}, {0.04, 60}, {3600, 12},
		} {
			times, err := SampleTimes(tc.duration, tc.count)
			if err != nil {
				t.Fatalf("duration=%g count=%d: %v", tc.duration, tc.count, err)
			}
			if len(times) != tc.count {
				t.Errorf("duration=%g: expected %d times, got %d", tc.duration, tc.count, len(times))
			}
			for i := 1; i < len(times); i++ {
				if times[i] <= times[i-1] {
					t.Errorf("duration=%g: t_%d=%g は t_%d=%g より大きくなければならないのだ",
						tc.duration, i, times[i], i-1, times[i-1])
				}
			}
		}
	})

	t.Run("不正な入力はエラーを返す", func(t *testing.T) {
		if _, err := SampleTimes(10, 0); err == nil {
			t.Error("frameCount=0 should fail")
		}
		if _, err := SampleTimes(0, 5); err == nil {
			t.Error("duration=0 should fail")
		}
		if _, err := SampleTimes(-1, 5); err == nil {
			t.Error("negative duration should fail")
		}
	})
}

func TestSampler_Sample(t *testing.T) {
	ctx := context.Background()

	t.Run("frameCount枚のフレームが時間順に得られるのだ", func(t *testing.T) {
		grabber := &mockGrabber{}
		s := New(
			WithProber(&mockProber{info: VideoInfo{Duration: 10, Width: 640, Height: 480}}),
			WithGrabber(grabber),
		)

		frames, err := s.Sample(ctx, "movie.mp4", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(frames) != 5 {
			t.Fatalf("expected 5 frames, got %d", len(frames))
		}
		// 抽出順 = 時間順
		want := []float64{0, 2, 4, 6, 8}
		for i, at := range grabber.grabbed {
			if at != want[i] {
				t.Errorf("grab %d: expected t=%g, got t=%g", i, want[i], at)
			}
		}
		for i, f := range frames {
			if f.MimeType != "image/jpeg" {
				t.Errorf("frame %d: expected image/jpeg, got %s", i, f.MimeType)
			}
			if f.URI == "" {
				t.Errorf("frame %d: URI must be derivable from payload+mime", i)
			}
		}
	})

	t.Run("プローブに失敗したら ErrSourceNotReady を返す", func(t *testing.T) {
		s := New(
			WithProber(&mockProber{err: errors.New("no such file")}),
			WithGrabber(&mockGrabber{}),
		)

		_, err := s.Sample(ctx, "missing.mp4", 3)
		if !errors.Is(err, ErrSourceNotReady) {
			t.Errorf("expected ErrSourceNotReady, got %v", err)
		}
	})

	t.Run("尺や寸法が取れない動画も ErrSourceNotReady なのだ", func(t *testing.T) {
		for _, info := range []VideoInfo{
			{Duration: 0, Width: 640, Height: 480},
			{Duration: 10, Width: 0, Height: 480},
			{Duration: 10, Width: 640, Height: 0},
		} {
			s := New(WithProber(&mockProber{info: info}), WithGrabber(&mockGrabber{}))
			if _, err := s.Sample(ctx, "movie.mp4", 3); !errors.Is(err, ErrSourceNotReady) {
				t.Errorf("info=%+v: expected ErrSourceNotReady, got %v", info, err)
			}
		}
	})

	t.Run("抽出の失敗はどのフレームで起きたかを伝えて中断する", func(t *testing.T) {
		s := New(
			WithProber(&mockProber{info: VideoInfo{Duration: 10, Width: 640, Height: 480}}),
			WithGrabber(&mockGrabber{err: errors.New("broken pipe")}),
		)

		_, err := s.Sample(ctx, "movie.mp4", 3)
		if err == nil {
			t.Fatal("expected error when grabber fails")
		}
	})
}
