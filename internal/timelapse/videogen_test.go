package timelapse

import (
	"strings"
	"testing"

	"camlapse/internal/camera"
)

func TestQualityToCRF(t *testing.T) {
	tests := []struct {
		quality int
		want    string
	}{
		{1, "28.0"},
		{3, "23.0"},
		{5, "18.0"},
		{0, "28.0"},
		{9, "18.0"},
	}

	for _, tt := range tests {
		if got := qualityToCRF(tt.quality); got != tt.want {
			t.Errorf("quality %d: expected %s, got %s", tt.quality, tt.want, got)
		}
	}
}

func TestFFmpegStreamArgs(t *testing.T) {
	args := ffmpegStream("out.mp4", camera.Resolution{Width: 641, Height: 361}, 30, 3).GetArgs()
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-f image2pipe",
		"-i pipe:",
		"-c:v libx264",
		"-crf 23.0",
		"-pix_fmt yuv420p",
		"-s 640x360", // 偶数に切り下げる
		"-framerate 30",
		"-y",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected %q in args: %s", want, joined)
		}
	}

	if !strings.Contains(joined, "out.mp4") {
		t.Errorf("Expected output path in args: %s", joined)
	}
}
