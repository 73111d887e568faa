package timelapse

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestFilename(t *testing.T) {
	at := time.Date(2024, 3, 9, 7, 5, 1, 0, time.Local)
	if got := Filename(at); got != "img_20240309_070501.jpg" {
		t.Errorf("Unexpected filename %q", got)
	}
}

func TestCameraDir(t *testing.T) {
	if got := CameraDir("plant_growth_hub", 2); got != filepath.Join("plant_growth_hub", "cam_2") {
		t.Errorf("Unexpected camera dir %q", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 59, 58, 0, time.Local)

	got, err := ParseTimestamp(filepath.Join("dir", Filename(at)))
	if err != nil {
		t.Fatalf("ParseTimestamp failed: %v", err)
	}
	if !got.Equal(at) {
		t.Errorf("Expected %v, got %v", at, got)
	}

	for _, name := range []string{"photo.jpg", "img_2024.jpg", "img_20241301_000000.jpg"} {
		if _, err := ParseTimestamp(name); !errors.Is(err, ErrNoTimestamp) {
			t.Errorf("%s: expected ErrNoTimestamp, got %v", name, err)
		}
	}
}

func TestCaptionFor(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{"valid", "img_20240501_120005.jpg", "2024-05-01 12:00:05"},
		{"with dir", filepath.Join("my_timelapse", "img_20240501_000000.jpg"), "2024-05-01 00:00:00"},
		{"png", "img_20240501_120005.png", "2024-05-01 12:00:05"},
		{"no prefix", "20240501_120005.jpg", PlaceholderCaption},
		{"bad date", "img_notadate.jpg", PlaceholderCaption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CaptionFor(tt.file); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

// ファイル名から読み取った時刻で作り直すと同じファイル名になる
func TestFilenameParseTimestamp(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	parsed, err := ParseTimestamp(Filename(at))
	if err != nil {
		t.Fatal(err)
	}
	if Filename(parsed) != Filename(at) {
		t.Errorf("Expected %s, got %s", Filename(at), Filename(parsed))
	}
}
