package timelapse

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func saveSolid(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	if err := imaging.Save(imaging.New(w, h, c), path); err != nil {
		t.Fatal(err)
	}
}

func nearly(c color.Color, want color.NRGBA) bool {
	got := color.NRGBAModel.Convert(c).(color.NRGBA)
	diff := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	return diff(got.R, want.R) < 40 && diff(got.G, want.G) < 40 && diff(got.B, want.B) < 40
}

func TestMosaicComposer_Compose(t *testing.T) {
	dir := t.TempDir()
	red := filepath.Join(dir, "red.png")
	blue := filepath.Join(dir, "blue.png")
	saveSolid(t, red, 100, 100, color.NRGBA{R: 255, A: 255})
	saveSolid(t, blue, 100, 100, color.NRGBA{B: 255, A: 255})

	mc := NewMosaicComposer(200, 100, 3)
	// カメラ番号順に左から並ぶ
	img, err := mc.Compose(map[int]string{2: blue, 0: red})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if img.Bounds() != image.Rect(0, 0, 200, 100) {
		t.Errorf("Unexpected bounds %v", img.Bounds())
	}
	if !nearly(img.At(50, 50), color.NRGBA{R: 255, A: 255}) {
		t.Errorf("Expected red on the left, got %v", img.At(50, 50))
	}
	if !nearly(img.At(150, 50), color.NRGBA{B: 255, A: 255}) {
		t.Errorf("Expected blue on the right, got %v", img.At(150, 50))
	}

	var buf bytes.Buffer
	if err := mc.Encode(&buf, img); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte{0xFF, 0xD8}) {
		t.Error("Expected JPEG output")
	}
}

func TestMosaicComposer_SkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	red := filepath.Join(dir, "red.png")
	saveSolid(t, red, 40, 20, color.NRGBA{R: 255, A: 255})

	mc := NewMosaicComposer(100, 100, 3)
	if _, err := mc.Compose(map[int]string{1: red, 2: filepath.Join(dir, "missing.jpg")}); err != nil {
		t.Errorf("Expected partial mosaic, got %v", err)
	}

	if _, err := mc.Compose(map[int]string{}); !errors.Is(err, ErrNoImages) {
		t.Errorf("Expected ErrNoImages for empty input, got %v", err)
	}
	if _, err := mc.Compose(map[int]string{1: filepath.Join(dir, "missing.jpg")}); !errors.Is(err, ErrNoImages) {
		t.Errorf("Expected ErrNoImages when nothing is readable, got %v", err)
	}
}

func TestMosaicComposer_CalculateLayout(t *testing.T) {
	mc := NewMosaicComposer(1920, 1080, 3)

	tests := []struct {
		count      int
		cols, rows int
	}{
		{1, 1, 1},
		{2, 2, 1},
		{3, 2, 2},
		{4, 2, 2},
		{5, 4, 2},
		{9, 6, 2},
	}

	for _, tt := range tests {
		layout := mc.calculateLayout(tt.count)
		if layout.Cols != tt.cols || layout.Rows != tt.rows {
			t.Errorf("count %d: expected %dx%d, got %dx%d", tt.count, tt.cols, tt.rows, layout.Cols, layout.Rows)
		}
		if layout.Cols*layout.Rows < tt.count {
			t.Errorf("count %d: layout %dx%d has too few cells", tt.count, layout.Cols, layout.Rows)
		}
	}

	pos := mc.calculatePosition(3, mc.calculateLayout(4))
	if pos != (Position{X: 960, Y: 540, Width: 960, Height: 540}) {
		t.Errorf("Unexpected position %+v", pos)
	}
}
