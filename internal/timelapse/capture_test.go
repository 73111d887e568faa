package timelapse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"camlapse/internal/camera"
	"camlapse/internal/preview"
)

// fakeClock は待機した分だけ時刻を進める
// block がtrueなら待機は終わらない
type fakeClock struct {
	mu      sync.Mutex
	current time.Time
	block   bool
	waits   []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)}
}

func (c *fakeClock) clock() clock {
	return clock{now: c.now, after: c.after}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) after(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.waits = append(c.waits, d)
	if c.block {
		return nil
	}

	c.current = c.current.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.current
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.waits))
	copy(out, c.waits)
	return out
}

func smallMode() camera.Resolution {
	return camera.Resolution{Width: 32, Height: 24}
}

func testConfig(dir string) Config {
	return Config{
		CameraIndex: 1,
		Resolution:  camera.Resolution{Width: 1920, Height: 1080},
		Interval:    5 * time.Second,
		Duration:    20 * time.Second,
		OutputDir:   dir,
	}
}

func newTestCapturer(config Config, cams *camera.MockCameras, clk *fakeClock, opts Options) *Capturer {
	tc := NewCapturer(config, cams.Open, opts)
	tc.clock = clk.clock()
	return tc
}

func TestCapturer_RunUntilDeadline(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my_timelapse")
	dev := camera.NewMockDevice(smallMode())
	cams := camera.NewMockCameras(map[int]*camera.MockDevice{1: dev})
	clk := newFakeClock()

	tc := newTestCapturer(testConfig(dir), cams, clk, Options{})
	res, err := tc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 0s, 5s, 10s, 15s の4回
	if res.Frames != 4 {
		t.Errorf("Expected 4 frames, got %d", res.Frames)
	}
	if res.Stopped {
		t.Error("Expected run to complete without stop")
	}

	for i, path := range res.Files {
		want := filepath.Join(dir, Filename(clk.current.Add(-20*time.Second).Add(time.Duration(i)*5*time.Second)))
		if path != want {
			t.Errorf("File %d: expected %s, got %s", i, want, path)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s to exist: %v", path, err)
		}
	}

	if !dev.Closed() {
		t.Error("Expected camera to be released")
	}

	status := tc.Session().Status()
	if status.State != StateCompleted {
		t.Errorf("Expected state %s, got %s", StateCompleted, status.State)
	}
	if status.Frames != 4 || status.PerCamera[1] != 4 {
		t.Errorf("Unexpected session counts: %+v", status)
	}
}

func TestCapturer_QuitKeyStopsEarly(t *testing.T) {
	dev := camera.NewMockDevice(smallMode())
	cams := camera.NewMockCameras(map[int]*camera.MockDevice{1: dev})
	clk := newFakeClock()
	clk.block = true

	keys := make(chan rune, 2)
	keys <- 'x'
	keys <- preview.KeyQuit

	tc := newTestCapturer(testConfig(t.TempDir()), cams, clk, Options{Keys: keys})
	tc.write = func(string, gocv.Mat) bool { return true }

	res, err := tc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Stopped || res.Frames != 1 {
		t.Errorf("Expected stop after 1 frame, got %+v", res)
	}
	if state := tc.Session().Status().State; state != StateStopped {
		t.Errorf("Expected state %s, got %s", StateStopped, state)
	}
	if !dev.Closed() {
		t.Error("Expected camera to be released")
	}
}

func TestCapturer_ContextCancelStops(t *testing.T) {
	dev := camera.NewMockDevice(smallMode())
	cams := camera.NewMockCameras(map[int]*camera.MockDevice{1: dev})
	clk := newFakeClock()
	clk.block = true

	ctx, cancel := context.WithCancel(context.Background())
	tc := newTestCapturer(testConfig(t.TempDir()), cams, clk, Options{})
	tc.write = func(string, gocv.Mat) bool {
		cancel()
		return true
	}

	res, err := tc.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Stopped || res.Frames != 1 {
		t.Errorf("Expected stop after 1 frame, got %+v", res)
	}
}

// previewDisplay はWaitKeyで決められたキーを順に返す
type previewDisplay struct {
	keys    []int
	showErr error
	shown   int
	waits   []int
	closed  bool
}

func (d *previewDisplay) IMShow(_ gocv.Mat) error {
	if d.showErr != nil {
		return d.showErr
	}
	d.shown++
	return nil
}

func (d *previewDisplay) WaitKey(ms int) int {
	d.waits = append(d.waits, ms)
	if len(d.keys) == 0 {
		return -1
	}
	k := d.keys[0]
	d.keys = d.keys[1:]
	return k
}

func (d *previewDisplay) Close() error {
	d.closed = true
	return nil
}

func TestCapturer_PreviewQuit(t *testing.T) {
	dev := camera.NewMockDevice(smallMode())
	cams := camera.NewMockCameras(map[int]*camera.MockDevice{1: dev})
	clk := newFakeClock()

	display := &previewDisplay{keys: []int{-1, -1, preview.KeyQuit}}
	var title string
	opts := Options{Display: func(t string) preview.Display {
		title = t
		return display
	}}

	config := testConfig(t.TempDir())
	config.Interval = 250 * time.Millisecond

	tc := newTestCapturer(config, cams, clk, opts)
	tc.write = func(string, gocv.Mat) bool { return true }

	res, err := tc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if title != "Time-lapse Preview" {
		t.Errorf("Unexpected window title %q", title)
	}
	if !res.Stopped || res.Frames != 1 {
		t.Errorf("Expected stop after 1 frame, got %+v", res)
	}
	if display.shown != 1 {
		t.Errorf("Expected 1 shown frame, got %d", display.shown)
	}
	// 250ms を 100ms, 100ms, 50ms に分けて待つ
	want := []int{100, 100, 50}
	if len(display.waits) != len(want) {
		t.Fatalf("Expected waits %v, got %v", want, display.waits)
	}
	for i := range want {
		if display.waits[i] != want[i] {
			t.Errorf("Expected waits %v, got %v", want, display.waits)
			break
		}
	}
	if !display.closed {
		t.Error("Expected preview window to be closed")
	}
}

func TestCapturer_PreviewShowFailure(t *testing.T) {
	dev := camera.NewMockDevice(smallMode())
	cams := camera.NewMockCameras(map[int]*camera.MockDevice{1: dev})

	showErr := errors.New("no display")
	display := &previewDisplay{showErr: showErr}
	opts := Options{Display: func(string) preview.Display { return display }}

	tc := newTestCapturer(testConfig(t.TempDir()), cams, newFakeClock(), opts)
	tc.write = func(string, gocv.Mat) bool { return true }

	res, err := tc.Run(context.Background())
	if !errors.Is(err, showErr) {
		t.Fatalf("Expected display error, got %v", err)
	}
	if res.Frames != 1 || res.Stopped {
		t.Errorf("Expected 1 saved frame before the failure, got %+v", res)
	}
	if state := tc.Session().Status().State; state != StateError {
		t.Errorf("Expected error state, got %s", state)
	}
	if !dev.Closed() || !display.closed {
		t.Error("Expected camera and window to be released")
	}
}

func TestCapturer_ReadFailure(t *testing.T) {
	dev := camera.NewMockDevice(smallMode())
	dev.ReadLimit = 2
	cams := camera.NewMockCameras(map[int]*camera.MockDevice{1: dev})

	tc := newTestCapturer(testConfig(t.TempDir()), cams, newFakeClock(), Options{})
	tc.write = func(string, gocv.Mat) bool { return true }

	res, err := tc.Run(context.Background())
	if !errors.Is(err, ErrFrameRead) {
		t.Fatalf("Expected ErrFrameRead, got %v", err)
	}
	if res.Frames != 2 {
		t.Errorf("Expected 2 frames before failure, got %d", res.Frames)
	}
	if state := tc.Session().Status().State; state != StateError {
		t.Errorf("Expected state %s, got %s", StateError, state)
	}
	if !dev.Closed() {
		t.Error("Expected camera to be released")
	}
}

func TestCapturer_OpenFailure(t *testing.T) {
	cams := camera.NewMockCameras(map[int]*camera.MockDevice{})
	dir := filepath.Join(t.TempDir(), "out")

	tc := newTestCapturer(testConfig(dir), cams, newFakeClock(), Options{})
	res, err := tc.Run(context.Background())
	if err == nil {
		t.Fatal("Expected error for missing camera")
	}
	if res.Frames != 0 {
		t.Errorf("Expected no frames, got %d", res.Frames)
	}
	if state := tc.Session().Status().State; state != StateError {
		t.Errorf("Expected state %s, got %s", StateError, state)
	}
	// 出力ディレクトリはカメラを開く前に作られる
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Expected output directory to be created: %v", err)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	created, err := ensureDir(dir)
	if err != nil || !created {
		t.Fatalf("Expected directory to be created, got created=%v err=%v", created, err)
	}

	created, err = ensureDir(dir)
	if err != nil || created {
		t.Errorf("Expected existing directory to be reused, got created=%v err=%v", created, err)
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ensureDir(file); err == nil {
		t.Error("Expected error when path is a file")
	}
}
