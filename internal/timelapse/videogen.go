package timelapse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"gocv.io/x/gocv"

	"camlapse/internal/camera"
)

// FFmpegWriter はフレームをJPEGにしてFFmpegへパイプで渡し、H.264で書き出す
type FFmpegWriter struct {
	pipe   *io.PipeWriter
	done   chan error
	stderr *bytes.Buffer
}

// NewFFmpegWriterFactory は品質(1-5)を固定したFFmpeg用のWriterFactoryを返す
func NewFFmpegWriterFactory(quality int) WriterFactory {
	return func(path string, size camera.Resolution, fps float64) (FrameWriter, error) {
		w, err := NewFFmpegWriter(path, size, fps, quality)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

// NewFFmpegWriter はFFmpegを起動して書き出しの準備をする
func NewFFmpegWriter(path string, size camera.Resolution, fps float64, quality int) (*FFmpegWriter, error) {
	if err := ValidateFFmpeg(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	w := &FFmpegWriter{
		pipe:   pw,
		done:   make(chan error, 1),
		stderr: &bytes.Buffer{},
	}

	stream := ffmpegStream(path, size, fps, quality).
		WithInput(pr).
		WithErrorOutput(w.stderr)

	go func() {
		err := stream.Run()
		// FFmpegが終了したら書き込み側を止める
		if err != nil {
			_ = pr.CloseWithError(err)
		} else {
			_ = pr.Close()
		}
		w.done <- err
	}()

	return w, nil
}

// ffmpegStream は標準入力のJPEG列をH.264のMP4にするコマンドを組み立てる
func ffmpegStream(path string, size camera.Resolution, fps float64, quality int) *ffmpeg.Stream {
	// yuv420p は幅と高さが偶数である必要がある
	even := camera.Resolution{Width: size.Width &^ 1, Height: size.Height &^ 1}
	rate := strconv.FormatFloat(fps, 'f', -1, 64)

	return ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":         "image2pipe",
		"c:v":       "mjpeg",
		"framerate": rate,
	}).Output(path, ffmpeg.KwArgs{
		"c:v":     "libx264",
		"preset":  "fast",
		"crf":     qualityToCRF(quality),
		"pix_fmt": "yuv420p",
		"s":       even.String(),
		"r":       rate,
	}).OverWriteOutput()
}

// Write はフレームをJPEGにエンコードしてFFmpegに送る
func (w *FFmpegWriter) Write(frame gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return fmt.Errorf("JPEG エンコードに失敗: %w", err)
	}
	defer buf.Close()

	if _, err := w.pipe.Write(buf.GetBytes()); err != nil {
		return fmt.Errorf("FFmpegへの書き込みに失敗: %w", err)
	}
	return nil
}

// Close は入力を閉じてFFmpegの終了を待つ
func (w *FFmpegWriter) Close() error {
	_ = w.pipe.Close()
	if err := <-w.done; err != nil {
		return fmt.Errorf("動画作成に失敗: %w (output: %s)", err, strings.TrimSpace(w.stderr.String()))
	}
	return nil
}

// qualityToCRF は品質設定をFFmpegのCRF値に変換する
func qualityToCRF(quality int) string {
	// 品質1(低) -> CRF28, 品質5(高) -> CRF18
	crf := 28.0 - float64(quality-1)*2.5
	if crf < 18 {
		crf = 18
	}
	if crf > 28 {
		crf = 28
	}
	return strconv.FormatFloat(crf, 'f', 1, 64)
}

// ValidateFFmpeg はFFmpegが利用可能かチェックする
func ValidateFFmpeg() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("FFmpegが見つかりません。インストールしてください: %w", err)
	}

	return nil
}
