package timelapse

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"camlapse/internal/camera"
)

const (
	// PreferredCodec は動画書き出しで最初に試すfourcc（H.264）
	PreferredCodec = "avc1"
	// FallbackCodec は PreferredCodec が使えない場合のfourcc
	FallbackCodec = "mp4v"
)

// FrameWriter は動画ファイルにフレームを書き出す
type FrameWriter interface {
	Write(frame gocv.Mat) error
	Close() error
}

// WriterFactory は出力先・フレームサイズ・fpsからFrameWriterを開く
type WriterFactory func(path string, size camera.Resolution, fps float64) (FrameWriter, error)

// OpenCVWriter はOpenCVのVideoWriterで書き出す
type OpenCVWriter struct {
	vw    *gocv.VideoWriter
	codec string
}

// NewOpenCVWriter は PreferredCodec で開き、開けなければ FallbackCodec で開き直す
func NewOpenCVWriter(path string, size camera.Resolution, fps float64) (FrameWriter, error) {
	var lastErr error
	for _, codec := range []string{PreferredCodec, FallbackCodec} {
		vw, err := gocv.VideoWriterFile(path, codec, fps, size.Width, size.Height, true)
		if err == nil && vw.IsOpened() {
			log.Info().Str("codec", codec).Str("path", path).Msg("動画ファイルを開きました")
			return &OpenCVWriter{vw: vw, codec: codec}, nil
		}
		if vw != nil {
			_ = vw.Close()
		}
		if err == nil {
			err = fmt.Errorf("コーデック %s で開けません", codec)
		}
		log.Debug().Err(err).Str("codec", codec).Msg("コーデックを切り替えます")
		lastErr = err
	}

	return nil, fmt.Errorf("動画ファイルを開けませんでした (%s): %w", path, lastErr)
}

// Codec は実際に使われたfourcc
func (w *OpenCVWriter) Codec() string {
	return w.codec
}

// Write はフレームを1枚書き出す
func (w *OpenCVWriter) Write(frame gocv.Mat) error {
	return w.vw.Write(frame)
}

// Close は動画ファイルを閉じる
func (w *OpenCVWriter) Close() error {
	return w.vw.Close()
}
