package timelapse

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"camlapse/internal/annotate"
	"camlapse/internal/camera"
)

// Backend は動画の書き出し方法
type Backend string

// Backend の定数定義
const (
	BackendOpenCV Backend = "opencv" // OpenCVのVideoWriter
	BackendFFmpeg Backend = "ffmpeg" // FFmpegへパイプで渡す
)

// AssembleOptions は画像から動画を作る設定
type AssembleOptions struct {
	ImageDir     string  `yaml:"image_dir"`     // 画像のあるディレクトリ
	Output       string  `yaml:"output"`        // 出力する動画ファイル
	FPS          float64 `yaml:"fps"`           // フレームレート
	ScalePercent int     `yaml:"scale_percent"` // 100で元の大きさ、50で縦横半分
	Overlay      bool    `yaml:"overlay"`       // 撮影時刻を重ねるか
	Extension    string  `yaml:"extension"`     // 対象にする画像の拡張子
	Backend      Backend `yaml:"backend"`
	Quality      int     `yaml:"quality"` // FFmpeg使用時の品質 (1-5)
}

// AssembleResult は動画作成の結果
type AssembleResult struct {
	Frames  int               // 書き出したフレーム数
	Skipped int               // 読めずに飛ばした画像の数
	Size    camera.Resolution // 動画のフレームサイズ
	Output  string
}

// DefaultAssembleOptions はデフォルトの動画作成設定を返す
func DefaultAssembleOptions() AssembleOptions {
	return AssembleOptions{
		ImageDir:     "my_timelapse",
		Output:       "timelapse.mp4",
		FPS:          30,
		ScalePercent: 100,
		Overlay:      true,
		Extension:    ImageExt,
		Backend:      BackendOpenCV,
		Quality:      3,
	}
}

// Assembler はディレクトリ内の画像を名前順に並べて動画にする
type Assembler struct {
	opts      AssembleOptions
	newWriter WriterFactory
}

// NewAssembler は新しいAssemblerを作成する
func NewAssembler(opts AssembleOptions) *Assembler {
	newWriter := NewOpenCVWriter
	if opts.Backend == BackendFFmpeg {
		newWriter = NewFFmpegWriterFactory(opts.Quality)
	}

	return &Assembler{
		opts:      opts,
		newWriter: newWriter,
	}
}

// Run は動画を作成する。画像が1枚もなければ ErrNoImages を返す
func (a *Assembler) Run(ctx context.Context) (res AssembleResult, err error) {
	res.Output = a.opts.Output

	files, err := collectImages(a.opts.ImageDir, a.opts.Extension)
	if err != nil {
		return res, err
	}
	if len(files) == 0 {
		return res, fmt.Errorf("%s: %w", a.opts.ImageDir, ErrNoImages)
	}

	// 最初の画像の大きさを基準にする
	first := gocv.IMRead(files[0], gocv.IMReadColor)
	if first.Empty() {
		first.Close()
		return res, fmt.Errorf("最初の画像を読み込めません: %s", files[0])
	}
	res.Size = scaledSize(camera.Resolution{Width: first.Cols(), Height: first.Rows()}, a.opts.ScalePercent)
	first.Close()

	log.Info().
		Int("images", len(files)).
		Str("size", res.Size.String()).
		Float64("fps", a.opts.FPS).
		Msg("動画を作成しています")

	writer, err := a.newWriter(a.opts.Output, res.Size, a.opts.FPS)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	resized := gocv.NewMat()
	defer resized.Close()

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		img := gocv.IMRead(path, gocv.IMReadColor)
		if img.Empty() {
			img.Close()
			res.Skipped++
			log.Warn().Str("path", path).Msg("画像を読み込めないため飛ばします")
			continue
		}

		frame := &img
		if img.Cols() != res.Size.Width || img.Rows() != res.Size.Height {
			gocv.Resize(img, &resized, image.Pt(res.Size.Width, res.Size.Height), 0, 0, gocv.InterpolationArea)
			frame = &resized
		}

		if a.opts.Overlay {
			annotate.Caption(frame, CaptionFor(path))
		}

		werr := writer.Write(*frame)
		img.Close()
		if werr != nil {
			return res, fmt.Errorf("フレームの書き出しに失敗 (%s): %w", path, werr)
		}
		res.Frames++
	}

	log.Info().Int("frames", res.Frames).Int("skipped", res.Skipped).Str("output", res.Output).Msg("完了しました")
	return res, nil
}

// collectImages はディレクトリ内の指定拡張子のファイルを名前順に返す
func collectImages(dir, ext string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("画像ディレクトリを開けません: %w", err)
	}

	images, err := ListImages(dir, ext)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(images))
	for _, img := range images {
		paths = append(paths, img.Path)
	}
	return paths, nil
}

// scaledSize は元の大きさに百分率を掛けたフレームサイズを返す（最小1px）
func scaledSize(size camera.Resolution, percent int) camera.Resolution {
	if percent <= 0 || percent == 100 {
		return size
	}

	scaled := camera.Resolution{
		Width:  size.Width * percent / 100,
		Height: size.Height * percent / 100,
	}
	if scaled.Width < 1 {
		scaled.Width = 1
	}
	if scaled.Height < 1 {
		scaled.Height = 1
	}
	return scaled
}

// isImageFile は名前が拡張子で終わるかを判定する。大文字小文字は区別する
func isImageFile(name, ext string) bool {
	return strings.HasSuffix(name, ext)
}
