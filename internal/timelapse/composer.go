package timelapse

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

// MosaicComposer は複数カメラの最新画像を1枚の画像に並べる
type MosaicComposer struct {
	outputWidth  int
	outputHeight int
	quality      int
}

// NewMosaicComposer は新しいMosaicComposerを作成する
// qualityは1(低)から5(高)
func NewMosaicComposer(outputWidth, outputHeight, quality int) *MosaicComposer {
	return &MosaicComposer{
		outputWidth:  outputWidth,
		outputHeight: outputHeight,
		quality:      quality,
	}
}

// Compose はカメラ番号ごとの画像ファイルを番号順に格子状に並べる
// 読めない画像は飛ばす
func (mc *MosaicComposer) Compose(latest map[int]string) (image.Image, error) {
	if len(latest) == 0 {
		return nil, fmt.Errorf("結合する画像がありません: %w", ErrNoImages)
	}

	// カメラ番号順に位置を固定
	indices := make([]int, 0, len(latest))
	for index := range latest {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	layout := mc.calculateLayout(len(indices))
	dst := imaging.New(mc.outputWidth, mc.outputHeight, color.Black)

	placed := 0
	for i, index := range indices {
		src, err := imaging.Open(latest[index])
		if err != nil {
			log.Warn().Err(err).Int("camera", index).Msg("画像の読み込みに失敗")
			continue
		}

		pos := mc.calculatePosition(i, layout)
		cell := imaging.Fit(src, pos.Width, pos.Height, imaging.Box)
		// セルの中央に置く
		offset := image.Pt(
			pos.X+(pos.Width-cell.Bounds().Dx())/2,
			pos.Y+(pos.Height-cell.Bounds().Dy())/2,
		)
		dst = imaging.Paste(dst, cell, offset)
		placed++
	}

	if placed == 0 {
		return nil, fmt.Errorf("読み込める画像がありません: %w", ErrNoImages)
	}

	return dst, nil
}

// Encode は結合画像をJPEGで書き出す
func (mc *MosaicComposer) Encode(w io.Writer, img image.Image) error {
	// 1-5 を 20-100 に変換
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(mc.quality*20)); err != nil {
		return fmt.Errorf("JPEG エンコードに失敗: %w", err)
	}
	return nil
}

// LayoutInfo はレイアウト情報
type LayoutInfo struct {
	Cols       int
	Rows       int
	CellWidth  int
	CellHeight int
}

// calculateLayout は画像の枚数に基づいてレイアウトを計算する
func (mc *MosaicComposer) calculateLayout(count int) LayoutInfo {
	var cols, rows int

	switch count {
	case 1:
		cols, rows = 1, 1
	case 2:
		cols, rows = 2, 1
	case 3, 4:
		cols, rows = 2, 2 // 3枚の場合は1つ空き
	default:
		// 5枚以上は横を多めにする
		cols = int(float64(count)*0.6) + 1
		rows = (count + cols - 1) / cols
	}

	return LayoutInfo{
		Cols:       cols,
		Rows:       rows,
		CellWidth:  mc.outputWidth / cols,
		CellHeight: mc.outputHeight / rows,
	}
}

// Position は配置位置
type Position struct {
	X, Y          int
	Width, Height int
}

// calculatePosition は指定したインデックスの配置位置を計算する
func (mc *MosaicComposer) calculatePosition(index int, layout LayoutInfo) Position {
	row := index / layout.Cols
	col := index % layout.Cols

	return Position{
		X:      col * layout.CellWidth,
		Y:      row * layout.CellHeight,
		Width:  layout.CellWidth,
		Height: layout.CellHeight,
	}
}
