// Package annotate はフレームに重ねる文字を描画する
package annotate

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	black = color.RGBA{R: 0, G: 0, B: 0, A: 0}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

const (
	font = gocv.FontHersheySimplex

	bannerWidth  = 600
	bannerHeight = 40

	captionMargin  = 20
	captionPadding = 8
)

// Banner はフレーム左上に黒帯を敷き、白文字で操作説明を描く
func Banner(frame *gocv.Mat, text string) {
	gocv.Rectangle(frame, image.Rect(0, 0, bannerWidth, bannerHeight), black, -1)
	gocv.PutText(frame, text, image.Pt(10, 30), font, 0.8, white, 2)
}

// Caption はフレーム左下に撮影時刻などのラベルを描く
// 文字サイズはフレーム幅に合わせて変える（1280px幅で1.0）
func Caption(frame *gocv.Mat, text string) {
	scale := float64(frame.Cols()) / 1280.0
	if scale < 0.5 {
		scale = 0.5
	}
	thickness := int(scale * 2)
	if thickness < 1 {
		thickness = 1
	}

	size := gocv.GetTextSize(text, font, scale, thickness)
	origin := image.Pt(captionMargin, frame.Rows()-captionMargin)

	box := image.Rect(
		origin.X-captionPadding,
		origin.Y-size.Y-captionPadding,
		origin.X+size.X+captionPadding,
		origin.Y+captionPadding,
	)
	gocv.Rectangle(frame, box, black, -1)
	gocv.PutText(frame, text, origin, font, scale, white, thickness)
}
