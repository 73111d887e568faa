package preview

import (
	"gocv.io/x/gocv"
)

const (
	// KeyQuit はプレビューや撮影を終了するキー
	KeyQuit = 'q'
	// KeyNext は次のカメラに切り替えるキー
	KeyNext = 'n'

	noKey = -1
)

// Display はフレームを表示するウィンドウ
// *gocv.Window はそのままこのインターフェースを満たす
type Display interface {
	IMShow(frame gocv.Mat) error
	WaitKey(delay int) int
	Close() error
}

// DisplayFactory はタイトルを指定してDisplayを作成する関数
type DisplayFactory func(title string) Display

// NewWindow はOpenCVのウィンドウを作成する
func NewWindow(title string) Display {
	return gocv.NewWindow(title)
}

// Key はWaitKeyの戻り値を文字に変換する。キー入力がなければ0を返す
func Key(code int) rune {
	if code < 0 {
		return 0
	}
	return rune(code & 0xFF)
}
