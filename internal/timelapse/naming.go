package timelapse

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	// FilePrefix は撮影画像のファイル名の接頭辞
	FilePrefix = "img_"
	// ImageExt は撮影画像の拡張子
	ImageExt = ".jpg"

	timestampLayout = "20060102_150405"
	captionLayout   = "2006-01-02 15:04:05"

	// PlaceholderCaption はファイル名から時刻を読み取れないときのラベル
	PlaceholderCaption = "Unknown Time"
)

// Filename は撮影時刻から img_YYYYMMDD_HHMMSS.jpg 形式のファイル名を作る
func Filename(t time.Time) string {
	return FilePrefix + t.Format(timestampLayout) + ImageExt
}

// CameraDir は複数カメラ撮影でのカメラ毎の保存先を返す
func CameraDir(root string, index int) string {
	return filepath.Join(root, fmt.Sprintf("cam_%d", index))
}

// ParseTimestamp はファイル名から撮影時刻を読み取る（ローカル時刻として解釈する）
func ParseTimestamp(name string) (time.Time, error) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, FilePrefix) {
		return time.Time{}, fmt.Errorf("%s: %w", base, ErrNoTimestamp)
	}

	stamp := strings.TrimSuffix(strings.TrimPrefix(base, FilePrefix), filepath.Ext(base))
	t, err := time.ParseInLocation(timestampLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", base, ErrNoTimestamp)
	}

	return t, nil
}

// CaptionFor は動画に重ねる撮影時刻のラベルを返す
// 時刻を読み取れないファイル名にはプレースホルダーを返す
func CaptionFor(name string) string {
	t, err := ParseTimestamp(name)
	if err != nil {
		return PlaceholderCaption
	}
	return t.Format(captionLayout)
}
