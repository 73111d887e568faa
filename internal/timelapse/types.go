package timelapse

import (
	"errors"
	"time"

	"camlapse/internal/camera"
)

var (
	// ErrFrameRead はカメラからフレームを取得できなかったことを表す
	ErrFrameRead = errors.New("フレームの取得に失敗しました")
	// ErrNoImages は動画にする画像が1枚もないことを表す
	ErrNoImages = errors.New("画像ファイルがありません")
	// ErrNoTimestamp はファイル名から撮影時刻を読み取れないことを表す
	ErrNoTimestamp = errors.New("ファイル名に撮影時刻が含まれていません")
)

// Config は1台のカメラで撮影するタイムラプスの設定
type Config struct {
	CameraIndex int               `yaml:"camera_index"` // カメラ番号
	Resolution  camera.Resolution `yaml:"resolution"`   // 要求する解像度
	Interval    time.Duration     `yaml:"interval"`     // 撮影間隔
	Duration    time.Duration     `yaml:"duration"`     // 撮影を続ける時間
	OutputDir   string            `yaml:"output_dir"`   // 画像の保存先
	Preview     bool              `yaml:"preview"`      // プレビューウィンドウを表示するか
}

// HubConfig は複数カメラを1台ずつ順番に撮影するタイムラプスの設定
// USBハブの帯域を使い切らないよう、同時に開くカメラは常に1台だけ
type HubConfig struct {
	Cameras    []int             `yaml:"cameras"`    // 撮影するカメラ番号（この順で撮影する）
	Resolution camera.Resolution `yaml:"resolution"` // 要求する解像度
	Interval   time.Duration     `yaml:"interval"`   // 撮影間隔
	Duration   time.Duration     `yaml:"duration"`   // 撮影を続ける時間
	OutputDir  string            `yaml:"output_dir"` // 保存先（カメラ毎に cam_<番号> を作る）
	WarmUp     time.Duration     `yaml:"warm_up"`    // オープン後、撮影までの待ち時間
	Settle     time.Duration     `yaml:"settle"`     // 解放後、次のカメラを開くまでの待ち時間
}

// Result は撮影の結果
type Result struct {
	Frames   int      // 保存した画像の枚数
	Failures int      // 開けなかった・読めなかったカメラの回数
	Files    []string // 保存した画像のパス
	Stopped  bool     // 'q' や Ctrl+C で途中終了したか
}

// DefaultConfig はデフォルトのタイムラプス設定を返す
func DefaultConfig() Config {
	return Config{
		CameraIndex: 1,
		Resolution:  camera.Resolution{Width: 1920, Height: 1080},
		Interval:    5 * time.Second,
		Duration:    10 * time.Minute,
		OutputDir:   "my_timelapse",
		Preview:     true,
	}
}

// DefaultHubConfig はデフォルトの複数カメラ設定を返す
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Cameras:    []int{1, 2},
		Resolution: camera.Resolution{Width: 1920, Height: 1080},
		Interval:   10 * time.Minute,
		Duration:   14 * 24 * time.Hour,
		OutputDir:  "plant_growth_hub",
		WarmUp:     3 * time.Second,
		Settle:     1 * time.Second,
	}
}
