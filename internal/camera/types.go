package camera

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"
)

// Resolution はカメラの解像度を表す
type Resolution struct {
	Width  int `yaml:"width"`  // 幅
	Height int `yaml:"height"` // 高さ
}

// String は "1920x1080" 形式の文字列を返す
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// IsZero は幅・高さのどちらかが未設定かどうかを返す
func (r Resolution) IsZero() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Candidate は解像度チェックで要求する解像度とその表示名
type Candidate struct {
	Resolution
	Label string
}

// Device はキャプチャライブラリのデバイスハンドル
// *gocv.VideoCapture はそのままこのインターフェースを満たす
type Device interface {
	// IsOpened はデバイスが開かれているかを返す
	IsOpened() bool

	// Get はプロパティの現在値を取得する
	Get(prop gocv.VideoCaptureProperties) float64

	// Set はプロパティを要求する（受け入れられるかはデバイス次第）
	Set(prop gocv.VideoCaptureProperties, value float64)

	// Read は1フレームを読み込む
	Read(frame *gocv.Mat) bool

	// Close はデバイスを解放する
	Close() error
}

// Opener はカメラ番号からデバイスを開く関数
type Opener func(index int) (Device, error)

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
	ScanDevices(ctx context.Context) ([]string, error)

	// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, device string) bool

	// GetDeviceInfo はデバイスの詳細情報を取得する
	GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error)
}

// DeviceInfo はカメラデバイスの詳細情報を表す
type DeviceInfo struct {
	Device  string   // デバイスパス
	Index   int      // カメラ番号（/dev/videoN の N）
	Name    string   // デバイス名
	Formats []Format // サポートされるフォーマット
}

// Format はピクセルフォーマットとそのフレームサイズ
type Format struct {
	Name        string       // フォーマット名（例: "Motion-JPEG"）
	Resolutions []Resolution // 離散フレームサイズ
}

// MaxResolution は全フォーマット中で最大の解像度を返す
func (d *DeviceInfo) MaxResolution() Resolution {
	var maxRes Resolution
	for _, f := range d.Formats {
		for _, r := range f.Resolutions {
			if r.Width*r.Height > maxRes.Width*maxRes.Height {
				maxRes = r
			}
		}
	}
	return maxRes
}
