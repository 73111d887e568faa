package camera

import (
	"fmt"

	"gocv.io/x/gocv"
)

// OpenDevice はOpenCVでカメラを開く
// 開けなかった場合も中途半端なハンドルは解放してからエラーを返す
func OpenDevice(index int) (Device, error) {
	capture, err := gocv.OpenVideoCapture(index)
	if err != nil {
		if capture != nil {
			_ = capture.Close()
		}
		return nil, fmt.Errorf("カメラ %d を開けません: %w", index, err)
	}

	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, fmt.Errorf("カメラ %d を開けません", index)
	}

	return capture, nil
}

// CurrentResolution はデバイスの現在の解像度を読み出す
func CurrentResolution(dev Device) Resolution {
	return Resolution{
		Width:  int(dev.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(dev.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// ApplyResolution は解像度を要求し、デバイスが実際に受け入れた解像度を返す
func ApplyResolution(dev Device, res Resolution) Resolution {
	if !res.IsZero() {
		dev.Set(gocv.VideoCaptureFrameWidth, float64(res.Width))
		dev.Set(gocv.VideoCaptureFrameHeight, float64(res.Height))
	}
	return CurrentResolution(dev)
}
