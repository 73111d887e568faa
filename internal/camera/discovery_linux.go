package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blackjack/webcam"
)

// devicePattern はV4L2デバイスを探すパターン
const devicePattern = "/dev/video*"

// LinuxDiscovery はV4L2を直接問い合わせてカメラを検出する
type LinuxDiscovery struct {
	pattern string
}

// NewSystemDiscovery はこのプラットフォーム向けのDiscoveryを返す
func NewSystemDiscovery() Discovery {
	return &LinuxDiscovery{pattern: devicePattern}
}

// ScanDevices は /dev/video* のうち開けるデバイスを番号順に返す
func (d *LinuxDiscovery) ScanDevices(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(d.pattern)
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	devices := make([]string, 0, len(matches))
	for _, match := range matches {
		// コンテキストのキャンセルをチェック
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if d.IsDeviceAvailable(ctx, match) {
			devices = append(devices, match)
		}
	}

	sortDevices(devices)
	return devices, nil
}

// IsDeviceAvailable は指定されたデバイスが読み取り可能かチェックする
func (d *LinuxDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	if DeviceIndex(device) < 0 {
		return false
	}

	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	_ = file.Close()

	return true
}

// GetDeviceInfo はデバイスのフォーマットとフレームサイズを取得する
func (d *LinuxDiscovery) GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error) {
	if !d.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが利用できません: %s", device)
	}

	cam, err := webcam.Open(device)
	if err != nil {
		return nil, fmt.Errorf("デバイス %s を開けません: %w", device, err)
	}
	defer func() {
		_ = cam.Close()
	}()

	cardName, nameErr := cam.GetName()
	info := &DeviceInfo{
		Device: device,
		Index:  DeviceIndex(device),
		Name:   deviceName(device, cardName, nameErr),
	}

	for pixelFormat, name := range cam.GetSupportedFormats() {
		var resolutions []Resolution
		for _, size := range cam.GetSupportedFrameSizes(pixelFormat) {
			// ステップ指定のサイズは最大値だけを記録する
			resolutions = append(resolutions, Resolution{
				Width:  int(size.MaxWidth),
				Height: int(size.MaxHeight),
			})
		}
		info.Formats = append(info.Formats, Format{
			Name:        name,
			Resolutions: sortResolutions(resolutions),
		})
	}

	sort.Slice(info.Formats, func(i, j int) bool {
		return info.Formats[i].Name < info.Formats[j].Name
	})

	return info, nil
}

// deviceName はV4L2のカード名を返す。取得できない場合は番号から生成する
func deviceName(device, cardName string, err error) string {
	if err == nil && strings.TrimSpace(cardName) != "" {
		return strings.TrimSpace(cardName)
	}

	// フォールバック: デバイス番号から生成
	return fmt.Sprintf("カメラ %d", DeviceIndex(device))
}
