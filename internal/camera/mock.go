package camera

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockDevice はテスト用のDevice実装
// 要求された解像度は Modes のうち要求を満たす最小のものに丸められ、
// 満たすものがなければ最大のモードになる
type MockDevice struct {
	Modes     []Resolution // 対応する解像度（先頭がデフォルト）
	ReadLimit int          // 0より大きい場合、この回数を超える読み込みは失敗する

	mu        sync.Mutex
	requested Resolution
	current   Resolution
	reads     int
	closed    bool
}

// NewMockDevice は新しいMockDeviceを作成する
func NewMockDevice(modes ...Resolution) *MockDevice {
	d := &MockDevice{Modes: modes}
	if len(modes) > 0 {
		d.requested = modes[0]
		d.current = modes[0]
	}
	return d
}

// IsOpened はクローズされていなければtrueを返す
func (d *MockDevice) IsOpened() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

// Get は幅・高さのプロパティを返す
func (d *MockDevice) Get(prop gocv.VideoCaptureProperties) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch prop {
	case gocv.VideoCaptureFrameWidth:
		return float64(d.current.Width)
	case gocv.VideoCaptureFrameHeight:
		return float64(d.current.Height)
	default:
		return 0
	}
}

// Set は幅・高さを要求する
func (d *MockDevice) Set(prop gocv.VideoCaptureProperties, value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch prop {
	case gocv.VideoCaptureFrameWidth:
		d.requested.Width = int(value)
	case gocv.VideoCaptureFrameHeight:
		d.requested.Height = int(value)
	default:
		return
	}
	d.current = d.snap(d.requested)
}

// snap は要求をサポートされるモードに丸める
func (d *MockDevice) snap(req Resolution) Resolution {
	var best, largest Resolution
	found := false
	for _, m := range d.Modes {
		if m.Width*m.Height > largest.Width*largest.Height {
			largest = m
		}
		if m.Width >= req.Width && m.Height >= req.Height {
			if !found || m.Width*m.Height < best.Width*best.Height {
				best = m
				found = true
			}
		}
	}
	if found {
		return best
	}
	return largest
}

// Read は現在の解像度の黒いフレームを返す
func (d *MockDevice) Read(frame *gocv.Mat) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	if d.ReadLimit > 0 && d.reads >= d.ReadLimit {
		return false
	}
	d.reads++

	blank := gocv.NewMatWithSize(d.current.Height, d.current.Width, gocv.MatTypeCV8UC3)
	defer blank.Close()
	blank.CopyTo(frame)

	return true
}

// Close はデバイスをクローズ済みにする
func (d *MockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed はCloseが呼ばれたかを返す
func (d *MockDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Reads は成功した読み込み回数を返す
func (d *MockDevice) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// MockCameras はテスト用のカメラ群
type MockCameras struct {
	mu      sync.Mutex
	devices map[int]*MockDevice
	opened  []int
}

// NewMockCameras は番号とMockDeviceの対応からMockCamerasを作成する
func NewMockCameras(devices map[int]*MockDevice) *MockCameras {
	return &MockCameras{devices: devices}
}

// Open はOpenerとして使える
func (m *MockCameras) Open(index int) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opened = append(m.opened, index)

	dev, ok := m.devices[index]
	if !ok {
		return nil, fmt.Errorf("カメラ %d が見つかりません", index)
	}

	// 再オープンできるように状態を戻す
	dev.mu.Lock()
	dev.closed = false
	dev.mu.Unlock()

	return dev, nil
}

// Opened はオープンが試みられたカメラ番号を順に返す
func (m *MockCameras) Opened() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]int, len(m.opened))
	copy(out, m.opened)
	return out
}

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	devices     []string
	deviceInfos map[string]*DeviceInfo
}

// NewMockDiscovery は新しいMockDiscoveryを作成する
func NewMockDiscovery(devices []string) *MockDiscovery {
	m := &MockDiscovery{
		deviceInfos: make(map[string]*DeviceInfo),
	}
	for _, device := range devices {
		m.AddDevice(device)
	}
	return m
}

// ScanDevices はモックデバイス一覧を返す
func (m *MockDiscovery) ScanDevices(_ context.Context) ([]string, error) {
	devices := make([]string, len(m.devices))
	copy(devices, m.devices)
	sortDevices(devices)
	return devices, nil
}

// IsDeviceAvailable はモックデバイスが利用可能かチェックする
func (m *MockDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	_, ok := m.deviceInfos[device]
	return ok
}

// GetDeviceInfo はモックデバイス情報を取得する
func (m *MockDiscovery) GetDeviceInfo(_ context.Context, device string) (*DeviceInfo, error) {
	info, exists := m.deviceInfos[device]
	if !exists {
		return nil, fmt.Errorf("デバイスが見つかりません: %s", device)
	}

	result := *info
	return &result, nil
}

// AddDevice はテスト用にデバイスを追加する
func (m *MockDiscovery) AddDevice(device string) {
	if _, ok := m.deviceInfos[device]; ok {
		return
	}

	m.devices = append(m.devices, device)
	m.deviceInfos[device] = &DeviceInfo{
		Device: device,
		Index:  DeviceIndex(device),
		Name:   fmt.Sprintf("テストカメラ %d", len(m.devices)),
		Formats: []Format{
			{
				Name: "Motion-JPEG",
				Resolutions: []Resolution{
					{Width: 640, Height: 480},
					{Width: 1280, Height: 720},
				},
			},
		},
	}
}

// RemoveDevice はテスト用にデバイスを削除する
func (m *MockDiscovery) RemoveDevice(device string) {
	for i, d := range m.devices {
		if d == device {
			m.devices = append(m.devices[:i], m.devices[i+1:]...)
			break
		}
	}
	delete(m.deviceInfos, device)
}
