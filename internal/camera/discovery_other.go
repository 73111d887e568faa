//go:build !linux

package camera

import (
	"context"
)

// unsupportedDiscovery はV4L2のない環境向けのDiscovery
type unsupportedDiscovery struct{}

// NewSystemDiscovery はこのプラットフォーム向けのDiscoveryを返す
func NewSystemDiscovery() Discovery {
	return unsupportedDiscovery{}
}

func (unsupportedDiscovery) ScanDevices(_ context.Context) ([]string, error) {
	return nil, ErrDiscoveryUnsupported
}

func (unsupportedDiscovery) IsDeviceAvailable(_ context.Context, _ string) bool {
	return false
}

func (unsupportedDiscovery) GetDeviceInfo(_ context.Context, _ string) (*DeviceInfo, error) {
	return nil, ErrDiscoveryUnsupported
}
