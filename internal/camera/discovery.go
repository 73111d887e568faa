package camera

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// ErrDiscoveryUnsupported はこのプラットフォームでデバイス検出ができないことを表す
var ErrDiscoveryUnsupported = errors.New("このプラットフォームではデバイス検出に対応していません")

var deviceNumberPattern = regexp.MustCompile(`video(\d+)$`)

// DevicePath はカメラ番号からV4L2のデバイスパスを返す
func DevicePath(index int) string {
	return fmt.Sprintf("/dev/video%d", index)
}

// DeviceIndex はデバイスパスからカメラ番号を取り出す
// 番号が含まれない場合は -1 を返す
func DeviceIndex(device string) int {
	matches := deviceNumberPattern.FindStringSubmatch(device)
	if len(matches) < 2 {
		return -1
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return -1
	}

	return num
}

// sortDevices はデバイスパスをカメラ番号順に並べる
func sortDevices(devices []string) {
	sort.SliceStable(devices, func(i, j int) bool {
		return DeviceIndex(devices[i]) < DeviceIndex(devices[j])
	})
}

// sortResolutions は解像度を画素数の昇順に並べ、重複を取り除く
func sortResolutions(resolutions []Resolution) []Resolution {
	sort.Slice(resolutions, func(i, j int) bool {
		ai := resolutions[i].Width * resolutions[i].Height
		aj := resolutions[j].Width * resolutions[j].Height
		if ai == aj {
			return resolutions[i].Width < resolutions[j].Width
		}
		return ai < aj
	})

	out := resolutions[:0]
	for _, r := range resolutions {
		if len(out) > 0 && r == out[len(out)-1] {
			continue
		}
		out = append(out, r)
	}
	return out
}
