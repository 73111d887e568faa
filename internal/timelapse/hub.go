package timelapse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"camlapse/internal/camera"
	"camlapse/internal/preview"
)

// errStopRequested は 'q' キーによる停止を表す
var errStopRequested = errors.New("停止が要求されました")

// HubCapturer は複数のカメラを1台ずつ開いて撮影する
// 1台撮影するごとにデバイスを完全に解放してから次のカメラを開く
type HubCapturer struct {
	config  HubConfig
	open    camera.Opener
	keys    <-chan rune
	session *Session
	clock   clock
	write   func(path string, frame gocv.Mat) bool
}

// NewHubCapturer は新しいHubCapturerを作成する
// opts.Display は使用しない
func NewHubCapturer(config HubConfig, open camera.Opener, opts Options) *HubCapturer {
	session := opts.Session
	if session == nil {
		session = NewSession("hub", config.OutputDir)
	}

	return &HubCapturer{
		config:  config,
		open:    open,
		keys:    opts.Keys,
		session: session,
		clock:   realClock(),
		write:   gocv.IMWrite,
	}
}

// Session は撮影の進捗を返す
func (hc *HubCapturer) Session() *Session {
	return hc.session
}

// Run は撮影終了時刻まで、撮影間隔ごとに全カメラを順番に撮影する
// 開けない・読めないカメラはログを出して飛ばし、残りのカメラの撮影を続ける
func (hc *HubCapturer) Run(ctx context.Context) (res Result, err error) {
	for _, index := range hc.config.Cameras {
		if _, err := ensureDir(CameraDir(hc.config.OutputDir, index)); err != nil {
			hc.session.Finish(StateError)
			return res, err
		}
	}

	start := hc.clock.now()
	end := start.Add(hc.config.Duration)
	hc.session.Begin(start, end)

	log.Info().
		Ints("cameras", hc.config.Cameras).
		Dur("interval", hc.config.Interval).
		Dur("duration", hc.config.Duration).
		Msg("複数カメラのタイムラプス撮影を開始します")

	state := StateCompleted
	defer func() {
		hc.session.Finish(state)
		log.Info().Int("frames", res.Frames).Int("failures", res.Failures).Msg("撮影を終了しました")
	}()

	for hc.clock.now().Before(end) {
		tickStart := hc.clock.now()
		// 同じ回の撮影は全カメラで同じファイル名にする
		name := Filename(tickStart)

		for _, index := range hc.config.Cameras {
			path, err := hc.captureOne(ctx, index, name)
			if err != nil {
				if hc.stopRequested(ctx, err) {
					res.Stopped = true
					state = StateStopped
					return res, nil
				}
				res.Failures++
				log.Warn().Err(err).Int("camera", index).Msg("このカメラの撮影を飛ばします")
			} else {
				res.Frames++
				res.Files = append(res.Files, path)
				hc.session.Saved(index, path, tickStart)
				log.Info().Str("path", path).Msg("保存しました")
			}

			// 次のカメラを開く前に少し待つ
			if err := hc.wait(ctx, hc.config.Settle); err != nil {
				res.Stopped = true
				state = StateStopped
				return res, nil
			}
		}

		// 撮影にかかった時間を差し引いて次の回を待つ
		rest := hc.config.Interval - hc.clock.now().Sub(tickStart)
		if rest < 0 {
			rest = 0
		}
		log.Info().Dur("wait", rest).Msg("次の撮影まで待機します")

		if err := hc.wait(ctx, rest); err != nil {
			res.Stopped = true
			state = StateStopped
			return res, nil
		}
	}

	return res, nil
}

// captureOne は1台のカメラを開いて1枚保存し、必ず解放する
func (hc *HubCapturer) captureOne(ctx context.Context, index int, name string) (string, error) {
	log.Info().Int("camera", index).Msg("カメラを開いています")

	dev, err := hc.open(index)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Warn().Err(err).Int("camera", index).Msg("カメラの解放に失敗")
		}
	}()

	// USBハブの電源が安定するまで待つ（暗い画像になる場合は長くする）
	if err := hc.wait(ctx, hc.config.WarmUp); err != nil {
		return "", err
	}

	camera.ApplyResolution(dev, hc.config.Resolution)

	frame := gocv.NewMat()
	defer frame.Close()

	if ok := dev.Read(&frame); !ok || frame.Empty() {
		return "", fmt.Errorf("カメラ %d: %w", index, ErrFrameRead)
	}

	path := filepath.Join(CameraDir(hc.config.OutputDir, index), name)
	if !hc.write(path, frame) {
		return "", fmt.Errorf("画像の保存に失敗: %s", path)
	}

	return path, nil
}

// wait はdだけ待つ。キャンセルや 'q' キーで中断された場合はエラーを返す
func (hc *HubCapturer) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timeout := hc.clock.after(d)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case key, ok := <-hc.keys:
			if !ok {
				hc.keys = nil
				continue
			}
			if key == preview.KeyQuit {
				return errStopRequested
			}
		case <-timeout:
			return nil
		}
	}
}

// stopRequested はエラーが停止要求によるものかを判定し、理由をログに出す
func (hc *HubCapturer) stopRequested(ctx context.Context, err error) bool {
	switch {
	case errors.Is(err, errStopRequested):
		log.Info().Msg("ユーザー操作で停止しました")
		return true
	case ctx.Err() != nil:
		log.Info().Msg("Ctrl+C で停止しました")
		return true
	default:
		return false
	}
}
