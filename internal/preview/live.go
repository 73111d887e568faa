package preview

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"camlapse/internal/annotate"
	"camlapse/internal/camera"
)

// action はカメラ1台分のプレビューが終わった後の動作
type action int

const (
	actionNext action = iota // 次のカメラへ
	actionQuit               // 終了
)

// Viewer はカメラのライブ映像をウィンドウに表示する
// 'n' で次のカメラ番号へ、'q' で終了する
type Viewer struct {
	open       camera.Opener
	newDisplay DisplayFactory
	resolution camera.Resolution
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewViewer は新しいViewerを作成する
func NewViewer(open camera.Opener, newDisplay DisplayFactory, resolution camera.Resolution) *Viewer {
	return &Viewer{
		open:       open,
		newDisplay: newDisplay,
		resolution: resolution,
		retryDelay: time.Second,
		sleep:      sleepContext,
	}
}

// Run はカメラ0から順にプレビューする。'q' かコンテキストのキャンセルで終了する
func (v *Viewer) Run(ctx context.Context) error {
	log.Info().Msg("ライブプレビューを開始します ('n': 次のカメラ, 'q': 終了)")

	index := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		log.Info().Int("camera", index).Msg("カメラに接続しています")
		dev, err := v.open(index)
		if err != nil {
			// カメラが1台もない場合に空回りしないよう待ってから0番に戻る
			log.Warn().Err(err).Int("camera", index).Msg("カメラが見つかりません。カメラ0に戻ります")
			index = 0
			if err := v.sleep(ctx, v.retryDelay); err != nil {
				return nil
			}
			continue
		}

		act, err := v.show(ctx, dev, index)
		if err != nil {
			return err
		}
		if act == actionQuit {
			return nil
		}
		index++
	}
}

// show は1台のカメラのフレームを表示し続ける。デバイスとウィンドウは戻る前に必ず解放する
func (v *Viewer) show(ctx context.Context, dev camera.Device, index int) (action, error) {
	defer func() {
		if err := dev.Close(); err != nil {
			log.Warn().Err(err).Int("camera", index).Msg("カメラの解放に失敗")
		}
	}()

	actual := camera.ApplyResolution(dev, v.resolution)
	log.Debug().Int("camera", index).Str("resolution", actual.String()).Msg("解像度を設定")

	display := v.newDisplay(fmt.Sprintf("Live View - Camera %d", index))
	defer func() {
		_ = display.Close()
	}()

	frame := gocv.NewMat()
	defer frame.Close()

	text := fmt.Sprintf("Cam %d | 'n': Next Cam | 'q': Quit", index)

	for {
		if ctx.Err() != nil {
			return actionQuit, nil
		}

		if ok := dev.Read(&frame); !ok || frame.Empty() {
			log.Error().Int("camera", index).Msg("フレームの取得に失敗しました")
			return actionNext, nil
		}

		annotate.Banner(&frame, text)
		if err := display.IMShow(frame); err != nil {
			log.Error().Err(err).Int("camera", index).Msg("フレームを表示できません")
			return actionQuit, fmt.Errorf("カメラ %d の表示に失敗: %w", index, err)
		}

		switch Key(display.WaitKey(1)) {
		case KeyQuit:
			return actionQuit, nil
		case KeyNext:
			log.Info().Msg("カメラを切り替えます")
			return actionNext, nil
		}
	}
}

// sleepContext はdだけ待つ。途中でキャンセルされた場合はctx.Err()を返す
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
