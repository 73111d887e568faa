package timelapse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"camlapse/internal/camera"
	"camlapse/internal/preview"
)

// previewPoll はプレビュー表示中にキー入力を確認する間隔
const previewPoll = 100 * time.Millisecond

// Options は撮影の任意設定
type Options struct {
	Display preview.DisplayFactory // nilならプレビューしない
	Keys    <-chan rune            // ウィンドウを使わない場合のキー入力
	Session *Session               // 進捗の記録先。nilなら内部で作成する
}

// clock は時刻の取得と待機をテストで差し替えるためのもの
type clock struct {
	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

func realClock() clock {
	return clock{now: time.Now, after: time.After}
}

// Capturer は1台のカメラで一定間隔ごとに画像を保存する
type Capturer struct {
	config  Config
	open    camera.Opener
	opts    Options
	session *Session
	clock   clock
	write   func(path string, frame gocv.Mat) bool
}

// NewCapturer は新しいCapturerを作成する
func NewCapturer(config Config, open camera.Opener, opts Options) *Capturer {
	session := opts.Session
	if session == nil {
		session = NewSession("single", config.OutputDir)
	}

	return &Capturer{
		config:  config,
		open:    open,
		opts:    opts,
		session: session,
		clock:   realClock(),
		write:   gocv.IMWrite,
	}
}

// Session は撮影の進捗を返す
func (tc *Capturer) Session() *Session {
	return tc.session
}

// Run は撮影終了時刻まで、撮影間隔ごとに1枚ずつ画像を保存する
// 'q' キーかコンテキストのキャンセル（Ctrl+C）で途中終了する
func (tc *Capturer) Run(ctx context.Context) (res Result, err error) {
	index := tc.config.CameraIndex

	created, err := ensureDir(tc.config.OutputDir)
	if err != nil {
		tc.session.Finish(StateError)
		return res, err
	}
	if created {
		log.Info().Str("dir", tc.config.OutputDir).Msg("出力ディレクトリを作成しました")
	}

	dev, err := tc.open(index)
	if err != nil {
		log.Error().Err(err).Int("camera", index).Msg("カメラを開けませんでした。カメラ番号を0に変えるか接続を確認してください")
		tc.session.Finish(StateError)
		return res, err
	}

	actual := camera.ApplyResolution(dev, tc.config.Resolution)

	var display preview.Display
	if tc.opts.Display != nil {
		display = tc.opts.Display("Time-lapse Preview")
	}

	frame := gocv.NewMat()

	start := tc.clock.now()
	deadline := start.Add(tc.config.Duration)
	tc.session.Begin(start, deadline)

	state := StateCompleted
	defer func() {
		frame.Close()
		if display != nil {
			_ = display.Close()
		}
		if cerr := dev.Close(); cerr != nil {
			log.Warn().Err(cerr).Int("camera", index).Msg("カメラの解放に失敗")
		}
		tc.session.Finish(state)
		log.Info().Int("frames", res.Frames).Msg("撮影を終了しました")
	}()

	log.Info().
		Int("camera", index).
		Str("resolution", actual.String()).
		Dur("interval", tc.config.Interval).
		Dur("duration", tc.config.Duration).
		Msg("タイムラプス撮影を開始します。'q' または Ctrl+C で途中終了できます")

	for tc.clock.now().Before(deadline) {
		if ok := dev.Read(&frame); !ok || frame.Empty() {
			log.Error().Int("camera", index).Msg("画像の取得に失敗しました")
			state = StateError
			return res, fmt.Errorf("カメラ %d: %w", index, ErrFrameRead)
		}

		at := tc.clock.now()
		path := filepath.Join(tc.config.OutputDir, Filename(at))
		if !tc.write(path, frame) {
			state = StateError
			return res, fmt.Errorf("画像の保存に失敗: %s", path)
		}

		res.Frames++
		res.Files = append(res.Files, path)
		tc.session.Saved(index, path, at)
		log.Info().Str("path", path).Int("count", res.Frames).Msg("保存しました")

		stop, err := tc.waitInterval(ctx, display, frame)
		if err != nil {
			state = StateError
			return res, err
		}
		if stop {
			res.Stopped = true
			state = StateStopped
			return res, nil
		}
	}

	return res, nil
}

// waitInterval は撮影間隔だけ待つ。途中終了が要求された場合はtrueを返す
func (tc *Capturer) waitInterval(ctx context.Context, display preview.Display, frame gocv.Mat) (bool, error) {
	if display != nil {
		return tc.waitWithPreview(ctx, display, frame)
	}

	timeout := tc.clock.after(tc.config.Interval)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Ctrl+C で停止しました")
			return true, nil
		case key, ok := <-tc.opts.Keys:
			if !ok {
				// 入力が閉じられたら以降はキーを待たない
				tc.opts.Keys = nil
				continue
			}
			if key == preview.KeyQuit {
				log.Info().Msg("ユーザー操作で停止しました")
				return true, nil
			}
		case <-timeout:
			return false, nil
		}
	}
}

// waitWithPreview はフレームを表示し、短い間隔でキー入力を確認しながら待つ
func (tc *Capturer) waitWithPreview(ctx context.Context, display preview.Display, frame gocv.Mat) (bool, error) {
	if err := display.IMShow(frame); err != nil {
		log.Error().Err(err).Msg("プレビューを表示できません")
		return false, fmt.Errorf("プレビューの表示に失敗: %w", err)
	}

	for waited := time.Duration(0); waited < tc.config.Interval; waited += previewPoll {
		if ctx.Err() != nil {
			log.Info().Msg("Ctrl+C で停止しました")
			return true, nil
		}

		slice := previewPoll
		if rest := tc.config.Interval - waited; rest < slice {
			slice = rest
		}

		// WaitKey(0) は無期限に待つため最低1msにする
		ms := int(slice.Milliseconds())
		if ms < 1 {
			ms = 1
		}

		if preview.Key(display.WaitKey(ms)) == preview.KeyQuit {
			log.Info().Msg("ユーザー操作で停止しました")
			return true, nil
		}
	}

	return false, nil
}

// ensureDir はディレクトリを作成する。新しく作成した場合はtrueを返す
func ensureDir(dir string) (bool, error) {
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s はディレクトリではありません", dir)
		}
		return false, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}
	return true, nil
}
