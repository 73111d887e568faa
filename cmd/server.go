// Package main は撮影済み画像を配信するモニターサーバーの実装です
// 撮影は別プロセス (camlapse capture / hub) で行い、このサーバーは保存先を監視する
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"camlapse/internal/config"
	"camlapse/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		dir        = flag.String("dir", "", "画像の保存先 (デフォルト: my_timelapse)")
		cameras    = flag.String("cameras", "", "複数カメラ撮影の場合のカメラ番号 (例: 1,2)")
		videos     = flag.String("videos", ".", "動画ファイルの置き場所")
		configPath = flag.String("config", "", "設定ファイル (YAML)")
		poll       = flag.Duration("poll", 2*time.Second, "最新画像を確認する間隔")
		debug      = flag.Bool("debug", false, "デバッグログを表示")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("camlapse monitor")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	// 設定を読み込む
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("設定の読み込みに失敗しました")
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal().Err(err).Msg("設定が不正です")
	}

	opts := server.Options{
		ImageDir: cfg.Timelapse.OutputDir,
		VideoDir: *videos,
	}
	if *cameras != "" {
		indices, err := config.ParseCameras(*cameras)
		if err != nil {
			log.Fatal().Err(err).Msg("カメラ番号が不正です")
		}
		opts.Cameras = indices
		opts.ImageDir = cfg.Hub.OutputDir
	}
	if *dir != "" {
		opts.ImageDir = *dir
	}
	if *poll <= 0 {
		log.Fatal().Dur("poll", *poll).Msg("確認間隔は正の値で指定してください")
	}

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(cfg, opts)

	// Ctrl+C でシャットダウンする
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go srv.PollLatest(ctx, *poll)

	// サーバーを起動
	log.Info().Str("addr", cfg.ServerAddress()).Str("dir", opts.ImageDir).Msg("モニターを起動します")
	if err := srv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("サーバーの起動に失敗しました")
	}
}
