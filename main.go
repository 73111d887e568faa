package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	setupLogger(false)

	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(os.Stdout)
		return
	}

	// Ctrl+C で撮影を途中終了できるようにする
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	switch args[0] {
	case "probe":
		code = probeCmd(ctx, args[1:])
	case "preview":
		code = previewCmd(ctx, args[1:])
	case "capture":
		code = captureCmd(ctx, args[1:])
	case "hub":
		code = hubCmd(ctx, args[1:])
	case "assemble":
		code = assembleCmd(ctx, args[1:])
	case "devices":
		code = devicesCmd(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "不明なコマンド: %q\n\n", args[0])
		printUsage(os.Stderr)
		code = 2
	}

	if code != 0 {
		stop()
		os.Exit(code)
	}
}

// setupLogger はzerologのグローバルロガーを端末向けに設定する
func setupLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
}

func isHelp(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "camlapse - Webカメラのタイムラプス撮影ツール")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "使用方法:")
	fmt.Fprintln(w, "  camlapse <コマンド> [オプション]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "コマンド:")
	fmt.Fprintln(w, "  probe     カメラが対応している解像度を調べる")
	fmt.Fprintln(w, "  preview   カメラの映像をウィンドウに表示する ('n': 次のカメラ, 'q': 終了)")
	fmt.Fprintln(w, "  capture   1台のカメラで一定間隔ごとに撮影する")
	fmt.Fprintln(w, "  hub       USBハブにつないだ複数のカメラを1台ずつ順番に撮影する")
	fmt.Fprintln(w, "  assemble  撮影した画像を撮影時刻付きの動画にする")
	fmt.Fprintln(w, "  devices   接続されているカメラと対応フォーマットを表示する (Linuxのみ)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "各コマンドのオプションは camlapse <コマンド> -h で表示されます")
}
