package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"camlapse/internal/camera"
	"camlapse/internal/config"
	"camlapse/internal/preview"
	"camlapse/internal/server"
	"camlapse/internal/timelapse"
)

// command はサブコマンド共通のフラグと設定
type command struct {
	fs         *flag.FlagSet
	configPath *string
	debug      *bool
	cfg        *config.Config
}

func newCommand(name, usage string) *command {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "使用方法:\n  camlapse %s [オプション]\n\n%s\n\nオプション:\n", name, usage)
		fs.PrintDefaults()
	}

	return &command{
		fs:         fs,
		configPath: fs.String("config", "", "設定ファイル (YAML)"),
		debug:      fs.Bool("debug", false, "デバッグログを表示"),
	}
}

// parse はフラグを解析して設定を読み込む。0以外を返したらその終了コードで終わる
func (c *command) parse(args []string) int {
	if err := c.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if c.fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "余分な引数があります: %v\n\n", c.fs.Args())
		c.fs.Usage()
		return 2
	}

	setupLogger(*c.debug)

	cfg, err := config.Load(*c.configPath)
	if err != nil {
		log.Error().Err(err).Msg("設定の読み込みに失敗しました")
		return 1
	}
	c.cfg = cfg
	return -1
}

// isSet はフラグが明示的に指定されたかを返す
func (c *command) isSet(name string) bool {
	set := false
	c.fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// validate はフラグで上書きした後、コマンドが使う設定だけを検証する
func (c *command) validate(check func() error) int {
	if err := check(); err != nil {
		log.Error().Err(err).Msg("設定が不正です")
		return 2
	}
	return -1
}

func probeCmd(_ context.Context, args []string) int {
	c := newCommand("probe", "カメラに候補の解像度を順に要求し、実際に設定された解像度を表示します。")
	index := c.fs.Int("camera", 0, "カメラ番号 (デフォルト: 1)")
	if code := c.parse(args); code >= 0 {
		return code
	}

	if c.isSet("camera") {
		c.cfg.Camera.Index = *index
	}

	prober := camera.NewProber(camera.OpenDevice, camera.DefaultCandidates)
	report, err := prober.Probe(c.cfg.Camera.Index)
	if err != nil {
		log.Error().Err(err).Msg("解像度を確認できませんでした")
		return 1
	}

	if _, err := report.WriteTo(os.Stdout); err != nil {
		log.Error().Err(err).Msg("結果の出力に失敗しました")
		return 1
	}
	return 0
}

func previewCmd(ctx context.Context, args []string) int {
	c := newCommand("preview", "カメラ0から順に映像を表示します。'n' で次のカメラ、'q' で終了します。")
	width := c.fs.Int("width", 0, "要求する幅 (デフォルト: 1920)")
	height := c.fs.Int("height", 0, "要求する高さ (デフォルト: 1080)")
	if code := c.parse(args); code >= 0 {
		return code
	}

	if c.isSet("width") {
		c.cfg.Camera.Resolution.Width = *width
	}
	if c.isSet("height") {
		c.cfg.Camera.Resolution.Height = *height
	}

	viewer := preview.NewViewer(camera.OpenDevice, preview.NewWindow, c.cfg.Camera.Resolution)
	if err := viewer.Run(ctx); err != nil {
		log.Error().Err(err).Msg("プレビューに失敗しました")
		return 1
	}
	return 0
}

func captureCmd(ctx context.Context, args []string) int {
	c := newCommand("capture", "1台のカメラで撮影間隔ごとに img_YYYYMMDD_HHMMSS.jpg を保存します。")
	index := c.fs.Int("camera", 0, "カメラ番号 (デフォルト: 1)")
	interval := c.fs.Duration("interval", 0, "撮影間隔 (デフォルト: 5s)")
	duration := c.fs.Duration("duration", 0, "撮影時間 (デフォルト: 10m)")
	dir := c.fs.String("dir", "", "保存先 (デフォルト: my_timelapse)")
	width := c.fs.Int("width", 0, "要求する幅 (デフォルト: 1920)")
	height := c.fs.Int("height", 0, "要求する高さ (デフォルト: 1080)")
	noPreview := c.fs.Bool("no-preview", false, "プレビューウィンドウを表示しない")
	httpAddr := c.fs.String("http", "", "モニターを起動するアドレス (例: :8080)")
	if code := c.parse(args); code >= 0 {
		return code
	}

	tl := &c.cfg.Timelapse
	if c.isSet("camera") {
		tl.CameraIndex = *index
	}
	if c.isSet("interval") {
		tl.Interval = *interval
	}
	if c.isSet("duration") {
		tl.Duration = *duration
	}
	if c.isSet("dir") {
		tl.OutputDir = *dir
	}
	if c.isSet("width") {
		tl.Resolution.Width = *width
	}
	if c.isSet("height") {
		tl.Resolution.Height = *height
	}
	if *noPreview {
		tl.Preview = false
	}
	if code := c.validate(c.cfg.ValidateTimelapse); code >= 0 {
		return code
	}

	var opts timelapse.Options
	if tl.Preview {
		opts.Display = preview.NewWindow
	} else {
		opts.Keys = preview.StdinKeys(ctx)
		if opts.Keys != nil {
			log.Info().Msg("'q' + Enter で撮影を終了します")
		}
	}

	capturer := timelapse.NewCapturer(*tl, camera.OpenDevice, opts)

	stopMonitor := startMonitor(ctx, c.cfg, *httpAddr, server.Options{
		ImageDir: tl.OutputDir,
		Status:   capturer.Session(),
	}, capturer.Session())
	defer stopMonitor()

	res, err := capturer.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("撮影に失敗しました")
		return 1
	}

	log.Info().Int("frames", res.Frames).Str("dir", tl.OutputDir).Msg("撮影が完了しました")
	return 0
}

func hubCmd(ctx context.Context, args []string) int {
	c := newCommand("hub", "複数のカメラを1台ずつ開いて撮影し、<保存先>/cam_<番号>/ に保存します。")
	cameras := c.fs.String("cameras", "", "カメラ番号のカンマ区切り (デフォルト: 1,2)")
	interval := c.fs.Duration("interval", 0, "撮影間隔 (デフォルト: 10m)")
	duration := c.fs.Duration("duration", 0, "撮影時間 (デフォルト: 336h)")
	dir := c.fs.String("dir", "", "保存先 (デフォルト: plant_growth_hub)")
	warmUp := c.fs.Duration("warmup", 0, "カメラを開いてから撮影するまでの待ち時間 (デフォルト: 3s)")
	settle := c.fs.Duration("settle", 0, "カメラを解放してから次を開くまでの待ち時間 (デフォルト: 1s)")
	width := c.fs.Int("width", 0, "要求する幅 (デフォルト: 1920)")
	height := c.fs.Int("height", 0, "要求する高さ (デフォルト: 1080)")
	httpAddr := c.fs.String("http", "", "モニターを起動するアドレス (例: :8080)")
	if code := c.parse(args); code >= 0 {
		return code
	}

	hub := &c.cfg.Hub
	if c.isSet("cameras") {
		indices, err := config.ParseCameras(*cameras)
		if err != nil {
			log.Error().Err(err).Msg("カメラ番号が不正です")
			return 2
		}
		hub.Cameras = indices
	}
	if c.isSet("interval") {
		hub.Interval = *interval
	}
	if c.isSet("duration") {
		hub.Duration = *duration
	}
	if c.isSet("dir") {
		hub.OutputDir = *dir
	}
	if c.isSet("warmup") {
		hub.WarmUp = *warmUp
	}
	if c.isSet("settle") {
		hub.Settle = *settle
	}
	if c.isSet("width") {
		hub.Resolution.Width = *width
	}
	if c.isSet("height") {
		hub.Resolution.Height = *height
	}
	if code := c.validate(c.cfg.ValidateHub); code >= 0 {
		return code
	}

	keys := preview.StdinKeys(ctx)
	if keys != nil {
		log.Info().Msg("'q' + Enter で撮影を終了します")
	}

	capturer := timelapse.NewHubCapturer(*hub, camera.OpenDevice, timelapse.Options{Keys: keys})

	stopMonitor := startMonitor(ctx, c.cfg, *httpAddr, server.Options{
		ImageDir: hub.OutputDir,
		Cameras:  hub.Cameras,
		Status:   capturer.Session(),
	}, capturer.Session())
	defer stopMonitor()

	res, err := capturer.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("撮影に失敗しました")
		return 1
	}

	log.Info().Int("frames", res.Frames).Int("failures", res.Failures).Str("dir", hub.OutputDir).Msg("撮影が完了しました")
	return 0
}

func assembleCmd(ctx context.Context, args []string) int {
	c := newCommand("assemble", "ディレクトリ内の画像を名前順に並べ、撮影時刻を重ねて動画にします。")
	dir := c.fs.String("dir", "", "画像のあるディレクトリ (デフォルト: my_timelapse)")
	output := c.fs.String("output", "", "出力する動画ファイル (デフォルト: timelapse.mp4)")
	fps := c.fs.Float64("fps", 0, "フレームレート (デフォルト: 30)")
	scale := c.fs.Int("scale", 0, "縮小率 %、50で縦横半分 (デフォルト: 100)")
	noOverlay := c.fs.Bool("no-overlay", false, "撮影時刻を重ねない")
	backend := c.fs.String("backend", "", "書き出し方法 opencv|ffmpeg (デフォルト: opencv)")
	quality := c.fs.Int("quality", 0, "ffmpeg使用時の品質 1-5 (デフォルト: 3)")
	ext := c.fs.String("ext", "", "対象にする画像の拡張子 (デフォルト: .jpg)")
	if code := c.parse(args); code >= 0 {
		return code
	}

	video := &c.cfg.Video
	if c.isSet("dir") {
		video.ImageDir = *dir
	}
	if c.isSet("output") {
		video.Output = *output
	}
	if c.isSet("fps") {
		video.FPS = *fps
	}
	if c.isSet("scale") {
		video.ScalePercent = *scale
	}
	if *noOverlay {
		video.Overlay = false
	}
	if c.isSet("backend") {
		video.Backend = timelapse.Backend(*backend)
	}
	if c.isSet("quality") {
		video.Quality = *quality
	}
	if c.isSet("ext") {
		video.Extension = "." + strings.TrimPrefix(*ext, ".")
	}
	if code := c.validate(c.cfg.ValidateVideo); code >= 0 {
		return code
	}

	res, err := timelapse.NewAssembler(*video).Run(ctx)
	if err != nil {
		if errors.Is(err, timelapse.ErrNoImages) {
			log.Error().Str("dir", video.ImageDir).Msg("画像が見つかりません")
		} else {
			log.Error().Err(err).Msg("動画の作成に失敗しました")
		}
		return 1
	}

	fmt.Printf("%s を作成しました (%s, %d フレーム, %d 枚スキップ)\n", res.Output, res.Size, res.Frames, res.Skipped)
	return 0
}

func devicesCmd(ctx context.Context, args []string) int {
	c := newCommand("devices", "V4L2デバイスの一覧と、対応しているフォーマット・フレームサイズを表示します。")
	if code := c.parse(args); code >= 0 {
		return code
	}

	discovery := camera.NewSystemDiscovery()
	devices, err := discovery.ScanDevices(ctx)
	if err != nil {
		log.Error().Err(err).Msg("カメラを検出できませんでした")
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("カメラが見つかりません")
		return 0
	}

	for _, device := range devices {
		info, err := discovery.GetDeviceInfo(ctx, device)
		if err != nil {
			log.Warn().Err(err).Str("device", device).Msg("デバイス情報を取得できません")
			continue
		}

		fmt.Printf("カメラ %d: %s (%s)\n", info.Index, info.Name, info.Device)
		for _, format := range info.Formats {
			sizes := make([]string, 0, len(format.Resolutions))
			for _, r := range format.Resolutions {
				sizes = append(sizes, r.String())
			}
			fmt.Printf("  %s: %s\n", format.Name, strings.Join(sizes, ", "))
		}
		if maxRes := info.MaxResolution(); !maxRes.IsZero() {
			fmt.Printf("  最大解像度: %s\n", maxRes)
		}
	}
	return 0
}

// startMonitor はaddrが空でなければモニターを起動し、停止用の関数を返す
func startMonitor(ctx context.Context, cfg *config.Config, addr string, opts server.Options, session *timelapse.Session) func() {
	if addr == "" {
		return func() {}
	}

	host, port, err := splitAddr(addr)
	if err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("モニターのアドレスが不正なため起動しません")
		return func() {}
	}
	cfg.Server.Host = host
	cfg.Server.Port = port

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(cfg, opts)
	srv.Watch(session)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Start(ctx); err != nil {
			log.Error().Err(err).Msg("モニターが停止しました")
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// splitAddr は "host:port" または ":port" を分解する
func splitAddr(addr string) (string, int, error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", 0, fmt.Errorf("ポートがありません")
	}

	port, err := strconv.Atoi(addr[i+1:])
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("無効なポート番号: %s", addr[i+1:])
	}

	host := addr[:i]
	if host == "" {
		host = "0.0.0.0"
	}
	return host, port, nil
}
