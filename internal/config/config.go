package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"camlapse/internal/camera"
	"camlapse/internal/timelapse"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Camera    CameraConfig              `yaml:"camera"`
	Timelapse timelapse.Config          `yaml:"timelapse"`
	Hub       timelapse.HubConfig       `yaml:"hub"`
	Video     timelapse.AssembleOptions `yaml:"video"`
	Server    ServerConfig              `yaml:"server"`
}

// ServerConfig はモニター用HTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// CameraConfig は解像度確認とライブプレビューで使うカメラの設定
type CameraConfig struct {
	Index      int               `yaml:"index"`      // 解像度確認するカメラ番号
	Resolution camera.Resolution `yaml:"resolution"` // プレビューで要求する解像度
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			Index:      1,
			Resolution: camera.Resolution{Width: 1920, Height: 1080},
		},
		Timelapse: timelapse.DefaultConfig(),
		Hub:       timelapse.DefaultHubConfig(),
		Video:     timelapse.DefaultAssembleOptions(),
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
	}
}

// Load は設定を読み込む
// デフォルト値、設定ファイル（pathが空なら読まない）、環境変数の順に上書きする
// 値の検証はコマンドラインの上書き後に呼び出し側で行う
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile はYAMLファイルの値で上書きする
func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("設定ファイルを開けません: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("設定ファイルの読み込みに失敗 (%s): %w", path, err)
	}

	return nil
}

// applyEnv は環境変数の値で上書きする
func (c *Config) applyEnv() error {
	if index := getEnvAsIntOrDefault("CAMLAPSE_CAMERA", -1); index >= 0 {
		c.Timelapse.CameraIndex = index
	}

	if dir := getEnvOrDefault("CAMLAPSE_OUTPUT_DIR", ""); dir != "" {
		c.Timelapse.OutputDir = dir
		c.Video.ImageDir = dir
	}

	if value := getEnvOrDefault("CAMLAPSE_INTERVAL", ""); value != "" {
		interval, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("CAMLAPSE_INTERVAL が不正です: %w", err)
		}
		c.Timelapse.Interval = interval
		c.Hub.Interval = interval
	}

	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)

	return nil
}

// Validate は全ての設定の妥当性を検証する
func (c *Config) Validate() error {
	for _, validate := range []func() error{
		c.ValidateServer,
		c.ValidateTimelapse,
		c.ValidateHub,
		c.ValidateVideo,
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateServer はモニター用サーバーの設定を検証する
func (c *Config) ValidateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	return nil
}

// ValidateTimelapse は1台撮影の設定を検証する
func (c *Config) ValidateTimelapse() error {
	if c.Timelapse.Interval <= 0 || c.Timelapse.Duration <= 0 {
		return fmt.Errorf("撮影間隔と撮影時間は正の値にしてください: interval=%s duration=%s",
			c.Timelapse.Interval, c.Timelapse.Duration)
	}
	if c.Timelapse.OutputDir == "" {
		return fmt.Errorf("保存先ディレクトリが設定されていません")
	}
	return nil
}

// ValidateHub は複数カメラ撮影の設定を検証する
func (c *Config) ValidateHub() error {
	if len(c.Hub.Cameras) == 0 {
		return fmt.Errorf("複数カメラ撮影のカメラが設定されていません")
	}
	if c.Hub.Interval <= 0 || c.Hub.Duration <= 0 {
		return fmt.Errorf("複数カメラ撮影の撮影間隔と撮影時間は正の値にしてください")
	}
	if c.Hub.WarmUp < 0 || c.Hub.Settle < 0 {
		return fmt.Errorf("待ち時間に負の値は設定できません")
	}
	if c.Hub.OutputDir == "" {
		return fmt.Errorf("保存先ディレクトリが設定されていません")
	}
	return nil
}

// ValidateVideo は動画作成の設定を検証する
func (c *Config) ValidateVideo() error {
	if c.Video.FPS <= 0 {
		return fmt.Errorf("無効なフレームレート: %v", c.Video.FPS)
	}
	if c.Video.ScalePercent < 1 || c.Video.ScalePercent > 100 {
		return fmt.Errorf("縮小率は1から100の範囲にしてください: %d", c.Video.ScalePercent)
	}
	if c.Video.Quality < 1 || c.Video.Quality > 5 {
		return fmt.Errorf("品質は1から5の範囲にしてください: %d", c.Video.Quality)
	}
	switch c.Video.Backend {
	case timelapse.BackendOpenCV, timelapse.BackendFFmpeg:
	default:
		return fmt.Errorf("未対応のバックエンド: %q", c.Video.Backend)
	}
	return nil
}

// ParseCameras は "1,2,3" をカメラ番号の一覧にする
func ParseCameras(value string) ([]int, error) {
	var indices []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		index, err := strconv.Atoi(part)
		if err != nil || index < 0 {
			return nil, fmt.Errorf("%q は0以上の整数ではありません", part)
		}
		indices = append(indices, index)
	}
	if len(indices) == 0 {
		return nil, errors.New("カメラ番号がありません")
	}
	return indices, nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
