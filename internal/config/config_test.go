package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"camlapse/internal/timelapse"
)

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	// 設定を読み込む
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// サーバー設定の検証
	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("無効なポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}

	// デフォルト値の検証
	if cfg.Camera.Index != 1 {
		t.Errorf("解像度確認のカメラ番号のデフォルト値が違います: %d", cfg.Camera.Index)
	}
	if cfg.Timelapse.Interval != 5*time.Second || cfg.Timelapse.OutputDir != "my_timelapse" {
		t.Errorf("撮影設定のデフォルト値が違います: %+v", cfg.Timelapse)
	}
	if len(cfg.Hub.Cameras) != 2 || cfg.Hub.Interval != 10*time.Minute {
		t.Errorf("複数カメラ撮影のデフォルト値が違います: %+v", cfg.Hub)
	}
	if cfg.Video.FPS != 30 || cfg.Video.Backend != timelapse.BackendOpenCV {
		t.Errorf("動画作成のデフォルト値が違います: %+v", cfg.Video)
	}
}

// TestConfigLoadFile は設定ファイルの読み込みをテストする
func TestConfigLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camlapse.yaml")
	content := `
timelapse:
  camera_index: 0
  interval: 30s
  duration: 2h
  output_dir: balcony
hub:
  cameras: [0, 2, 4]
  warm_up: 5s
video:
  scale_percent: 50
  backend: ffmpeg
server:
  port: 9000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Timelapse.CameraIndex != 0 || cfg.Timelapse.Interval != 30*time.Second || cfg.Timelapse.Duration != 2*time.Hour {
		t.Errorf("撮影設定が反映されていません: %+v", cfg.Timelapse)
	}
	if cfg.Timelapse.OutputDir != "balcony" {
		t.Errorf("保存先が反映されていません: %s", cfg.Timelapse.OutputDir)
	}
	// ファイルにない項目はデフォルト値のまま
	if cfg.Timelapse.Resolution.Width != 1920 || !cfg.Timelapse.Preview {
		t.Errorf("デフォルト値が失われています: %+v", cfg.Timelapse)
	}
	if len(cfg.Hub.Cameras) != 3 || cfg.Hub.WarmUp != 5*time.Second || cfg.Hub.Settle != time.Second {
		t.Errorf("複数カメラ撮影の設定が反映されていません: %+v", cfg.Hub)
	}
	if cfg.Video.ScalePercent != 50 || cfg.Video.Backend != timelapse.BackendFFmpeg {
		t.Errorf("動画作成の設定が反映されていません: %+v", cfg.Video)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("ポートが反映されていません: %d", cfg.Server.Port)
	}
}

// TestConfigLoadFileErrors は読み込めない設定ファイルをテストする
func TestConfigLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.yaml")
	if err := os.WriteFile(unknown, []byte("timelapse:\n  speed: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("video:\n  scale_percent: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.yaml"), unknown} {
		if _, err := Load(path); err == nil {
			t.Errorf("%s: エラーが期待されましたが、エラーが発生しませんでした", filepath.Base(path))
		}
	}

	// 値の範囲は読み込み時ではなく検証時にエラーにする
	cfg, err := Load(invalid)
	if err != nil {
		t.Fatalf("範囲外の値で読み込みが失敗しました: %v", err)
	}
	if err := cfg.ValidateVideo(); err == nil {
		t.Error("縮小率0で検証エラーが期待されました")
	}
	if err := cfg.ValidateTimelapse(); err != nil {
		t.Errorf("関係のない設定で検証エラーが発生しました: %v", err)
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{
			name:      "正常な設定",
			modify:    func(c *Config) {},
			expectErr: false,
		},
		{
			name:      "無効なポート番号",
			modify:    func(c *Config) { c.Server.Port = 99999 },
			expectErr: true,
		},
		{
			name:      "撮影間隔が0",
			modify:    func(c *Config) { c.Timelapse.Interval = 0 },
			expectErr: true,
		},
		{
			name:      "保存先なし",
			modify:    func(c *Config) { c.Timelapse.OutputDir = "" },
			expectErr: true,
		},
		{
			name:      "カメラなし",
			modify:    func(c *Config) { c.Hub.Cameras = nil },
			expectErr: true,
		},
		{
			name:      "負の待ち時間",
			modify:    func(c *Config) { c.Hub.Settle = -time.Second },
			expectErr: true,
		},
		{
			name:      "縮小率が範囲外",
			modify:    func(c *Config) { c.Video.ScalePercent = 150 },
			expectErr: true,
		},
		{
			name:      "品質が範囲外",
			modify:    func(c *Config) { c.Video.Quality = 0 },
			expectErr: true,
		},
		{
			name:      "未対応のバックエンド",
			modify:    func(c *Config) { c.Video.Backend = "gstreamer" },
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	expected := "192.168.1.100:9090"
	actual := cfg.ServerAddress()

	if actual != expected {
		t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, expected)
	}
}

// TestParseCameras はカメラ番号の解析をテストする
func TestParseCameras(t *testing.T) {
	tests := []struct {
		value   string
		want    []int
		wantErr bool
	}{
		{"1,2", []int{1, 2}, false},
		{" 0, 3 ,", []int{0, 3}, false},
		{"2", []int{2}, false},
		{"", nil, true},
		{"1,a", nil, true},
		{"-1", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseCameras(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("エラーの有無が一致しません: err = %v, wantErr = %v", err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("カメラ番号が一致しません: got %v, want %v", got, tt.want)
			}
		})
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
// 注意: このテストは環境変数を変更するため、parallelは使わない
func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("SERVER_HOST", "test.example.com")
	t.Setenv("PORT", "9999")
	t.Setenv("CAMLAPSE_CAMERA", "3")
	t.Setenv("CAMLAPSE_OUTPUT_DIR", "garden")
	t.Setenv("CAMLAPSE_INTERVAL", "1m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "test.example.com" {
		t.Errorf("環境変数のホストが反映されていません: got %s, want test.example.com", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("環境変数のポートが反映されていません: got %d, want 9999", cfg.Server.Port)
	}
	if cfg.Timelapse.CameraIndex != 3 {
		t.Errorf("環境変数のカメラ番号が反映されていません: %d", cfg.Timelapse.CameraIndex)
	}
	if cfg.Timelapse.OutputDir != "garden" || cfg.Video.ImageDir != "garden" {
		t.Errorf("環境変数の保存先が反映されていません: %s, %s", cfg.Timelapse.OutputDir, cfg.Video.ImageDir)
	}
	if cfg.Timelapse.Interval != time.Minute || cfg.Hub.Interval != time.Minute {
		t.Errorf("環境変数の撮影間隔が反映されていません: %s, %s", cfg.Timelapse.Interval, cfg.Hub.Interval)
	}
}

// TestEnvironmentVariablesZeroInterval は0の撮影間隔が読み込み後の検証で弾かれることをテストする
func TestEnvironmentVariablesZeroInterval(t *testing.T) {
	t.Setenv("CAMLAPSE_INTERVAL", "0s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("読み込みは成功するはずです: %v", err)
	}
	if err := cfg.ValidateTimelapse(); err == nil {
		t.Error("1台撮影の検証エラーが期待されました")
	}
	if err := cfg.ValidateHub(); err == nil {
		t.Error("複数カメラ撮影の検証エラーが期待されました")
	}
	if err := cfg.ValidateVideo(); err != nil {
		t.Errorf("動画作成の設定は影響を受けないはずです: %v", err)
	}

	// コマンドラインで上書きすれば通る
	cfg.Timelapse.Interval = 5 * time.Second
	if err := cfg.ValidateTimelapse(); err != nil {
		t.Errorf("上書き後に検証エラーが発生しました: %v", err)
	}
}

// TestEnvironmentVariablesInvalidInterval は不正な撮影間隔をテストする
func TestEnvironmentVariablesInvalidInterval(t *testing.T) {
	t.Setenv("CAMLAPSE_INTERVAL", "soon")

	if _, err := Load(""); err == nil {
		t.Error("エラーが期待されましたが、エラーが発生しませんでした")
	}
}
