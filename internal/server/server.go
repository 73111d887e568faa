package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"camlapse/internal/config"
	"camlapse/internal/timelapse"
)

// StatusSource は撮影セッションの状態を返す。*timelapse.Session が満たす
type StatusSource interface {
	Status() timelapse.Status
}

// Options はモニターが公開する対象
type Options struct {
	ImageDir  string       // 画像の保存先
	Cameras   []int        // 複数カメラ撮影の場合のカメラ番号。空なら ImageDir 直下を見る
	VideoDir  string       // 動画ファイルの置き場所
	Extension string       // 画像の拡張子
	Status    StatusSource // 同じプロセスで撮影中の場合のみ
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	opts       Options
	engine     *gin.Engine
	httpServer *http.Server
	frames     *frameHub
	composer   *timelapse.MosaicComposer

	mu        sync.Mutex
	published string   // 最後にストリームへ流した画像
	addr      net.Addr // 待ち受け中のアドレス
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, opts Options) *Server {
	if opts.Extension == "" {
		opts.Extension = timelapse.ImageExt
	}
	if opts.VideoDir == "" {
		opts.VideoDir = "."
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		config:   cfg,
		opts:     opts,
		engine:   engine,
		frames:   newFrameHub(),
		composer: timelapse.NewMosaicComposer(1280, 720, 3),
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
	s.httpServer.RegisterOnShutdown(s.frames.close)
	s.setupRoutes()

	return s
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	// ヘルスチェックエンドポイント
	s.engine.GET("/health", s.handleHealth)

	// APIエンドポイント
	api := s.engine.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/images", s.handleImages)
	api.GET("/videos", s.handleVideos)
	api.GET("/latest.jpg", s.handleLatest)
	api.GET("/mosaic.jpg", s.handleMosaic)

	// 新しく保存された画像のMJPEG
	s.engine.GET("/stream", s.handleStream)

	// ルートハンドラ
	s.engine.GET("/", s.handleRoot)
}

// Watch は撮影セッションに保存された画像をストリームへ流す
func (s *Server) Watch(session *timelapse.Session) {
	session.OnSaved(func(_ int, path string) {
		s.publish(path)
	})
}

// PollLatest は保存先の最新画像を定期的に確認し、新しければストリームへ流す
// 別プロセスで撮影している場合に使う
func (s *Server) PollLatest(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if img, err := s.latestImage(-1); err == nil {
			s.publish(img.Path)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// publish は画像ファイルを読み込んでストリームを更新する
func (s *Server) publish(path string) {
	s.mu.Lock()
	if s.published == path {
		s.mu.Unlock()
		return
	}
	s.published = path
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("ストリーム用の画像を読み込めません")
		return
	}
	s.frames.publish(data)
}

// Start はサーバーを起動し、コンテキストが終了したらシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("HTTPサーバーを起動しています")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Debug().Msg("コンテキストがキャンセルされました")
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Addr は待ち受け中のアドレスを返す。起動前はnil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	log.Info().Msg("サーバーをシャットダウンしています...")

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Info().Msg("サーバーが正常にシャットダウンされました")
	return nil
}

// requestLogger はリクエストをzerologに記録するミドルウェア
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("リクエスト")
	}
}
