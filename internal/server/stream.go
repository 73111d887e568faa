package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// frameBoundary はMJPEGのパート区切り
const frameBoundary = "frame"

// frameHub は最後に保存された画像を接続中の全クライアントに配る
type frameHub struct {
	mu      sync.Mutex
	latest  []byte
	clients map[chan []byte]struct{}
	done    chan struct{}
	closed  bool
}

func newFrameHub() *frameHub {
	return &frameHub{
		clients: make(map[chan []byte]struct{}),
		done:    make(chan struct{}),
	}
}

// subscribe はクライアントを登録し、受信チャンネルと登録時点の最新画像を返す
func (h *frameHub) subscribe() (chan []byte, []byte, func()) {
	ch := make(chan []byte, 1)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	latest := h.latest
	h.mu.Unlock()

	return ch, latest, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}
}

// publish は最新画像を更新する。受信が遅いクライアントには古い画像を捨てて新しい方を渡す
func (h *frameHub) publish(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = frame
	for ch := range h.clients {
		select {
		case <-ch:
		default:
		}
		ch <- frame
	}
}

// close は配信中のハンドラを全て終了させる
func (h *frameHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.closed {
		h.closed = true
		close(h.done)
	}
}

// handleStream は新しく保存された画像をMJPEGで配信する
// 接続直後に最新の画像を送り、クライアント切断かサーバー停止で終了する
func (s *Server) handleStream(c *gin.Context) {
	frames, latest, unsubscribe := s.frames.subscribe()
	defer unsubscribe()

	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+frameBoundary)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	// ストリームはWriteTimeoutより長く続くので書き込み期限を外す
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug().Err(err).Msg("書き込み期限を解除できません")
	}
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	if latest != nil && !writeFrame(c.Writer, latest) {
		return
	}

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			return
		case <-s.frames.done:
			return
		case frame := <-frames:
			if !writeFrame(c.Writer, frame) {
				return
			}
		}
	}
}

// writeFrame はMJPEGのパートを1つ書き込む。書き込めなければfalseを返す
func writeFrame(w gin.ResponseWriter, frame []byte) bool {
	parts := [][]byte{
		[]byte("--" + frameBoundary + "\r\n"),
		[]byte("Content-Type: image/jpeg\r\n\r\n"),
		frame,
		[]byte("\r\n"),
	}
	for _, part := range parts {
		if _, err := w.Write(part); err != nil {
			return false
		}
	}

	// バッファをフラッシュ
	w.Flush()
	return true
}
