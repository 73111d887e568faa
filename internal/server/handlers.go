package server

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"camlapse/internal/timelapse"
)

// errUnknownCamera は撮影対象にないカメラ番号が指定されたことを表す
var errUnknownCamera = errors.New("指定されたカメラは撮影対象ではありません")

// ErrorResponse はエラー時のレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse は /api/status のレスポンス
type StatusResponse struct {
	Status    string            `json:"status"`
	ImageDir  string            `json:"image_dir"`
	Cameras   []int             `json:"cameras"`
	Session   *timelapse.Status `json:"session,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func abortWithError(c *gin.Context, code int, kind, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:     kind,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// handleHealth はヘルスチェックエンドポイント
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// handleStatus はステータス確認エンドポイント
func (s *Server) handleStatus(c *gin.Context) {
	response := StatusResponse{
		Status:    "running",
		ImageDir:  s.opts.ImageDir,
		Cameras:   s.opts.Cameras,
		Timestamp: time.Now(),
	}

	if s.opts.Status != nil {
		status := s.opts.Status.Status()
		response.Session = &status
	}

	c.JSON(http.StatusOK, response)
}

// handleImages は保存済み画像の一覧
func (s *Server) handleImages(c *gin.Context) {
	index, ok := s.cameraParam(c)
	if !ok {
		return
	}

	dir, err := s.imageDir(index)
	if err != nil {
		abortWithError(c, http.StatusNotFound, "camera_not_found", err.Error())
		return
	}

	images, err := timelapse.ListImages(dir, s.opts.Extension)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"images": images, "count": len(images)})
}

// handleVideos は作成済み動画の一覧
func (s *Server) handleVideos(c *gin.Context) {
	videos, err := timelapse.ListVideos(s.opts.VideoDir)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

// handleLatest は最新の画像を返す。width を指定すると縮小する
func (s *Server) handleLatest(c *gin.Context) {
	index, ok := s.cameraParam(c)
	if !ok {
		return
	}

	width := 0
	if value := c.Query("width"); value != "" {
		w, err := strconv.Atoi(value)
		if err != nil || w <= 0 {
			abortWithError(c, http.StatusBadRequest, "invalid_width", "width は正の整数で指定してください")
			return
		}
		width = w
	}

	img, err := s.latestImage(index)
	if err != nil {
		if errors.Is(err, errUnknownCamera) {
			abortWithError(c, http.StatusNotFound, "camera_not_found", err.Error())
			return
		}
		abortWithError(c, http.StatusNotFound, "no_images", "まだ画像がありません")
		return
	}

	c.Header("Cache-Control", "no-cache")
	if width == 0 {
		c.File(img.Path)
		return
	}

	src, err := imaging.Open(img.Path)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "decode_failed", err.Error())
		return
	}
	if width < src.Bounds().Dx() {
		src = imaging.Resize(src, width, 0, imaging.Lanczos)
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "image/jpeg")
	if err := imaging.Encode(c.Writer, src, imaging.JPEG); err != nil {
		log.Warn().Err(err).Str("path", img.Path).Msg("画像の送信に失敗")
	}
}

// handleMosaic は各カメラの最新画像を並べた画像を返す
func (s *Server) handleMosaic(c *gin.Context) {
	latest := make(map[int]string)
	if len(s.opts.Cameras) == 0 {
		if img, err := timelapse.LatestImage(s.opts.ImageDir, s.opts.Extension); err == nil {
			latest[0] = img.Path
		}
	}
	for _, index := range s.opts.Cameras {
		img, err := timelapse.LatestImage(timelapse.CameraDir(s.opts.ImageDir, index), s.opts.Extension)
		if err != nil {
			continue
		}
		latest[index] = img.Path
	}

	mosaic, err := s.composer.Compose(latest)
	if err != nil {
		abortWithError(c, http.StatusNotFound, "no_images", "まだ画像がありません")
		return
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "image/jpeg")
	c.Header("Cache-Control", "no-cache")
	if err := s.composer.Encode(c.Writer, mosaic); err != nil {
		log.Warn().Err(err).Msg("画像の送信に失敗")
	}
}

// handleRoot はルートパスのハンドラ
func (s *Server) handleRoot(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", getIndexHTML())
}

// ヘルパー関数

// cameraParam は camera クエリを読み取る。指定がなければ-1
func (s *Server) cameraParam(c *gin.Context) (int, bool) {
	value := c.Query("camera")
	if value == "" {
		return -1, true
	}

	index, err := strconv.Atoi(value)
	if err != nil || index < 0 {
		abortWithError(c, http.StatusBadRequest, "invalid_camera", "camera は0以上の整数で指定してください")
		return 0, false
	}
	return index, true
}

// imageDir はカメラ番号に対応する画像ディレクトリを返す
func (s *Server) imageDir(index int) (string, error) {
	// 1台撮影ではカメラ番号を見ない
	if len(s.opts.Cameras) == 0 {
		return s.opts.ImageDir, nil
	}

	if index < 0 {
		index = s.opts.Cameras[0]
	}
	if !slices.Contains(s.opts.Cameras, index) {
		return "", errUnknownCamera
	}
	return timelapse.CameraDir(s.opts.ImageDir, index), nil
}

// latestImage は最新の画像を返す。index が-1なら全カメラの中で最も新しいもの
func (s *Server) latestImage(index int) (timelapse.Image, error) {
	if index >= 0 || len(s.opts.Cameras) == 0 {
		dir, err := s.imageDir(index)
		if err != nil {
			return timelapse.Image{}, err
		}
		return timelapse.LatestImage(dir, s.opts.Extension)
	}

	var newest timelapse.Image
	for _, cam := range s.opts.Cameras {
		img, err := timelapse.LatestImage(timelapse.CameraDir(s.opts.ImageDir, cam), s.opts.Extension)
		if err != nil {
			continue
		}
		if newest.Path == "" || img.Name > newest.Name {
			newest = img
		}
	}
	if newest.Path == "" {
		return newest, timelapse.ErrNoImages
	}
	return newest, nil
}
