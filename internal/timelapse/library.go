package timelapse

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Image は保存済みの撮影画像
type Image struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	TakenAt time.Time `json:"taken_at,omitempty"` // ファイル名から読み取れない場合はゼロ値
}

// Video は作成済みの動画ファイル
type Video struct {
	Name     string    `json:"name"`
	FilePath string    `json:"file_path"` // ファイルパス
	FileSize int64     `json:"file_size"` // ファイルサイズ
	Date     time.Time `json:"date"`      // 更新日
}

// ListImages はディレクトリ内の指定拡張子の画像をファイル名順に返す
// ディレクトリが存在しない場合は空のリストを返す
func ListImages(dir, ext string) ([]Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Image{}, nil
		}
		return nil, fmt.Errorf("ディレクトリの読み取りに失敗: %w", err)
	}

	images := make([]Image, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name(), ext) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warn().Err(err).Str("name", entry.Name()).Msg("ファイル情報の取得に失敗")
			continue
		}

		img := Image{
			Name: entry.Name(),
			Path: filepath.Join(dir, entry.Name()),
			Size: info.Size(),
		}
		if t, err := ParseTimestamp(entry.Name()); err == nil {
			img.TakenAt = t
		}
		images = append(images, img)
	}

	// ファイル名の時刻表記は辞書順で時系列になる
	sort.Slice(images, func(i, j int) bool {
		return images[i].Name < images[j].Name
	})

	return images, nil
}

// LatestImage はディレクトリ内で最も新しい画像を返す。1枚もなければ ErrNoImages
func LatestImage(dir, ext string) (Image, error) {
	images, err := ListImages(dir, ext)
	if err != nil {
		return Image{}, err
	}
	if len(images) == 0 {
		return Image{}, fmt.Errorf("%s: %w", dir, ErrNoImages)
	}
	return images[len(images)-1], nil
}

// ListVideos はディレクトリ内の動画ファイル一覧を返す
func ListVideos(dir string) ([]Video, error) {
	videos := []Video{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return videos, nil // ディレクトリが存在しない場合は空のリストを返す
		}
		return nil, fmt.Errorf("ディレクトリの読み取りに失敗: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".mp4" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warn().Err(err).Str("name", entry.Name()).Msg("ファイル情報の取得に失敗")
			continue
		}

		videos = append(videos, Video{
			Name:     entry.Name(),
			FilePath: filepath.Join(dir, entry.Name()),
			FileSize: info.Size(),
			Date:     info.ModTime(),
		})
	}

	return videos, nil
}
