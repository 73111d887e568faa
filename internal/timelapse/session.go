package timelapse

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State は撮影セッションの状態
type State string

// State の定数定義
const (
	StateIdle      State = "idle"      // 開始前
	StateRecording State = "recording" // 撮影中
	StateCompleted State = "completed" // 予定時間まで撮影した
	StateStopped   State = "stopped"   // 途中で止められた
	StateError     State = "error"     // エラーで終了した
)

// Status は撮影セッションの現在状態
type Status struct {
	SessionID   string      `json:"session_id"`
	Mode        string      `json:"mode"` // "single" か "hub"
	State       State       `json:"state"`
	OutputDir   string      `json:"output_dir"`
	StartedAt   time.Time   `json:"started_at"`
	EndsAt      time.Time   `json:"ends_at"`
	Frames      int         `json:"frames"`
	PerCamera   map[int]int `json:"per_camera"`
	LastFile    string      `json:"last_file,omitempty"`
	LastSavedAt time.Time   `json:"last_saved_at"`
}

// SavedFunc は画像が保存されるたびに呼ばれる
type SavedFunc func(cameraIndex int, path string)

// Session は1回の撮影の進捗を保持する。モニターから並行に参照される
type Session struct {
	mu        sync.RWMutex
	status    Status
	listeners []SavedFunc
}

// NewSession は新しいSessionを作成する
func NewSession(mode, outputDir string) *Session {
	return &Session{
		status: Status{
			SessionID: uuid.NewString(),
			Mode:      mode,
			State:     StateIdle,
			OutputDir: outputDir,
			PerCamera: make(map[int]int),
		},
	}
}

// OnSaved は画像保存時のリスナーを登録する
func (s *Session) OnSaved(fn SavedFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Begin は撮影開始を記録する
func (s *Session) Begin(start, end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.State = StateRecording
	s.status.StartedAt = start
	s.status.EndsAt = end
}

// Saved は画像の保存を記録し、リスナーに通知する
func (s *Session) Saved(cameraIndex int, path string, at time.Time) {
	s.mu.Lock()
	s.status.Frames++
	s.status.PerCamera[cameraIndex]++
	s.status.LastFile = path
	s.status.LastSavedAt = at
	listeners := make([]SavedFunc, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	// ロックを持ったままリスナーを呼ばない
	for _, fn := range listeners {
		fn(cameraIndex, path)
	}
}

// Finish は撮影終了を記録する
func (s *Session) Finish(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = state
}

// Status は現在状態のコピーを返す
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := s.status
	status.PerCamera = make(map[int]int, len(s.status.PerCamera))
	for k, v := range s.status.PerCamera {
		status.PerCamera[k] = v
	}
	return status
}
