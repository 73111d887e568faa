package camera

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultCandidates は解像度チェックで試す解像度一覧
// 大きすぎる要求はデバイス側で最大解像度に丸められる
var DefaultCandidates = []Candidate{
	{Resolution: Resolution{Width: 1920, Height: 1080}, Label: "FHD (1080p)"},
	{Resolution: Resolution{Width: 1280, Height: 720}, Label: "HD (720p)"},
	{Resolution: Resolution{Width: 640, Height: 480}, Label: "VGA (480p)"},
	{Resolution: Resolution{Width: 3840, Height: 2160}, Label: "4K (UHD)"},
}

// ProbeResult は1つの要求解像度に対する結果
type ProbeResult struct {
	Candidate Candidate
	Actual    Resolution // 要求後に読み戻した解像度
}

// Supported は要求した解像度がそのまま受け入れられたかを返す
func (r ProbeResult) Supported() bool {
	return r.Actual == r.Candidate.Resolution
}

// ProbeReport は解像度チェックの結果
type ProbeReport struct {
	Index   int
	Default Resolution
	Results []ProbeResult
}

// WriteTo はレポートを人が読める形式で書き出す
func (r *ProbeReport) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "--- Checking Camera %d ---\n", r.Index)
	fmt.Fprintf(&b, "Default Resolution: %s\n", r.Default)
	b.WriteString("\nTesting capabilities...\n")
	for _, res := range r.Results {
		c := res.Candidate
		if res.Supported() {
			fmt.Fprintf(&b, " [SUCCESS] Supports %s: %s\n", c.Label, c.Resolution)
		} else {
			fmt.Fprintf(&b, " [FAILED]  Requested %s (%s) -> Got %s\n", c.Label, c.Resolution, res.Actual)
		}
	}
	b.WriteString("-----------------------------------\n")

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Prober はカメラが受け入れる解像度を調べる
type Prober struct {
	open       Opener
	candidates []Candidate
}

// NewProber は新しいProberを作成する
// candidates が空の場合は DefaultCandidates を使う
func NewProber(open Opener, candidates []Candidate) *Prober {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	return &Prober{
		open:       open,
		candidates: candidates,
	}
}

// Probe はカメラを開き、各候補解像度を要求して読み戻す
func (p *Prober) Probe(index int) (*ProbeReport, error) {
	dev, err := p.open(index)
	if err != nil {
		return nil, fmt.Errorf("カメラ %d を開けませんでした: %w", index, err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Warn().Err(err).Int("camera", index).Msg("カメラの解放に失敗")
		}
	}()

	report := &ProbeReport{
		Index:   index,
		Default: CurrentResolution(dev),
		Results: make([]ProbeResult, 0, len(p.candidates)),
	}

	for _, c := range p.candidates {
		actual := ApplyResolution(dev, c.Resolution)
		report.Results = append(report.Results, ProbeResult{
			Candidate: c,
			Actual:    actual,
		})
		log.Debug().Int("camera", index).Str("requested", c.Resolution.String()).Str("actual", actual.String()).Msg("解像度を確認")
	}

	return report, nil
}
