package voice

import "time"

// TurnMetrics is the latency breakdown of one conversation turn, in
// milliseconds. It rides on the speak message so clients can see where
// the time went.
type TurnMetrics struct {
	SttMs   int64 `json:"stt_ms"`
	LlmMs   int64 `json:"llm_ms"`
	TtsMs   int64 `json:"tts_ms"`
	TotalMs int64 `json:"total_ms"`
}

// TurnTimer marks stage boundaries within a single turn. Stages that
// did not run report zero; typed input has no transcription stage.
type TurnTimer struct {
	start      time.Time
	transcript time.Time
	reply      time.Time
	audio      time.Time
}

// NewTurnTimer starts timing a turn.
func NewTurnTimer() *TurnTimer {
	return &TurnTimer{start: time.Now()}
}

// MarkTranscript records the end of transcription.
func (t *TurnTimer) MarkTranscript() {
	t.transcript = time.Now()
}

// MarkReply records the end of generation.
func (t *TurnTimer) MarkReply() {
	t.reply = time.Now()
}

// MarkAudio records the end of synthesis.
func (t *TurnTimer) MarkAudio() {
	t.audio = time.Now()
}

// Metrics computes the per-stage breakdown from the recorded marks.
// Each stage is measured from the previous completed mark, so the
// stages sum to the total.
func (t *TurnTimer) Metrics() TurnMetrics {
	var m TurnMetrics
	last := t.start
	if !t.transcript.IsZero() {
		m.SttMs = t.transcript.Sub(last).Milliseconds()
		last = t.transcript
	}
	if !t.reply.IsZero() {
		m.LlmMs = t.reply.Sub(last).Milliseconds()
		last = t.reply
	}
	if !t.audio.IsZero() {
		m.TtsMs = t.audio.Sub(last).Milliseconds()
		last = t.audio
	}
	m.TotalMs = last.Sub(t.start).Milliseconds()
	return m
}
