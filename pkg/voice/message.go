package voice

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the kind of message in the envelope.
type MessageType string

// Client → server message types.
const (
	// TypeAudio carries one audio chunk of the pending utterance.
	TypeAudio MessageType = "audio"

	// TypeCommit marks the end of an utterance and triggers a turn.
	TypeCommit MessageType = "commit"

	// TypeText carries typed input, bypassing transcription.
	TypeText MessageType = "text"

	// TypeReset clears the conversation history and pending audio.
	TypeReset MessageType = "reset"

	// TypePing requests a pong for latency measurement.
	TypePing MessageType = "ping"
)

// Server → client message types.
const (
	// TypeTranscript echoes the recognized utterance back to the client.
	TypeTranscript MessageType = "transcript"

	// TypeReply carries the generated assistant text.
	TypeReply MessageType = "reply"

	// TypeSpeak carries synthesized reply audio plus per-turn latency.
	TypeSpeak MessageType = "speak"

	// TypeError reports a failure with its error kind.
	TypeError MessageType = "error"

	// TypePong answers a ping.
	TypePong MessageType = "pong"
)

// Audio chunk formats accepted in AudioData.Format.
const (
	FormatPCM16 = "pcm16"
	FormatOpus  = "opus"
	FormatWAV   = "wav"
)

// Message is the envelope for all WebSocket traffic in a voice session.
// Messages are JSON text frames; binary payloads ride base64-encoded
// inside the data field.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// AudioData is one audio chunk of the pending utterance.
type AudioData struct {
	Format     string `json:"format"`                // "pcm16", "opus", or "wav"
	SampleRate int    `json:"sample_rate,omitempty"` // Hz, defaults to 16000
	Data       string `json:"data"`                  // base64 encoded
}

// TextData is typed user input that skips transcription.
type TextData struct {
	Text string `json:"text"`
}

// TranscriptData is the recognized text of a committed utterance.
type TranscriptData struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// ReplyData is the generated assistant reply.
type ReplyData struct {
	Text string `json:"text"`
}

// SpeakData is synthesized reply audio with the turn's latency breakdown.
type SpeakData struct {
	Format     string      `json:"format"` // vendor encoding, e.g. "wav", "mp3_44100_128"
	SampleRate int         `json:"sample_rate,omitempty"`
	MIME       string      `json:"mime,omitempty"`
	Data       string      `json:"data"` // base64 encoded
	Metrics    TurnMetrics `json:"metrics"`
}

// ErrorData reports a failed operation to the client.
type ErrorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// PingData is sent by the client to measure round-trip latency.
type PingData struct {
	ID        string `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PongData answers a ping with both timestamps.
type PongData struct {
	ID        string `json:"id,omitempty"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}

// NewMessage creates a message with the current timestamp and a
// JSON-encoded payload. A nil payload leaves the data field empty.
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	msg := &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}
		msg.Data = raw
	}
	return msg, nil
}

// ParseMessage decodes a raw WebSocket frame into a message envelope.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return &msg, nil
}

// ParseData unmarshals the payload into v.
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return fmt.Errorf("message has no data")
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes serializes the message for sending.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// NewAudioMessage creates an audio chunk message from raw bytes.
func NewAudioMessage(format string, sampleRate int, audio []byte) (*Message, error) {
	return NewMessage(TypeAudio, AudioData{
		Format:     format,
		SampleRate: sampleRate,
		Data:       base64.StdEncoding.EncodeToString(audio),
	})
}

// NewTextMessage creates a typed-input message.
func NewTextMessage(text string) (*Message, error) {
	return NewMessage(TypeText, TextData{Text: text})
}

// NewCommitMessage creates an end-of-utterance message.
func NewCommitMessage() (*Message, error) {
	return NewMessage(TypeCommit, nil)
}

// NewResetMessage creates a history-reset message.
func NewResetMessage() (*Message, error) {
	return NewMessage(TypeReset, nil)
}

// NewPingMessage creates a ping message.
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewTranscriptMessage creates a transcript message.
func NewTranscriptMessage(text, language string) (*Message, error) {
	return NewMessage(TypeTranscript, TranscriptData{
		Text:     text,
		Language: language,
	})
}

// NewReplyMessage creates a reply message.
func NewReplyMessage(text string) (*Message, error) {
	return NewMessage(TypeReply, ReplyData{Text: text})
}

// NewSpeakMessage creates a speak message from synthesized audio.
func NewSpeakMessage(format string, sampleRate int, mime string, audio []byte, metrics TurnMetrics) (*Message, error) {
	return NewMessage(TypeSpeak, SpeakData{
		Format:     format,
		SampleRate: sampleRate,
		MIME:       mime,
		Data:       base64.StdEncoding.EncodeToString(audio),
		Metrics:    metrics,
	})
}

// NewErrorMessage creates an error message carrying a typed kind.
func NewErrorMessage(kind, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{
		Kind:    kind,
		Message: message,
	})
}

// NewPongMessage creates a pong answering the given ping.
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// GetAudioData extracts the audio payload from a message.
func (m *Message) GetAudioData() (*AudioData, error) {
	var data AudioData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Decode returns the raw audio bytes of the chunk.
func (a *AudioData) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Data)
}

// GetTextData extracts the typed-input payload from a message.
func (m *Message) GetTextData() (*TextData, error) {
	var data TextData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTranscriptData extracts the transcript payload from a message.
func (m *Message) GetTranscriptData() (*TranscriptData, error) {
	var data TranscriptData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetReplyData extracts the reply payload from a message.
func (m *Message) GetReplyData() (*ReplyData, error) {
	var data ReplyData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSpeakData extracts the speak payload from a message.
func (m *Message) GetSpeakData() (*SpeakData, error) {
	var data SpeakData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Decode returns the raw synthesized audio bytes.
func (s *SpeakData) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(s.Data)
}

// GetErrorData extracts the error payload from a message.
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts the ping payload from a message.
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts the pong payload from a message.
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
