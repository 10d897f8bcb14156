package audio_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/lumenlabs/go-wren/pkg/audio"
)

func TestIsWAV(t *testing.T) {
	t.Run("valid header", func(t *testing.T) {
		wav := audio.FromPCM16(make([]byte, 320), audio.SampleRate, audio.Channels)
		if !audio.IsWAV(wav) {
			t.Error("expected FromPCM16 output to validate")
		}
	})

	t.Run("too short", func(t *testing.T) {
		if audio.IsWAV([]byte("RIFF")) {
			t.Error("expected short payload to fail")
		}
	})

	t.Run("wrong magic", func(t *testing.T) {
		data := make([]byte, 64)
		copy(data, "RIFX")
		if audio.IsWAV(data) {
			t.Error("expected non-RIFF payload to fail")
		}
	})

	t.Run("riff without wave", func(t *testing.T) {
		data := make([]byte, 64)
		copy(data[0:4], "RIFF")
		copy(data[8:12], "AVI ")
		if audio.IsWAV(data) {
			t.Error("expected non-WAVE payload to fail")
		}
	})
}

func TestFromPCM16Header(t *testing.T) {
	pcm := make([]byte, 3200) // 100ms at 16kHz mono PCM16
	wav := audio.FromPCM16(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(wav))
	}

	t.Run("riff size", func(t *testing.T) {
		if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
			t.Errorf("expected riff size %d, got %d", 36+len(pcm), got)
		}
	})

	t.Run("format fields", func(t *testing.T) {
		if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
			t.Errorf("expected PCM format 1, got %d", got)
		}
		if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
			t.Errorf("expected 1 channel, got %d", got)
		}
		if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
			t.Errorf("expected 16000 Hz, got %d", got)
		}
		if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
			t.Errorf("expected byte rate 32000, got %d", got)
		}
		if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
			t.Errorf("expected 16-bit depth, got %d", got)
		}
	})

	t.Run("data chunk", func(t *testing.T) {
		if string(wav[36:40]) != "data" {
			t.Errorf("expected data chunk marker, got %q", wav[36:40])
		}
		if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
			t.Errorf("expected data length %d, got %d", len(pcm), got)
		}
	})
}

func TestPCMDuration(t *testing.T) {
	tests := []struct {
		name    string
		dataLen int
		rate    int
		want    time.Duration
	}{
		{"one second 16k mono", 32000, 16000, time.Second},
		{"half second 16k mono", 16000, 16000, 500 * time.Millisecond},
		{"one second 24k mono", 48000, 24000, time.Second},
		{"empty", 0, 16000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.PCMDuration(tt.dataLen, tt.rate, 1, 16)
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	t.Run("zero rate does not divide by zero", func(t *testing.T) {
		if got := audio.PCMDuration(32000, 0, 1, 16); got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})
}
