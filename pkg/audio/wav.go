// Package audio provides the small set of audio helpers the backend needs:
// WAV validation and framing for the canonical capture format, and Opus
// frame decoding for realtime voice sessions.
//
// The canonical capture format is 16 kHz mono 16-bit PCM, which every
// transcription provider in the registry accepts.
package audio

import (
	"encoding/binary"
	"time"
)

// Canonical capture format.
const (
	SampleRate = 16000
	Channels   = 1
	BitDepth   = 16
)

// wavHeaderLen is the byte length of a minimal RIFF/WAVE header.
const wavHeaderLen = 44

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	if len(data) < wavHeaderLen {
		return false
	}
	return string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// FromPCM16 wraps raw 16-bit little-endian PCM samples in a WAV container.
func FromPCM16(pcm []byte, sampleRate, channels int) []byte {
	out := make([]byte, wavHeaderLen+len(pcm))
	writeWAVHeader(out, len(pcm), sampleRate, channels, BitDepth)
	copy(out[wavHeaderLen:], pcm)
	return out
}

// Header returns a standalone WAV header for a PCM payload of dataLen bytes.
func Header(dataLen, sampleRate, channels, bitDepth int) []byte {
	out := make([]byte, wavHeaderLen)
	writeWAVHeader(out, dataLen, sampleRate, channels, bitDepth)
	return out
}

func writeWAVHeader(buf []byte, dataLen, sampleRate, channels, bitDepth int) {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitDepth))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
}

// PCMDuration estimates the playback duration of a raw PCM payload.
func PCMDuration(dataLen, sampleRate, channels, bitDepth int) time.Duration {
	byteRate := sampleRate * channels * bitDepth / 8
	if byteRate == 0 {
		return 0
	}
	return time.Duration(dataLen) * time.Second / time.Duration(byteRate)
}
