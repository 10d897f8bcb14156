package audio

import (
	"encoding/binary"
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrameMs is the longest frame duration Opus allows.
const maxOpusFrameMs = 120

// OpusDecoder decodes Opus frames into 16-bit little-endian PCM bytes.
// One decoder per stream; Opus decoding is stateful across frames.
type OpusDecoder struct {
	dec        *opus.Decoder
	sampleRate int
	channels   int
	frame      []int16
}

// NewOpusDecoder creates a decoder for the given output format.
func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{
		dec:        dec,
		sampleRate: sampleRate,
		channels:   channels,
		frame:      make([]int16, sampleRate*maxOpusFrameMs/1000*channels),
	}, nil
}

// DecodePCM16 decodes a single Opus frame and returns the samples as
// 16-bit little-endian PCM bytes.
func (d *OpusDecoder) DecodePCM16(frame []byte) ([]byte, error) {
	n, err := d.dec.Decode(frame, d.frame)
	if err != nil {
		return nil, fmt.Errorf("audio: decode opus frame: %w", err)
	}

	samples := d.frame[:n*d.channels]
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out, nil
}

// SampleRate returns the decoder's output sample rate.
func (d *OpusDecoder) SampleRate() int { return d.sampleRate }

// Channels returns the decoder's output channel count.
func (d *OpusDecoder) Channels() int { return d.channels }
