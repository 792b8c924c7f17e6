package capture

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Wire format for UDP audio frames.
// Layout: [Magic:2][Channels:1][Reserved:1][Sequence:4][Samples:N*4*Channels]
// Header fields are big-endian; sample payloads are little-endian float32,
// interleaved across channels.
const (
	FrameMagic      = 0x5341
	FrameHeaderSize = 8

	MaxFrameChannels = 2
)

// FrameHeader is the 8-byte frame header.
type FrameHeader struct {
	Magic    uint16
	Channels uint8
	Reserved uint8
	Sequence uint32
}

// Frame is a parsed audio frame with per-channel sample sequences.
type Frame struct {
	Header  FrameHeader
	Samples [][]float32
}

// ParseFrame parses a raw datagram into a frame.
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, fmt.Errorf("frame too short: expected at least %d bytes, got %d", FrameHeaderSize, len(data))
	}

	header := FrameHeader{
		Magic:    binary.BigEndian.Uint16(data[0:2]),
		Channels: data[2],
		Reserved: data[3],
		Sequence: binary.BigEndian.Uint32(data[4:8]),
	}

	if header.Magic != FrameMagic {
		return nil, fmt.Errorf("invalid frame magic: 0x%04x", header.Magic)
	}
	if header.Channels < 1 || header.Channels > MaxFrameChannels {
		return nil, fmt.Errorf("invalid channel count: %d", header.Channels)
	}

	payload := data[FrameHeaderSize:]
	channels := int(header.Channels)
	if len(payload)%(4*channels) != 0 {
		return nil, fmt.Errorf("payload size %d not divisible by frame width %d", len(payload), 4*channels)
	}

	frames := len(payload) / (4 * channels)
	samples := make([][]float32, channels)
	for c := range samples {
		samples[c] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 4
			bits := binary.LittleEndian.Uint32(payload[off : off+4])
			samples[c][i] = math.Float32frombits(bits)
		}
	}

	return &Frame{Header: header, Samples: samples}, nil
}

// EncodeFrame serializes per-channel samples into a datagram. All channels
// must be the same length.
func EncodeFrame(seq uint32, channels [][]float32) ([]byte, error) {
	if len(channels) < 1 || len(channels) > MaxFrameChannels {
		return nil, fmt.Errorf("invalid channel count: %d", len(channels))
	}

	frames := len(channels[0])
	for c, ch := range channels {
		if len(ch) != frames {
			return nil, fmt.Errorf("channel %d length %d does not match channel 0 length %d", c, len(ch), frames)
		}
	}

	data := make([]byte, FrameHeaderSize+frames*len(channels)*4)
	binary.BigEndian.PutUint16(data[0:2], FrameMagic)
	data[2] = uint8(len(channels))
	data[3] = 0
	binary.BigEndian.PutUint32(data[4:8], seq)

	for i := 0; i < frames; i++ {
		for c := range channels {
			off := FrameHeaderSize + (i*len(channels)+c)*4
			binary.LittleEndian.PutUint32(data[off:off+4], math.Float32bits(channels[c][i]))
		}
	}

	return data, nil
}
