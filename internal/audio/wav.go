package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAVHeader represents the 44-byte header of a PCM WAV file.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// EncodeWAV encodes one or two channels of float32 samples in [-1, 1] into a
// 16-bit PCM WAV byte stream. Stereo channels are interleaved; both must have
// the same length.
func EncodeWAV(channels [][]float32, sampleRate int) ([]byte, error) {
	if len(channels) < 1 || len(channels) > 2 {
		return nil, fmt.Errorf("wav encoding supports 1 or 2 channels, got %d", len(channels))
	}

	if len(channels[0]) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if len(channels) == 2 && len(channels[0]) != len(channels[1]) {
		return nil, fmt.Errorf("channel length mismatch: %d vs %d", len(channels[0]), len(channels[1]))
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	numChannels := uint16(len(channels))
	bitsPerSample := uint16(16)
	frames := len(channels[0])
	dataSize := uint32(frames) * uint32(numChannels) * 2
	fileSize := 36 + dataSize

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     fileSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+int(dataSize)))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	pcm := make([]int16, 0, frames*int(numChannels))
	for i := 0; i < frames; i++ {
		for _, ch := range channels {
			pcm = append(pcm, floatToPCM16(ch[i]))
		}
	}

	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV decodes 16-bit PCM WAV data into per-channel float32 samples in
// [-1, 1]. Mono and stereo files are supported.
func DecodeWAV(data []byte) ([][]float32, int, error) {
	if len(data) < 44 {
		return nil, 0, fmt.Errorf("WAV data too short: need at least 44 bytes, got %d", len(data))
	}

	buf := bytes.NewReader(data)
	var header WAVHeader

	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	if string(header.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	if string(header.Subchunk1ID[:]) != "fmt " {
		return nil, 0, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	if string(header.Subchunk2ID[:]) != "data" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing data chunk")
	}

	if header.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", header.AudioFormat)
	}

	if header.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", header.BitsPerSample)
	}

	numChannels := int(header.NumChannels)
	if numChannels < 1 || numChannels > 2 {
		return nil, 0, fmt.Errorf("unsupported channel count: %d (only mono and stereo are supported)", numChannels)
	}

	totalSamples := int(header.Subchunk2Size) / 2
	if totalSamples <= 0 {
		return nil, 0, fmt.Errorf("no audio data found")
	}

	pcm := make([]int16, totalSamples)
	if err := binary.Read(buf, binary.LittleEndian, pcm); err != nil {
		return nil, 0, fmt.Errorf("failed to read audio samples: %w", err)
	}

	frames := totalSamples / numChannels
	channels := make([][]float32, numChannels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			channels[c][i] = float32(pcm[i*numChannels+c]) / 32768.0
		}
	}

	return channels, int(header.SampleRate), nil
}

// floatToPCM16 converts a [-1, 1] sample to 16-bit PCM with clipping.
func floatToPCM16(s float32) int16 {
	v := s * 32767.0
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int16(v)
}
