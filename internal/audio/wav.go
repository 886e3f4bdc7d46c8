package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PCMBuffer holds decoded audio as one float slice per channel.
// Samples are expected in [-1, 1]; out-of-range values are clamped
// during encoding. All channel slices must have equal length.
type PCMBuffer struct {
	SampleRate int
	Data       [][]float64
}

// Channels returns the channel count of the buffer.
func (b *PCMBuffer) Channels() int {
	return len(b.Data)
}

// Frames returns the per-channel sample count of the buffer.
func (b *PCMBuffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// WAVHeader is the canonical 44-byte RIFF/WAVE header for 16-bit PCM.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // number of bytes in the data chunk
}

// EncodeWAV encodes a PCM buffer into a WAV container. Samples are
// clamped to [-1, 1], scaled to signed 16-bit range, and interleaved
// little-endian across channels.
func EncodeWAV(buf *PCMBuffer) ([]byte, error) {
	if buf == nil || buf.Channels() == 0 || buf.Frames() == 0 {
		return nil, fmt.Errorf("cannot encode empty audio buffer")
	}

	if buf.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", buf.SampleRate)
	}

	frames := buf.Frames()
	for ch, data := range buf.Data {
		if len(data) != frames {
			return nil, fmt.Errorf("channel %d has %d samples, want %d", ch, len(data), frames)
		}
	}

	numChannels := uint16(buf.Channels())
	bitsPerSample := uint16(16)
	dataSize := uint32(frames * buf.Channels() * 2)

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(buf.SampleRate),
		ByteRate:      uint32(buf.SampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	out := bytes.NewBuffer(make([]byte, 0, 44+int(dataSize)))

	if err := binary.Write(out, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	interleaved := make([]int16, 0, frames*buf.Channels())
	for pos := 0; pos < frames; pos++ {
		for ch := 0; ch < buf.Channels(); ch++ {
			sample := buf.Data[ch][pos]
			if sample > 1 {
				sample = 1
			}
			if sample < -1 {
				sample = -1
			}
			interleaved = append(interleaved, int16(sample*0x7FFF))
		}
	}

	if err := binary.Write(out, binary.LittleEndian, interleaved); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return out.Bytes(), nil
}

// DecodeWAV decodes a 16-bit PCM WAV container back into a buffer.
func DecodeWAV(data []byte) (*PCMBuffer, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("WAV data too short: need at least 44 bytes, got %d", len(data))
	}

	in := bytes.NewReader(data)
	var header WAVHeader
	if err := binary.Read(in, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" {
		return nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(header.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}
	if string(header.Subchunk1ID[:]) != "fmt " {
		return nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if string(header.Subchunk2ID[:]) != "data" {
		return nil, fmt.Errorf("invalid WAV file: missing data chunk")
	}
	if header.AudioFormat != 1 {
		return nil, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", header.AudioFormat)
	}
	if header.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", header.BitsPerSample)
	}
	if header.NumChannels == 0 {
		return nil, fmt.Errorf("invalid channel count: 0")
	}

	channels := int(header.NumChannels)
	frames := int(header.Subchunk2Size) / (channels * 2)
	if frames <= 0 {
		return nil, fmt.Errorf("no audio data found")
	}

	interleaved := make([]int16, frames*channels)
	if err := binary.Read(in, binary.LittleEndian, interleaved); err != nil {
		return nil, fmt.Errorf("failed to read audio samples: %w", err)
	}

	buf := &PCMBuffer{
		SampleRate: int(header.SampleRate),
		Data:       make([][]float64, channels),
	}
	for ch := range buf.Data {
		buf.Data[ch] = make([]float64, frames)
	}
	for pos := 0; pos < frames; pos++ {
		for ch := 0; ch < channels; ch++ {
			buf.Data[ch][pos] = float64(interleaved[pos*channels+ch]) / 0x7FFF
		}
	}

	return buf, nil
}

// WAVDuration returns the duration in seconds declared by a WAV header.
func WAVDuration(data []byte) (float64, error) {
	if len(data) < 44 {
		return 0, fmt.Errorf("WAV data too short: need at least 44 bytes, got %d", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("invalid WAV file")
	}

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	blockAlign := binary.LittleEndian.Uint16(data[32:34])
	dataSize := binary.LittleEndian.Uint32(data[40:44])
	if sampleRate == 0 || blockAlign == 0 {
		return 0, fmt.Errorf("invalid WAV header fields")
	}

	frames := dataSize / uint32(blockAlign)
	return float64(frames) / float64(sampleRate), nil
}
