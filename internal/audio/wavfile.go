package audio

import (
	"context"
	"fmt"
	"math"
	"os"
)

// WAVFileDevice replays a WAV file as if it were captured live. It
// stands in for microphone hardware in terminal environments.
type WAVFileDevice struct {
	Path string
}

// Open reads the file, validates it, and returns a stream that emits
// its bytes in chunks with a static level estimate for metering.
func (d *WAVFileDevice) Open(_ context.Context) (Stream, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", d.Path, err)
	}

	pcm, err := DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("%s is not a playable WAV file: %w", d.Path, err)
	}

	const chunkSize = 32 * 1024
	chunkCount := (len(data) + chunkSize - 1) / chunkSize
	chunks := make(chan []byte, chunkCount)
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks <- data[off:end]
	}
	close(chunks)

	return &wavFileStream{chunks: chunks, bins: staticBins(pcm)}, nil
}

type wavFileStream struct {
	chunks chan []byte
	bins   []byte
}

func (s *wavFileStream) Chunks() <-chan []byte { return s.chunks }

func (s *wavFileStream) FrequencyData() []byte { return s.bins }

func (s *wavFileStream) Close() error { return nil }

// staticBins fills the metering bins with the file's mean amplitude,
// giving the level bars something plausible to show during replay.
func staticBins(pcm *PCMBuffer) []byte {
	total := 0.0
	count := 0
	for _, channel := range pcm.Data {
		for _, sample := range channel {
			total += math.Abs(sample)
			count++
		}
	}

	level := byte(0)
	if count > 0 {
		level = byte(math.Min(total/float64(count)*255*4, 255))
	}

	bins := make([]byte, FFTSize/2)
	for i := range bins {
		bins[i] = level
	}
	return bins
}

// WAVDecoder decodes recordings that are already WAV-encoded, as
// produced by WAVFileDevice.
type WAVDecoder struct{}

// Decode implements Decoder.
func (WAVDecoder) Decode(data []byte) (*PCMBuffer, error) {
	return DecodeWAV(data)
}
