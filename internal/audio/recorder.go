package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agrigpt/chatclient/internal/model/chat"
)

var (
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
	ErrNoAudio          = errors.New("no audio data recorded")
)

// Device grants exclusive access to the capture hardware.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is one live capture. Chunks delivers compressed audio as the
// hardware produces it and is closed by Close. FrequencyData reports
// the latest FFTSize/2 magnitude bins for level metering.
type Stream interface {
	Chunks() <-chan []byte
	FrequencyData() []byte
	Close() error
}

// Decoder turns a complete compressed recording into raw PCM.
type Decoder interface {
	Decode(data []byte) (*PCMBuffer, error)
}

// Recorder drives one capture at a time: it buffers compressed chunks,
// meters input levels, tracks elapsed time, and transcodes the result
// to WAV on stop. The stream, metering loop, and timer are acquired
// together and released together on every exit path.
type Recorder struct {
	device        Device
	decoder       Decoder
	logger        *zap.Logger
	frameInterval time.Duration

	mu        sync.Mutex
	recording bool
	stream    Stream
	stopCh    chan struct{}
	chunks    [][]byte
	elapsed   int
	levels    [chat.MeterBars]float64

	wg sync.WaitGroup
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithFrameInterval overrides the metering frame cadence.
func WithFrameInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.frameInterval = d
		}
	}
}

// NewRecorder wires a capture device and decoder into a recorder.
func NewRecorder(device Device, decoder Decoder, logger *zap.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Recorder{
		device:        device,
		decoder:       decoder,
		logger:        logger,
		frameInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens the capture device and begins buffering and metering.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.mu.Unlock()

	stream, err := r.device.Open(ctx)
	if err != nil {
		return fmt.Errorf("unable to access microphone: %w", err)
	}

	stop := make(chan struct{})

	r.mu.Lock()
	r.recording = true
	r.stream = stream
	r.stopCh = stop
	r.chunks = nil
	r.elapsed = 0
	r.levels = [chat.MeterBars]float64{}
	r.mu.Unlock()

	r.wg.Add(3)
	go r.collect(stream)
	go r.meterLoop(stream, stop)
	go r.tickElapsed(stop)

	r.logger.Info("recording started")
	return nil
}

// StopAndTranscode stops the capture, releases all resources, and
// returns the buffered audio re-encoded as a 16-bit PCM WAV container.
// An empty buffer yields ErrNoAudio with nothing uploaded.
func (r *Recorder) StopAndTranscode() ([]byte, error) {
	chunks, ok := r.teardown()
	if !ok {
		return nil, ErrNotRecording
	}

	if len(chunks) == 0 {
		r.logger.Warn("recording stopped with no audio data")
		return nil, ErrNoAudio
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	blob := make([]byte, 0, total)
	for _, c := range chunks {
		blob = append(blob, c...)
	}

	pcm, err := r.decoder.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to process audio recording: %w", err)
	}

	wav, err := EncodeWAV(pcm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WAV: %w", err)
	}

	r.logger.Info("recording transcoded", zap.Int("wavBytes", len(wav)))
	return wav, nil
}

// Cancel stops the capture and discards the buffered audio.
func (r *Recorder) Cancel() {
	if _, ok := r.teardown(); ok {
		r.logger.Info("recording cancelled, buffered audio discarded")
	}
}

// State reports the transient capture state for rendering.
func (r *Recorder) State() chat.RecordingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return chat.RecordingState{
		IsRecording:    r.recording,
		ElapsedSeconds: r.elapsed,
		Levels:         r.levels,
	}
}

// teardown releases the stream, metering loop, and timer, returning
// the buffered chunks. Safe to call from any exit path; only the call
// that finds an active recording gets the chunks.
func (r *Recorder) teardown() ([][]byte, bool) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, false
	}
	r.recording = false
	close(r.stopCh)
	stream := r.stream
	r.stream = nil
	r.mu.Unlock()

	if err := stream.Close(); err != nil {
		r.logger.Warn("failed to close capture stream", zap.Error(err))
	}
	r.wg.Wait()

	r.mu.Lock()
	chunks := r.chunks
	r.chunks = nil
	r.elapsed = 0
	r.levels = [chat.MeterBars]float64{}
	r.mu.Unlock()

	return chunks, true
}

func (r *Recorder) collect(stream Stream) {
	defer r.wg.Done()
	for chunk := range stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		buffered := make([]byte, len(chunk))
		copy(buffered, chunk)

		r.mu.Lock()
		r.chunks = append(r.chunks, buffered)
		r.mu.Unlock()
	}
}

func (r *Recorder) meterLoop(stream Stream, stop <-chan struct{}) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			bars := LevelBars(stream.FrequencyData(), chat.MeterBars)
			r.mu.Lock()
			copy(r.levels[:], bars)
			r.mu.Unlock()
		}
	}
}

func (r *Recorder) tickElapsed(stop <-chan struct{}) {
	defer r.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			r.elapsed++
			r.mu.Unlock()
		}
	}
}

// FormatElapsed renders a recording duration as m:ss.
func FormatElapsed(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
