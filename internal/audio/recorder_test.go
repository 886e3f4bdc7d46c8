package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	mu     sync.Mutex
	chunks chan []byte
	bins   []byte
	closed bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		chunks: make(chan []byte, 16),
		bins:   make([]byte, FFTSize/2),
	}
}

func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }

func (s *fakeStream) FrequencyData() []byte { return s.bins }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.chunks)
	}
	return nil
}

func (s *fakeStream) push(chunk []byte) {
	s.chunks <- chunk
}

type fakeDevice struct {
	stream *fakeStream
	err    error
	opens  int
}

func (d *fakeDevice) Open(context.Context) (Stream, error) {
	d.opens++
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

type fakeDecoder struct {
	mu    sync.Mutex
	calls int
	got   []byte
	buf   *PCMBuffer
	err   error
}

func (d *fakeDecoder) Decode(data []byte) (*PCMBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.got = data
	if d.err != nil {
		return nil, d.err
	}
	return d.buf, nil
}

func pcmFixture() *PCMBuffer {
	return &PCMBuffer{SampleRate: 16000, Data: [][]float64{{0.1, 0.2, 0.3}}}
}

func TestStopAndTranscodeProducesWAV(t *testing.T) {
	stream := newFakeStream()
	device := &fakeDevice{stream: stream}
	decoder := &fakeDecoder{buf: pcmFixture()}
	rec := NewRecorder(device, decoder, nil)

	require.NoError(t, rec.Start(context.Background()))
	assert.True(t, rec.State().IsRecording)

	stream.push([]byte("abc"))
	stream.push([]byte("def"))

	wav, err := rec.StopAndTranscode()
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, 1, decoder.calls)
	assert.Equal(t, []byte("abcdef"), decoder.got, "chunks concatenated in order")
	assert.False(t, rec.State().IsRecording)
}

func TestCancelDiscardsBufferedAudio(t *testing.T) {
	stream := newFakeStream()
	device := &fakeDevice{stream: stream}
	decoder := &fakeDecoder{buf: pcmFixture()}
	rec := NewRecorder(device, decoder, nil)

	require.NoError(t, rec.Start(context.Background()))
	stream.push([]byte("abc"))

	rec.Cancel()

	assert.Zero(t, decoder.calls, "cancelled recording must not be transcoded")
	assert.False(t, rec.State().IsRecording)

	_, err := rec.StopAndTranscode()
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestStopWithNoAudioIsDropped(t *testing.T) {
	stream := newFakeStream()
	device := &fakeDevice{stream: stream}
	decoder := &fakeDecoder{buf: pcmFixture()}
	rec := NewRecorder(device, decoder, nil)

	require.NoError(t, rec.Start(context.Background()))

	_, err := rec.StopAndTranscode()
	assert.ErrorIs(t, err, ErrNoAudio)
	assert.Zero(t, decoder.calls)
}

func TestStartWhileRecordingRefused(t *testing.T) {
	stream := newFakeStream()
	device := &fakeDevice{stream: stream}
	rec := NewRecorder(device, &fakeDecoder{buf: pcmFixture()}, nil)

	require.NoError(t, rec.Start(context.Background()))
	assert.ErrorIs(t, rec.Start(context.Background()), ErrAlreadyRecording)
	assert.Equal(t, 1, device.opens)

	rec.Cancel()
}

func TestStartDeviceFailure(t *testing.T) {
	device := &fakeDevice{err: errors.New("permission denied")}
	rec := NewRecorder(device, &fakeDecoder{}, nil)

	err := rec.Start(context.Background())
	require.Error(t, err)
	assert.False(t, rec.State().IsRecording, "no state retained on permission failure")
}

func TestDecodeFailureStillTearsDown(t *testing.T) {
	stream := newFakeStream()
	device := &fakeDevice{stream: stream}
	decoder := &fakeDecoder{err: errors.New("bad audio")}
	rec := NewRecorder(device, decoder, nil)

	require.NoError(t, rec.Start(context.Background()))
	stream.push([]byte("abc"))

	_, err := rec.StopAndTranscode()
	require.Error(t, err)
	assert.False(t, rec.State().IsRecording)

	// Resources are released; a new capture can begin.
	device.stream = newFakeStream()
	require.NoError(t, rec.Start(context.Background()))
	rec.Cancel()
}

func TestMeterUpdatesLevels(t *testing.T) {
	stream := newFakeStream()
	for i := range stream.bins {
		stream.bins[i] = 255
	}
	device := &fakeDevice{stream: stream}
	rec := NewRecorder(device, &fakeDecoder{buf: pcmFixture()}, nil, WithFrameInterval(time.Millisecond))

	require.NoError(t, rec.Start(context.Background()))
	defer rec.Cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rec.State().Levels[0] > 0.99 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("meter never reported levels")
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0:00", FormatElapsed(0))
	assert.Equal(t, "0:07", FormatElapsed(7))
	assert.Equal(t, "1:05", FormatElapsed(65))
	assert.Equal(t, "10:00", FormatElapsed(600))
}
