package chat

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/agrigpt/chatclient/internal/audio"
	"github.com/agrigpt/chatclient/internal/speech"
)

// Client composes the reconciler with the audio capture pipeline and
// the speech output player into the full chat surface.
type Client struct {
	*Reconciler
	recorder *audio.Recorder
	player   *speech.Player
	logger   *zap.Logger
}

// NewClient assembles the chat client.
func NewClient(rec *Reconciler, recorder *audio.Recorder, player *speech.Player, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		Reconciler: rec,
		recorder:   recorder,
		player:     player,
		logger:     logger,
	}
}

// StartRecording begins a voice capture. Unauthenticated users are
// refused before the capture device is touched: the refusal is an
// in-chat login prompt, not a recording error.
func (c *Client) StartRecording(ctx context.Context) error {
	if c.creds.Token() == "" {
		c.PromptVoiceLogin()
		return ErrLoginRequired
	}
	return c.recorder.Start(ctx)
}

// StopRecordingAndSend stops the capture, transcodes the recording to
// WAV, and uploads it. An empty recording is dropped with a log line
// only; decode failures surface as a bot error message.
func (c *Client) StopRecordingAndSend(ctx context.Context) error {
	wav, err := c.recorder.StopAndTranscode()
	if errors.Is(err, audio.ErrNoAudio) {
		c.logger.Warn("no audio data recorded, nothing sent")
		return nil
	}
	if errors.Is(err, audio.ErrNotRecording) {
		return nil
	}
	if err != nil {
		c.logger.Error("failed to process audio recording", zap.Error(err))
		c.appendBot("Error: Failed to process audio recording.")
		return err
	}

	return c.SendVoice(ctx, wav)
}

// CancelRecording stops the capture and discards the buffered audio;
// no upload is issued.
func (c *Client) CancelRecording() {
	c.recorder.Cancel()
}

// Recorder exposes the capture pipeline for state rendering.
func (c *Client) Recorder() *audio.Recorder {
	return c.recorder
}

// ToggleNarration plays or stops on-device narration of a message.
func (c *Client) ToggleNarration(messageID string) {
	for _, m := range c.Messages() {
		if m.ID == messageID {
			c.player.Toggle(messageID, m.Text)
			return
		}
	}
	c.logger.Warn("no message text available", zap.String("messageId", messageID))
}

// NarratingID returns the id of the message currently being narrated.
func (c *Client) NarratingID() string {
	return c.player.PlayingID()
}

// Close releases capture and playback resources. Safe on any path,
// including mid-recording shutdown.
func (c *Client) Close() {
	c.recorder.Cancel()
	c.player.Stop()
}
