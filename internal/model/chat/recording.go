package chat

// MeterBars is the number of level bars produced per metering frame.
const MeterBars = 20

// RecordingState is transient client-only capture state. It exists
// while a recording is active and is discarded on stop or cancel.
type RecordingState struct {
	IsRecording    bool
	ElapsedSeconds int
	Levels         [MeterBars]float64
}
