package audio

// FFTSize is the analysis window used for level metering. The device
// reports FFTSize/2 frequency bins per frame.
const FFTSize = 256

// LevelBars reduces one frame of frequency-bin magnitudes (0-255 per
// bin) to a fixed number of normalized bars. Each bar is the mean of a
// contiguous slice of bins divided by 255, giving a value in [0, 1].
func LevelBars(bins []byte, barCount int) []float64 {
	bars := make([]float64, barCount)
	if barCount <= 0 || len(bins) == 0 {
		return bars
	}

	binsPerBar := len(bins) / barCount
	if binsPerBar == 0 {
		binsPerBar = 1
	}

	for i := 0; i < barCount; i++ {
		start := i * binsPerBar
		if start >= len(bins) {
			break
		}
		end := start + binsPerBar
		if end > len(bins) {
			end = len(bins)
		}

		sum := 0
		for _, v := range bins[start:end] {
			sum += int(v)
		}
		average := float64(sum) / float64(end-start)
		bars[i] = average / 255
	}

	return bars
}
