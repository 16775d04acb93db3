package levels

import (
	"math"
	"sync"
)

// fullScale is the magnitude of the most negative 16-bit sample, the 0 dBFS
// reference point.
const fullScale = 32768.0

// PCMSource measures the peak magnitude of signed 16-bit PCM frames.
// Decoders push frames as they arrive and the sampling loop drains the
// accumulated peak once per tick; the two sides may run on different
// goroutines.
type PCMSource struct {
	mu      sync.Mutex
	peak    float64 // linear magnitude, 0..32768
	hasData bool
}

func NewPCMSource() *PCMSource {
	return &PCMSource{}
}

// Write folds one frame into the running peak. Empty frames contribute
// nothing, an all-zero frame reads back as -Inf.
func (s *PCMSource) Write(samples []int16) {
	if len(samples) == 0 {
		return
	}
	var peak float64
	for _, sample := range samples {
		v := math.Abs(float64(sample))
		if v > peak {
			peak = v
		}
	}

	s.mu.Lock()
	if peak > s.peak {
		s.peak = peak
	}
	s.hasData = true
	s.mu.Unlock()
}

// ReadPeakLevel returns the loudest sample magnitude since the previous
// read as dBFS and resets the accumulator. ok is false when nothing was
// written in the interval.
func (s *PCMSource) ReadPeakLevel() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasData {
		return 0, false
	}
	peak := s.peak
	s.peak = 0
	s.hasData = false
	return amplitudeToDB(peak), true
}

// amplitudeToDB converts a linear 16-bit magnitude to dBFS. Zero maps to
// -Inf rather than the NaN log10 would produce.
func amplitudeToDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amplitude/fullScale)
}
