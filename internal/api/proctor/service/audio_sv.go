package proctorService

import (
	"math"
	"sync"
)

const (
	noiseRMSThreshold   = 0.04
	noiseCycleThreshold = 8
	audioWindowSize     = 2048
)

// audioMonitor tracks sustained background noise over unsigned 8-bit PCM
// windows. The counter is hysteretic: loud cycles push it up, quiet cycles
// bleed it back down, so intermittent spikes never accumulate into a
// violation but genuinely sustained noise does.
type audioMonitor struct {
	mu sync.Mutex

	counter int
	noisy   bool
}

func newAudioMonitor() *audioMonitor {
	return &audioMonitor{}
}

// rmsLevel computes the root-mean-square of a u8 PCM window normalized to
// [0,1], with 128 as silence.
func rmsLevel(window []byte) float64 {
	if len(window) == 0 {
		return 0
	}

	var sum float64
	for _, s := range window {
		v := (float64(s) - 128) / 128
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(window)))
}

// Evaluate processes one audio cycle and reports whether a background noise
// violation fired this cycle.
func (a *audioMonitor) Evaluate(window []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if rmsLevel(window) > noiseRMSThreshold {
		a.counter++
	} else if a.counter > 0 {
		a.counter--
	}

	// The noisy flag follows the counter, not the instantaneous level: it
	// latches on when a violation fires and releases once the counter has
	// bled back to zero.
	if a.counter >= noiseCycleThreshold {
		a.counter = 0
		a.noisy = true
		return true
	}
	if a.counter == 0 {
		a.noisy = false
	}
	return false
}

func (a *audioMonitor) IsNoisy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.noisy
}
