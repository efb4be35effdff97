package transcript

// PauseDetector turns the model's per-step pause probabilities into
// edge-triggered pause events: one event per detected pause, no repeats
// while the probability stays above the threshold.
//
// The model exposes several prediction heads, each estimating whether a
// pause of a given length has occurred (0.5s, 1.0s, 2.0s, 3.0s at indices
// 0..3). Lower indices fire more aggressively.
//
// Like Builder, this is receiver-owned cursor state, not concurrency-safe.
type PauseDetector struct {
	headIndex    int
	threshold    float64
	speechActive bool
}

// NewPauseDetector selects which head to watch and the firing threshold.
func NewPauseDetector(headIndex int, threshold float64) *PauseDetector {
	return &PauseDetector{headIndex: headIndex, threshold: threshold}
}

// Speech records that a word was recognized, arming the detector for the
// next pause.
func (d *PauseDetector) Speech() { d.speechActive = true }

// Step feeds one set of pause probabilities. Returns true exactly once per
// pause: when the watched head crosses the threshold while speech was
// active.
func (d *PauseDetector) Step(prs []float64) bool {
	if d.headIndex < 0 || d.headIndex >= len(prs) {
		return false
	}
	if prs[d.headIndex] > d.threshold && d.speechActive {
		d.speechActive = false
		return true
	}
	return false
}
