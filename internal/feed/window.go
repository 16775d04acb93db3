package feed

import "math"

// volumeWindow is a fixed-length FIFO of recent peak readings. A fresh or
// reset window holds -Inf in every slot so stale data never reads as
// speech.
type volumeWindow struct {
	buf  []float64
	head int // next slot to overwrite
}

func newVolumeWindow(size int) *volumeWindow {
	w := &volumeWindow{buf: make([]float64, size)}
	w.reset()
	return w
}

func (w *volumeWindow) reset() {
	for i := range w.buf {
		w.buf[i] = math.Inf(-1)
	}
}

// push appends a reading, evicting the oldest one.
func (w *volumeWindow) push(v float64) {
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
}

// anyAbove reports whether any held reading exceeds threshold. The
// comparison is strict, a reading exactly at the threshold does not count.
func (w *volumeWindow) anyAbove(threshold float64) bool {
	for _, v := range w.buf {
		if v > threshold {
			return true
		}
	}
	return false
}

// values returns a snapshot of the window, oldest reading first.
func (w *volumeWindow) values() []float64 {
	out := make([]float64, 0, len(w.buf))
	for i := 0; i < len(w.buf); i++ {
		out = append(out, w.buf[(w.head+i)%len(w.buf)])
	}
	return out
}
