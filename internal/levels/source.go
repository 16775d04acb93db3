// Package levels provides peak audio level sources. A source accumulates
// the loudest reading it has seen and hands it over when polled, so a
// sampling loop ticking at its own rate never misses a short burst that
// landed between two polls.
package levels

// Source reports the peak level observed since the previous read, in
// decibels relative to full scale (0 is the loudest representable signal,
// silence approaches -Inf). The second return is false when no data
// arrived in the interval. ReadPeakLevel must not block; it is called from
// inside the sampling tick.
type Source interface {
	ReadPeakLevel() (float64, bool)
}
