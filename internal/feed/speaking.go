package feed

// SetSpeakingThreshold changes the level a reading must exceed to count as
// speech. The value is stored as-is and takes effect on the next tick;
// setting the current value again does nothing.
func (f *Feed) SetSpeakingThreshold(threshold float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed || threshold == f.speakingThreshold {
		return
	}
	f.speakingThreshold = threshold
	f.logger.Debug().Float64("threshold_db", threshold).Msg("speaking threshold changed")
}

// updateSpeakingLocked recomputes the speaking verdict from the window and
// reports whether it flipped. The verdict is edge-triggered: holders of the
// previous value only hear about changes.
func (f *Feed) updateSpeakingLocked() bool {
	speaking := f.window.anyAbove(f.speakingThreshold)
	if speaking == f.speaking {
		return false
	}
	f.speaking = speaking
	speakingTransitionsTotal.Inc()
	return true
}
