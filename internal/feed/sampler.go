package feed

import (
	"math"
	"time"
)

// StartMeasuring arms the repeating peak sampling loop. Without an attached
// source only the intent is recorded; the loop starts once a source
// arrives. Calling while already measuring is a no-op.
func (f *Feed) StartMeasuring() {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	f.measuring = true
	started := f.armLoopLocked()
	f.mu.Unlock()

	if started {
		f.logger.Debug().Dur("interval", f.samplingInterval).Msg("volume measurement started")
	}
}

// StopMeasuring halts sampling, clears the window so stale readings cannot
// linger, and publishes a single floor-level reading. Calling while already
// stopped is a no-op and publishes nothing.
func (f *Feed) StopMeasuring() {
	f.mu.Lock()
	if f.disposed || !f.measuring {
		f.mu.Unlock()
		return
	}
	f.measuring = false
	f.haltLoopLocked()
	f.window.reset()
	f.mu.Unlock()

	f.emit(Notification{Kind: KindLevel, Level: math.Inf(-1)})
	f.logger.Debug().Msg("volume measurement stopped")
}

// armLoopLocked spawns the sampling goroutine when measurement is wanted, a
// source is attached and no loop is running yet. Callers hold f.mu.
func (f *Feed) armLoopLocked() bool {
	if !f.measuring || f.source == nil || f.stopCh != nil {
		return false
	}
	f.stopCh = make(chan struct{})
	go f.sampleLoop(f.stopCh)
	return true
}

// haltLoopLocked signals the sampling goroutine to exit. Callers hold f.mu.
func (f *Feed) haltLoopLocked() {
	if f.stopCh != nil {
		close(f.stopCh)
		f.stopCh = nil
	}
}

func (f *Feed) sampleLoop(stop chan struct{}) {
	ticker := time.NewTicker(f.samplingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !f.tick(stop) {
				return
			}
		}
	}
}

// tick runs one sampling step and reports whether the calling loop stays
// armed. stop identifies the loop; a loop whose channel is no longer the
// feed's current one lost a stop/start race and must exit without touching
// anything. State changes happen under the feed lock; notifications and
// mute requests go out after it is released, so listeners may call back
// into the feed (including stopping it, which the re-arm check picks up).
func (f *Feed) tick(stop chan struct{}) bool {
	f.mu.Lock()
	if f.stopCh != stop {
		f.mu.Unlock()
		return false
	}
	if f.disposed || !f.measuring || f.source == nil {
		f.haltLoopLocked()
		f.mu.Unlock()
		return false
	}

	samplerTicksTotal.Inc()

	db, ok := f.source.ReadPeakLevel()
	if !ok {
		// Nothing arrived this interval. Skip every update but keep
		// sampling, the stream may just be warming up or paused.
		samplerEmptyTicksTotal.Inc()
		f.mu.Unlock()
		return true
	}

	f.maxVolume = db
	f.window.push(db)
	peakLevelDB.Set(db)

	muteRequest, muteValue := f.vadStepLocked(db)
	speakingChanged := f.updateSpeakingLocked()
	speaking := f.speaking
	f.mu.Unlock()

	f.emit(Notification{Kind: KindLevel, Level: db})
	if muteRequest {
		f.applyMuteRequest(muteValue)
	}
	if speakingChanged {
		f.emit(Notification{Kind: KindSpeaking, Speaking: speaking})
	}

	f.mu.Lock()
	armed := f.measuring && f.source != nil && !f.disposed && f.stopCh == stop
	f.mu.Unlock()
	return armed
}
