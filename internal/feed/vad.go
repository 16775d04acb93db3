package feed

// SetVoiceActivityThreshold changes the auto-mute activity floor. The
// disabled sentinel switches the controller off and releases a mute the
// controller owns; any other value (re)starts silence timing from now.
// Setting the current value again does nothing.
func (f *Feed) SetVoiceActivityThreshold(threshold float64) {
	f.mu.Lock()
	if f.disposed || threshold == f.vadThreshold {
		f.mu.Unlock()
		return
	}
	f.vadThreshold = threshold
	f.refreshVADEnabledLocked()
	if f.vadEnabled {
		f.vadCooldownStart = f.now()
	}

	unmute := false
	if threshold == VADDisabledThreshold && f.vadMuted {
		f.vadMuted = false
		unmute = true
	}
	enabled := f.vadEnabled
	f.mu.Unlock()

	if unmute {
		vadUnmutesTotal.Inc()
		f.applyMuteRequest(false)
	}
	f.logger.Debug().Float64("threshold_db", threshold).Bool("enabled", enabled).Msg("voice activity threshold changed")
}

// refreshVADEnabledLocked re-derives controller enablement after a mute or
// threshold change. The disabled-sentinel threshold wins over the mute flag
// when the two disagree. Crossing into enabled restarts the silence clock
// so the cooldown is measured from this moment.
func (f *Feed) refreshVADEnabledLocked() {
	enabled := f.vadThreshold != VADDisabledThreshold && !f.audioMuted
	if enabled && !f.vadEnabled {
		f.vadCooldownStart = f.now()
	}
	f.vadEnabled = enabled
}

// vadStepLocked runs one voice-activity decision for the latest peak
// reading. It returns whether a mute request must be delivered once the
// feed lock is released, and the requested state.
//
// Unmuting is immediate: one loud reading flips the output back on.
// Muting waits until the level has stayed at or below the threshold for
// the full cooldown, so short pauses in speech do not cut the audio.
func (f *Feed) vadStepLocked(db float64) (request bool, muted bool) {
	if !f.vadEnabled {
		return false, false
	}

	now := f.now()
	if db > f.vadThreshold {
		f.vadCooldownStart = now
		if f.vadMuted {
			f.vadMuted = false
			vadUnmutesTotal.Inc()
			f.logger.Debug().Float64("level_db", db).Msg("voice activity detected, unmuting")
			return true, false
		}
		return false, false
	}

	if f.vadMuted {
		return false, false
	}
	if now.Sub(f.vadCooldownStart) >= f.vadCooldown {
		f.vadMuted = true
		vadMutesTotal.Inc()
		f.logger.Debug().Float64("level_db", db).Msg("sustained silence, muting")
		return true, true
	}
	return false, false
}
