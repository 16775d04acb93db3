// Package feed tracks the audio state of call participants. Each feed
// samples a level source on a fixed interval, keeps a short window of peak
// readings to answer "is this participant speaking", and optionally drives
// an auto-mute decision when the level stays under a voice-activity floor.
package feed

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicegate/voicegate/internal/levels"
	"github.com/voicegate/voicegate/internal/logging"
)

const (
	// SpeakingSampleCount is the number of recent peak readings the
	// speaking detector looks at.
	SpeakingSampleCount = 8

	// DefaultSpeakingThreshold is the level in dB a single reading must
	// exceed for the feed to count as speaking.
	DefaultSpeakingThreshold = -60.0

	// VADDisabledThreshold switches the voice-activity controller off when
	// used as the activity threshold.
	VADDisabledThreshold = -100.0

	// DefaultSamplingInterval is the delay between two peak reads.
	DefaultSamplingInterval = time.Millisecond

	// DefaultVADCooldown is how long the level must stay at or below the
	// activity threshold before the feed is auto-muted.
	DefaultVADCooldown = 200 * time.Millisecond
)

// Config carries the construction knobs for one feed. Zero-valued
// thresholds, durations and clock select the package defaults.
type Config struct {
	ID                string
	SpeakingThreshold float64
	VADThreshold      float64
	SamplingInterval  time.Duration
	VADCooldown       time.Duration

	HasAudioTrack bool
	HasVideoTrack bool
	AudioMuted    bool
	VideoMuted    bool

	// RequestMute is invoked with the desired mute state whenever the
	// voice-activity controller decides the outgoing audio should change.
	// Optional; without it the controller still tracks its own state.
	RequestMute func(muted bool)

	// Listener receives every notification the feed publishes. Optional.
	// Listeners may call back into the feed.
	Listener func(Notification)

	// Clock substitutes time.Now for cooldown decisions.
	Clock func() time.Time
}

// Feed owns the measurement state of one participant. All methods are safe
// for concurrent use.
type Feed struct {
	id     string
	logger zerolog.Logger

	requestMute func(bool)
	listener    func(Notification)
	now         func() time.Time

	samplingInterval time.Duration
	vadCooldown      time.Duration

	mu sync.Mutex

	source levels.Source
	window *volumeWindow

	speaking          bool
	speakingThreshold float64

	vadThreshold     float64
	vadEnabled       bool
	vadMuted         bool
	vadCooldownStart time.Time

	maxVolume float64
	measuring bool
	disposed  bool

	audioMuted bool
	videoMuted bool
	hasAudio   bool
	hasVideo   bool

	localVolume float64

	stopCh chan struct{}
}

// New builds a feed from cfg.
func New(cfg Config) *Feed {
	if cfg.SpeakingThreshold == 0 {
		cfg.SpeakingThreshold = DefaultSpeakingThreshold
	}
	if cfg.VADThreshold == 0 {
		cfg.VADThreshold = VADDisabledThreshold
	}
	if cfg.SamplingInterval <= 0 {
		cfg.SamplingInterval = DefaultSamplingInterval
	}
	if cfg.VADCooldown <= 0 {
		cfg.VADCooldown = DefaultVADCooldown
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	f := &Feed{
		id:                cfg.ID,
		logger:            logging.GetDefaultLogger().With().Str("component", "feed").Str("feed_id", cfg.ID).Logger(),
		requestMute:       cfg.RequestMute,
		listener:          cfg.Listener,
		now:               cfg.Clock,
		samplingInterval:  cfg.SamplingInterval,
		vadCooldown:       cfg.VADCooldown,
		window:            newVolumeWindow(SpeakingSampleCount),
		speakingThreshold: cfg.SpeakingThreshold,
		vadThreshold:      cfg.VADThreshold,
		maxVolume:         math.Inf(-1),
		audioMuted:        cfg.AudioMuted,
		videoMuted:        cfg.VideoMuted,
		hasAudio:          cfg.HasAudioTrack,
		hasVideo:          cfg.HasVideoTrack,
		localVolume:       1.0,
	}
	f.vadEnabled = f.vadThreshold != VADDisabledThreshold && !f.audioMuted
	f.vadCooldownStart = f.now()
	return f
}

func (f *Feed) ID() string { return f.id }

// AttachSource installs or replaces the level source. The window resets
// because readings from the previous stream say nothing about the new one;
// measurement intent is kept and the loop starts if it was armed while no
// source was attached.
func (f *Feed) AttachSource(src levels.Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return
	}
	f.source = src
	f.window.reset()
	f.armLoopLocked()
}

// DetachSource removes the level source. The sampling loop disarms on its
// next tick.
func (f *Feed) DetachSource() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return
	}
	f.source = nil
}

// SetHasAudioTrack records whether an audio track backs this feed.
func (f *Feed) SetHasAudioTrack(has bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasAudio = has
}

// SetHasVideoTrack records whether a video track backs this feed.
func (f *Feed) SetHasVideoTrack(has bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasVideo = has
}

// SetMuted records the explicit mute flags, typically mirroring remote
// signaling. A change of the audio flag floods the window with the floor
// value so readings from before the toggle cannot count as speech. A mute
// state notification goes out on every call.
func (f *Feed) SetMuted(audioMuted, videoMuted bool) {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	if audioMuted != f.audioMuted {
		f.window.reset()
	}
	f.audioMuted = audioMuted
	f.videoMuted = videoMuted
	f.refreshVADEnabledLocked()
	if !audioMuted && f.vadThreshold == VADDisabledThreshold {
		f.logger.Debug().Msg("audio unmuted but voice activity threshold is the disabled sentinel, vad stays off")
	}
	audio, video := f.audioMuted, f.videoMuted
	f.mu.Unlock()

	f.emit(Notification{Kind: KindMuteState, Audio: audio, Video: video})
}

// SetLocalVolume stores the local playback gain and notifies listeners on
// every call. The gain never feeds back into detection.
func (f *Feed) SetLocalVolume(gain float64) {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	f.localVolume = gain
	f.mu.Unlock()

	f.emit(Notification{Kind: KindLocalVolume, Gain: gain})
}

func (f *Feed) Speaking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speaking
}

// MaxVolume returns the peak level of the most recent data tick, -Inf
// before the first one.
func (f *Feed) MaxVolume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxVolume
}

func (f *Feed) Measuring() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.measuring
}

func (f *Feed) SpeakingThreshold() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speakingThreshold
}

func (f *Feed) VoiceActivityThreshold() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vadThreshold
}

func (f *Feed) VADEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vadEnabled
}

// VADMuted reports the controller's belief about whether it muted the
// outgoing audio. Deliberately separate from AudioMuted.
func (f *Feed) VADMuted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vadMuted
}

func (f *Feed) AudioMuted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioMuted
}

func (f *Feed) VideoMuted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.videoMuted
}

// EffectiveAudioMuted reports whether the feed currently yields no audio,
// either because no audio track backs it or because it is muted.
func (f *Feed) EffectiveAudioMuted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.hasAudio || f.audioMuted
}

// EffectiveVideoMuted is the video counterpart of EffectiveAudioMuted.
func (f *Feed) EffectiveVideoMuted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.hasVideo || f.videoMuted
}

func (f *Feed) LocalVolume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.localVolume
}

// VolumeSamples returns the current window contents, oldest reading first.
func (f *Feed) VolumeSamples() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.window.values()
}

func (f *Feed) Disposed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disposed
}

// Dispose permanently stops the feed: the loop halts, the source is
// detached and the window is dropped. Every method is a no-op afterwards.
func (f *Feed) Dispose() {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	f.disposed = true
	f.measuring = false
	f.haltLoopLocked()
	f.source = nil
	f.window.reset()
	f.mu.Unlock()

	f.logger.Debug().Msg("feed disposed")
}

func (f *Feed) emit(n Notification) {
	if f.listener != nil {
		f.listener(n)
	}
}

func (f *Feed) applyMuteRequest(muted bool) {
	if f.requestMute != nil {
		f.requestMute(muted)
	}
}
