package feed

// Kind discriminates feed notifications.
type Kind uint8

const (
	// KindLevel carries the raw peak level of one sampling tick.
	KindLevel Kind = iota
	// KindSpeaking reports a flip of the speaking verdict.
	KindSpeaking
	// KindLocalVolume reports a local playback gain change.
	KindLocalVolume
	// KindMuteState reports the explicit audio/video mute flags.
	KindMuteState
)

func (k Kind) String() string {
	switch k {
	case KindLevel:
		return "level"
	case KindSpeaking:
		return "speaking"
	case KindLocalVolume:
		return "local-volume"
	case KindMuteState:
		return "mute-state"
	default:
		return "unknown"
	}
}

// Notification is a tagged union; Kind selects which fields carry data.
// Level notifications fire on every measuring tick, so consumers that fan
// out to slower sinks should debounce them.
type Notification struct {
	Kind     Kind
	Level    float64 // KindLevel: peak dB of the tick
	Speaking bool    // KindSpeaking
	Gain     float64 // KindLocalVolume
	Audio    bool    // KindMuteState
	Video    bool    // KindMuteState
}
