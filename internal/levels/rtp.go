package levels

import (
	"sync"

	"github.com/pion/rtp"
)

// silentDBov is the quietest value the ssrc-audio-level header extension
// can carry: 127 dB below the overload point (RFC 6464).
const silentDBov = 127

// RTPSource extracts peak levels from the audio-level header extension of
// incoming RTP packets, so no payload decoding is needed to follow a remote
// track's loudness. The sender reports level in dBov, 0 loudest to 127
// silent; readings surface as negative decibels.
type RTPSource struct {
	mu      sync.Mutex
	extID   uint8
	minDBov uint8 // loudest observation since last read
	hasData bool
}

// NewRTPSource builds a source reading the extension negotiated under
// extensionID for this track.
func NewRTPSource(extensionID uint8) *RTPSource {
	return &RTPSource{extID: extensionID, minDBov: silentDBov}
}

// Observe folds one packet into the running peak. Packets without the
// extension (or with a malformed one) are skipped; an interval that saw
// only such packets still reads back as no data.
func (s *RTPSource) Observe(pkt *rtp.Packet) {
	payload := pkt.GetExtension(s.extID)
	if payload == nil {
		return
	}
	var ext rtp.AudioLevelExtension
	if err := ext.Unmarshal(payload); err != nil {
		return
	}

	s.mu.Lock()
	if !s.hasData || ext.Level < s.minDBov {
		s.minDBov = ext.Level
	}
	s.hasData = true
	s.mu.Unlock()
}

// ReadPeakLevel returns the loudest observation since the previous read as
// negative dB and resets the accumulator.
func (s *RTPSource) ReadPeakLevel() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasData {
		return 0, false
	}
	level := s.minDBov
	s.minDBov = silentDBov
	s.hasData = false
	return -float64(level), true
}
