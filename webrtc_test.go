package voicegate

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newOfferPeer builds a second peer that, like a browser, offers an audio
// track with the ssrc-audio-level extension.
func newOfferPeer(t *testing.T) *webrtc.PeerConnection {
	t.Helper()
	mediaEngine := &webrtc.MediaEngine{}
	require.NoError(t, mediaEngine.RegisterDefaultCodecs())
	require.NoError(t, mediaEngine.RegisterHeaderExtension(
		webrtc.RTPHeaderExtensionCapability{URI: audioLevelURI}, webrtc.RTPCodecTypeAudio))

	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine))
	peer, err := api.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = peer.Close() })

	_, err = peer.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendrecv,
	})
	require.NoError(t, err)
	return peer
}

func encodedOffer(t *testing.T, peer *webrtc.PeerConnection) string {
	t.Helper()
	offer, err := peer.CreateOffer(nil)
	require.NoError(t, err)
	gatherComplete := webrtc.GatheringCompletePromise(peer)
	require.NoError(t, peer.SetLocalDescription(offer))
	<-gatherComplete

	payload, err := json.Marshal(peer.LocalDescription())
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(payload)
}

func TestNewSessionCreatesEchoTrack(t *testing.T) {
	s, err := newSession(SessionConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.peerConnection.Close() })

	assert.NotNil(t, s.EchoTrack)
	assert.NotEmpty(t, s.id)
	assert.Nil(t, s.feed())
	assert.False(t, s.outputMuted())
}

func TestExchangeOfferRejectsGarbage(t *testing.T) {
	s, err := newSession(SessionConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.peerConnection.Close() })

	_, err = s.ExchangeOffer("not-base64!!!")
	assert.Error(t, err)

	_, err = s.ExchangeOffer(base64.StdEncoding.EncodeToString([]byte("not json")))
	assert.Error(t, err)
}

func TestExchangeOfferAnswersValidOffer(t *testing.T) {
	peer := newOfferPeer(t)
	offer := encodedOffer(t, peer)

	s, err := newSession(SessionConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.peerConnection.Close() })

	answerB64, err := s.ExchangeOffer(offer)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(answerB64)
	require.NoError(t, err)
	var answer webrtc.SessionDescription
	require.NoError(t, json.Unmarshal(raw, &answer))
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	// The audio-level extension offered by the peer must survive
	// negotiation, otherwise feeds never see levels.
	assert.Contains(t, answer.SDP, "ssrc-audio-level")
}

func TestSessionOutputMuted(t *testing.T) {
	s := &Session{logger: logger}

	assert.False(t, s.outputMuted())

	s.setVADMuted(true)
	assert.True(t, s.outputMuted())

	s.setVADMuted(false)
	assert.False(t, s.outputMuted())

	s.setExplicitMuted(true)
	assert.True(t, s.outputMuted())

	// Both mutes can be held at once; releasing one keeps the other.
	s.setVADMuted(true)
	s.setExplicitMuted(false)
	assert.True(t, s.outputMuted())

	s.setVADMuted(false)
	assert.False(t, s.outputMuted())
}

func TestCurrentSessionLifecycle(t *testing.T) {
	require.False(t, SessionActive())

	a, err := newSession(SessionConfig{})
	require.NoError(t, err)
	b, err := newSession(SessionConfig{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.peerConnection.Close()
		_ = b.peerConnection.Close()
		clearCurrentSession(a)
		clearCurrentSession(b)
	})

	setCurrentSession(a)
	assert.True(t, SessionActive())
	assert.Same(t, a, CurrentSession())

	// A new session replaces the previous one.
	setCurrentSession(b)
	assert.Same(t, b, CurrentSession())

	// Clearing a stale session is a no-op.
	clearCurrentSession(a)
	assert.Same(t, b, CurrentSession())

	clearCurrentSession(b)
	assert.False(t, SessionActive())
	assert.Nil(t, CurrentSession())
}
