package voicegate

import (
	"encoding/base64"
	"encoding/json"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/voicegate/voicegate/internal/feed"
	"github.com/voicegate/voicegate/internal/levels"
	"github.com/voicegate/voicegate/internal/logging"
)

// audioLevelURI identifies the RTP header extension carrying per-packet
// audio levels (RFC 6464).
const audioLevelURI = "urn:ietf:params:rtp-hdrext:ssrc-audio-level"

// Session owns one peer connection. The remote participant sends audio,
// the session measures it through a feed and echoes it back, dropping
// packets while any mute is in force.
type Session struct {
	id             string
	logger         *zerolog.Logger
	peerConnection *webrtc.PeerConnection
	EchoTrack      *webrtc.TrackLocalStaticRTP
	RPCChannel     *webrtc.DataChannel

	mu       sync.Mutex
	feedID   string
	hasVideo bool

	vadMutedFlag      int32
	explicitMutedFlag int32
}

type SessionConfig struct {
	ICEServers []string
	Logger     *zerolog.Logger
}

func (s *Session) ExchangeOffer(offerStr string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(offerStr)
	if err != nil {
		return "", err
	}
	offer := webrtc.SessionDescription{}
	err = json.Unmarshal(b, &offer)
	if err != nil {
		return "", err
	}
	// Set the remote SessionDescription
	if err = s.peerConnection.SetRemoteDescription(offer); err != nil {
		return "", err
	}

	// Create answer
	answer, err := s.peerConnection.CreateAnswer(nil)
	if err != nil {
		return "", err
	}

	gatherComplete := webrtc.GatheringCompletePromise(s.peerConnection)

	// Sets the LocalDescription, and starts our UDP listeners
	if err = s.peerConnection.SetLocalDescription(answer); err != nil {
		return "", err
	}

	// The answer travels on a single HTTP response, so candidates must
	// be gathered before it is returned instead of trickled afterwards.
	<-gatherComplete

	localDescription, err := json.Marshal(s.peerConnection.LocalDescription())
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(localDescription), nil
}

func newSession(sessionConfig SessionConfig) (*Session, error) {
	webrtcSettingEngine := webrtc.SettingEngine{
		LoggerFactory: logging.GetPionDefaultLoggerFactory(),
	}
	iceServer := webrtc.ICEServer{}

	var scopedLogger *zerolog.Logger
	if sessionConfig.Logger != nil {
		l := sessionConfig.Logger.With().Str("component", "webrtc").Logger()
		scopedLogger = &l
	} else {
		scopedLogger = webrtcLogger
	}

	if len(sessionConfig.ICEServers) > 0 {
		iceServer.URLs = sessionConfig.ICEServers
		scopedLogger.Info().Interface("iceServers", iceServer.URLs).Msg("using configured ICE servers")
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	// The sender's per-packet level rides in this extension; without it
	// a feed only ever sees missing-data ticks.
	if err := mediaEngine.RegisterHeaderExtension(webrtc.RTPHeaderExtensionCapability{URI: audioLevelURI}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithSettingEngine(webrtcSettingEngine),
	)
	peerConnection, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{iceServer},
	})
	if err != nil {
		return nil, err
	}
	session := &Session{
		id:             uuid.NewString(),
		logger:         scopedLogger,
		peerConnection: peerConnection,
	}

	peerConnection.OnDataChannel(func(d *webrtc.DataChannel) {
		scopedLogger.Info().Str("label", d.Label()).Msg("new DataChannel")
		if d.Label() == "rpc" {
			session.RPCChannel = d
			d.OnMessage(func(msg webrtc.DataChannelMessage) {
				go onFeedRPCMessage(msg, session)
			})
		}
	})

	session.EchoTrack, err = webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio-echo", "voicegate")
	if err != nil {
		return nil, err
	}

	// Bidirectional audio transceiver: the peer's microphone arrives on
	// the receiver, the echo goes back out on the sender.
	audioTransceiver, err := peerConnection.AddTransceiverFromTrack(session.EchoTrack, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendrecv,
	})
	if err != nil {
		return nil, err
	}
	audioRtpSender := audioTransceiver.Sender()

	// Video is accepted but never sent back; its presence only feeds the
	// effective mute computation.
	if _, err = peerConnection.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return nil, err
	}

	peerConnection.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		session.onRemoteTrack(track, receiver)
	})

	// Read incoming RTCP packets
	// Before these packets are returned they are processed by interceptors. For things
	// like NACK this needs to be called.
	go drainRtpSender(audioRtpSender)

	var isConnected bool

	peerConnection.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		// Candidates ride in the answer SDP; log them for diagnosis only.
		if candidate != nil {
			scopedLogger.Debug().Interface("candidate", candidate).Msg("gathered ICE candidate")
		}
	})

	peerConnection.OnICEConnectionStateChange(func(connectionState webrtc.ICEConnectionState) {
		scopedLogger.Info().Str("connectionState", connectionState.String()).Msg("ICE Connection State has changed")
		if connectionState == webrtc.ICEConnectionStateConnected {
			if !isConnected {
				isConnected = true
				activeSessions++
				onActiveSessionsChanged()
			}
		}
		//state changes on closing browser tab disconnected->failed, we need to manually close it
		if connectionState == webrtc.ICEConnectionStateFailed {
			scopedLogger.Debug().Msg("ICE Connection State is failed, closing peerConnection")
			_ = peerConnection.Close()
		}
		if connectionState == webrtc.ICEConnectionStateClosed {
			scopedLogger.Debug().Msg("ICE Connection State is closed, releasing feed")
			session.removeFeed()
			clearCurrentSession(session)
			if isConnected {
				isConnected = false
				activeSessions--
				onActiveSessionsChanged()
			}
		}
	})
	return session, nil
}

// onRemoteTrack wires an incoming track into the session's feed.
func (s *Session) onRemoteTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	s.logger.Info().Str("codec", track.Codec().MimeType).Str("id", track.ID()).Msg("got remote track")

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		s.noteVideoTrack()
		return
	}
	if track.Codec().MimeType != webrtc.MimeTypeOpus {
		return
	}

	extensionID := audioLevelExtensionID(receiver)
	if extensionID == 0 {
		s.logger.Warn().Msg("ssrc-audio-level extension not negotiated, feed will see no levels")
	}
	source := levels.NewRTPSource(extensionID)

	feedID := uuid.NewString()
	f := feed.New(feed.Config{
		ID:                feedID,
		SpeakingThreshold: config.DefaultSpeakingThreshold,
		VADThreshold:      config.DefaultVADThreshold,
		SamplingInterval:  config.SamplingInterval(),
		VADCooldown:       config.VADCooldown(),
		HasAudioTrack:     true,
		HasVideoTrack:     s.hasVideoTrack(),
		RequestMute:       s.setVADMuted,
		Listener: func(n feed.Notification) {
			if n.Kind == feed.KindMuteState {
				s.setExplicitMuted(n.Audio)
			}
			GetFeedEventBroadcaster().OnFeedNotification(feedID, n)
		},
	})
	f.AttachSource(source)
	feedRegistry.Add(f)
	s.setFeedID(feedID)
	f.StartMeasuring()

	s.logger.Info().Str("feedID", feedID).Uint8("extensionID", extensionID).Msg("feed attached to remote audio track")

	go s.runAudioLoop(track, source)
}

// runAudioLoop pumps RTP from the remote track into the level source and
// echoes it back unless a mute is in force. Muted packets are dropped
// rather than rewritten, which the receiver plays out as silence.
func (s *Session) runAudioLoop(track *webrtc.TrackRemote, source *levels.RTPSource) {
	// Lock to OS thread to isolate RTP processing
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer s.removeFeed()

	for {
		rtpPacket, _, err := track.ReadRTP()
		if err != nil {
			s.logger.Debug().Err(err).Msg("audio track read loop ended")
			return
		}

		source.Observe(rtpPacket)

		if s.outputMuted() {
			continue
		}
		if err := s.EchoTrack.WriteRTP(rtpPacket); err != nil {
			s.logger.Debug().Err(err).Msg("failed to write echo packet")
		}
	}
}

// feed returns the session's feed, nil when no audio track has arrived
// or the feed has been removed.
func (s *Session) feed() *feed.Feed {
	s.mu.Lock()
	id := s.feedID
	s.mu.Unlock()
	if id == "" {
		return nil
	}
	f, err := feedRegistry.Get(id)
	if err != nil {
		return nil
	}
	return f
}

func (s *Session) setFeedID(id string) {
	s.mu.Lock()
	s.feedID = id
	s.mu.Unlock()
}

func (s *Session) removeFeed() {
	s.mu.Lock()
	id := s.feedID
	s.feedID = ""
	s.mu.Unlock()
	if id != "" {
		feedRegistry.Remove(id)
	}
}

func (s *Session) noteVideoTrack() {
	s.mu.Lock()
	s.hasVideo = true
	id := s.feedID
	s.mu.Unlock()
	if id == "" {
		return
	}
	if f, err := feedRegistry.Get(id); err == nil {
		f.SetHasVideoTrack(true)
	}
}

func (s *Session) hasVideoTrack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasVideo
}

func (s *Session) setVADMuted(muted bool) {
	if muted {
		atomic.StoreInt32(&s.vadMutedFlag, 1)
	} else {
		atomic.StoreInt32(&s.vadMutedFlag, 0)
	}
	s.logger.Info().Bool("muted", muted).Msg("voice activity mute changed")
}

func (s *Session) setExplicitMuted(muted bool) {
	if muted {
		atomic.StoreInt32(&s.explicitMutedFlag, 1)
	} else {
		atomic.StoreInt32(&s.explicitMutedFlag, 0)
	}
}

// outputMuted reports whether echoed audio must be dropped. Voice
// activity mutes and explicit mutes are independent; either suffices.
func (s *Session) outputMuted() bool {
	return atomic.LoadInt32(&s.vadMutedFlag) == 1 || atomic.LoadInt32(&s.explicitMutedFlag) == 1
}

// audioLevelExtensionID returns the negotiated extension ID carrying
// RFC 6464 audio levels, 0 when the peer did not offer it.
func audioLevelExtensionID(receiver *webrtc.RTPReceiver) uint8 {
	for _, ext := range receiver.GetParameters().HeaderExtensions {
		if ext.URI == audioLevelURI {
			return uint8(ext.ID)
		}
	}
	return 0
}

func drainRtpSender(rtpSender *webrtc.RTPSender) {
	// Lock to OS thread to isolate RTCP processing
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	rtcpBuf := make([]byte, 1500)
	for {
		if _, _, err := rtpSender.Read(rtcpBuf); err != nil {
			return
		}
	}
}

var activeSessions = 0

func onActiveSessionsChanged() {
	logger.Info().Int("activeSessions", activeSessions).Msg("active session count changed")
}
