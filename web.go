package voicegate

import (
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicegate/voicegate/internal/feed"
)

// FeedSnapshot is the wire form of one feed's state. Level values are
// clamped to the wire floor because JSON cannot carry -Inf.
type FeedSnapshot struct {
	ID                       string    `json:"id"`
	Measuring                bool      `json:"measuring"`
	Speaking                 bool      `json:"speaking"`
	MaxVolumeDB              float64   `json:"max_volume_db"`
	WindowDB                 []float64 `json:"window_db"`
	SpeakingThresholdDB      float64   `json:"speaking_threshold_db"`
	VoiceActivityThresholdDB float64   `json:"voice_activity_threshold_db"`
	VADEnabled               bool      `json:"vad_enabled"`
	VADMuted                 bool      `json:"vad_muted"`
	AudioMuted               bool      `json:"audio_muted"`
	VideoMuted               bool      `json:"video_muted"`
	EffectiveAudioMuted      bool      `json:"effective_audio_muted"`
	EffectiveVideoMuted      bool      `json:"effective_video_muted"`
	LocalVolume              float64   `json:"local_volume"`
}

func snapshotFeed(f *feed.Feed) FeedSnapshot {
	samples := f.VolumeSamples()
	windowDB := make([]float64, len(samples))
	for i, v := range samples {
		windowDB[i] = clampLevelDB(v)
	}
	return FeedSnapshot{
		ID:                       f.ID(),
		Measuring:                f.Measuring(),
		Speaking:                 f.Speaking(),
		MaxVolumeDB:              clampLevelDB(f.MaxVolume()),
		WindowDB:                 windowDB,
		SpeakingThresholdDB:      f.SpeakingThreshold(),
		VoiceActivityThresholdDB: f.VoiceActivityThreshold(),
		VADEnabled:               f.VADEnabled(),
		VADMuted:                 f.VADMuted(),
		AudioMuted:               f.AudioMuted(),
		VideoMuted:               f.VideoMuted(),
		EffectiveAudioMuted:      f.EffectiveAudioMuted(),
		EffectiveVideoMuted:      f.EffectiveVideoMuted(),
		LocalVolume:              f.LocalVolume(),
	}
}

type thresholdsRequest struct {
	SpeakingThresholdDB      *float64 `json:"speaking_threshold_db"`
	VoiceActivityThresholdDB *float64 `json:"voice_activity_threshold_db"`
}

// muteRequest uses pointers so an omitted flag leaves that mute untouched.
type muteRequest struct {
	Audio *bool `json:"audio"`
	Video *bool `json:"video"`
}

type volumeRequest struct {
	Volume *float64 `json:"volume" binding:"required"`
}

type webrtcSessionRequest struct {
	SD string `json:"sd" binding:"required"`
}

func checkThresholdRange(db float64) error {
	if db < MinThresholdDB || db > MaxThresholdDB {
		return fmt.Errorf("threshold %v out of range [%v to %v]", db, MinThresholdDB, MaxThresholdDB)
	}
	return nil
}

func lookupFeed(c *gin.Context) (*feed.Feed, bool) {
	f, err := feedRegistry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
		return nil, false
	}
	return f, true
}

func handleListFeeds(c *gin.Context) {
	feeds := feedRegistry.List()
	snapshots := make([]FeedSnapshot, 0, len(feeds))
	for _, f := range feeds {
		snapshots = append(snapshots, snapshotFeed(f))
	}
	c.JSON(http.StatusOK, gin.H{
		"feeds":          snapshots,
		"session_active": SessionActive(),
	})
}

func handleGetFeed(c *gin.Context) {
	f, ok := lookupFeed(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snapshotFeed(f))
}

func handleSetThresholds(c *gin.Context) {
	f, ok := lookupFeed(c)
	if !ok {
		return
	}
	var req thresholdsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SpeakingThresholdDB == nil && req.VoiceActivityThresholdDB == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no threshold provided"})
		return
	}
	if req.SpeakingThresholdDB != nil {
		if err := checkThresholdRange(*req.SpeakingThresholdDB); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.VoiceActivityThresholdDB != nil {
		if err := checkThresholdRange(*req.VoiceActivityThresholdDB); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.SpeakingThresholdDB != nil {
		f.SetSpeakingThreshold(*req.SpeakingThresholdDB)
	}
	if req.VoiceActivityThresholdDB != nil {
		f.SetVoiceActivityThreshold(*req.VoiceActivityThresholdDB)
	}
	c.JSON(http.StatusOK, snapshotFeed(f))
}

func handleSetMute(c *gin.Context) {
	f, ok := lookupFeed(c)
	if !ok {
		return
	}
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	audio := f.AudioMuted()
	video := f.VideoMuted()
	if req.Audio != nil {
		audio = *req.Audio
	}
	if req.Video != nil {
		video = *req.Video
	}
	f.SetMuted(audio, video)
	c.JSON(http.StatusOK, snapshotFeed(f))
}

func handleSetVolume(c *gin.Context) {
	f, ok := lookupFeed(c)
	if !ok {
		return
	}
	var req volumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Volume < 0 || *req.Volume > MaxLocalVolume {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("volume %v out of range [0 to %v]", *req.Volume, MaxLocalVolume)})
		return
	}
	f.SetLocalVolume(*req.Volume)
	c.JSON(http.StatusOK, snapshotFeed(f))
}

func handleRemoveFeed(c *gin.Context) {
	if _, ok := lookupFeed(c); !ok {
		return
	}
	feedRegistry.Remove(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func handleWebRTCSession(c *gin.Context) {
	var req webrtcSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := newSession(SessionConfig{ICEServers: config.ICEServers})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sd, err := session.ExchangeOffer(req.SD)
	if err != nil {
		_ = session.peerConnection.Close()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	setCurrentSession(session)
	c.JSON(http.StatusOK, gin.H{"sd": sd})
}

// handleFeedEvents upgrades the connection and subscribes it to the feed
// event broadcaster. The connection is send-only from our side; client
// frames are drained until it closes.
func handleFeedEvents(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to accept feed events websocket")
		return
	}

	connectionID := uuid.NewString()
	l := logger.With().Str("component", "feed-events").Str("connectionID", connectionID).Logger()

	ctx := c.Request.Context()
	broadcaster := GetFeedEventBroadcaster()
	broadcaster.Subscribe(connectionID, conn, ctx, &l)
	defer broadcaster.Unsubscribe(connectionID)

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}
	_ = conn.CloseNow()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())

	r.GET("/api/feeds", handleListFeeds)
	r.GET("/api/feeds/:id", handleGetFeed)
	r.POST("/api/feeds/:id/thresholds", handleSetThresholds)
	r.POST("/api/feeds/:id/mute", handleSetMute)
	r.POST("/api/feeds/:id/volume", handleSetVolume)
	r.DELETE("/api/feeds/:id", handleRemoveFeed)
	r.POST("/webrtc/session", handleWebRTCSession)
	r.GET("/events", handleFeedEvents)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// RunWebServer blocks serving the HTTP API.
func RunWebServer() {
	r := setupRouter()
	logger.Info().Str("addr", config.ListenAddr).Msg("web server listening")
	if err := r.Run(config.ListenAddr); err != nil {
		logger.Error().Err(err).Msg("web server exited")
	}
}
