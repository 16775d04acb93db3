package voicegate

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voicegate/voicegate/internal/feed"
	"github.com/voicegate/voicegate/internal/logging"
)

var (
	logger       = logging.GetSubsystemLogger("voicegate")
	webrtcLogger = logging.GetSubsystemLogger("webrtc")

	feedRegistry *feed.Registry
)

func Main() {
	// A .env file is optional; its absence is the normal production case.
	_ = godotenv.Load()

	LoadConfig()
	logging.SetLevel(config.LogLevel)

	logger.Info().
		Str("listen_addr", config.ListenAddr).
		Float64("speaking_threshold_db", config.DefaultSpeakingThreshold).
		Float64("voice_activity_threshold_db", config.DefaultVADThreshold).
		Int("sampling_interval_ms", config.SamplingIntervalMS).
		Msg("starting voicegate")

	feedRegistry = feed.NewRegistry()

	// Initialize feed event broadcaster for WebSocket-based real-time updates
	InitializeFeedEventBroadcaster()
	logger.Info().Msg("feed event broadcaster initialized")

	go RunWebServer()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("voicegate shutting down")

	if session := CurrentSession(); session != nil {
		_ = session.peerConnection.Close()
	}
	feedRegistry.Clear()
}
