package voicegate

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/voicegate/voicegate/internal/feed"
)

// FeedEventType represents different types of feed events
type FeedEventType string

const (
	FeedEventLevelChanged       FeedEventType = "feed-level-changed"
	FeedEventSpeakingChanged    FeedEventType = "feed-speaking-changed"
	FeedEventLocalVolumeChanged FeedEventType = "feed-local-volume-changed"
	FeedEventMuteChanged        FeedEventType = "feed-mute-changed"
)

// FeedEvent represents a WebSocket feed event
type FeedEvent struct {
	Type   FeedEventType `json:"type"`
	FeedID string        `json:"feed_id"`
	Data   interface{}   `json:"data"`
}

// FeedLevelData represents a peak level reading
type FeedLevelData struct {
	LevelDB float64 `json:"level_db"`
}

// FeedSpeakingData represents a speaking verdict change
type FeedSpeakingData struct {
	Speaking bool `json:"speaking"`
}

// FeedLocalVolumeData represents a playback gain change
type FeedLocalVolumeData struct {
	Volume float64 `json:"volume"`
}

// FeedMuteData represents feed mute state change data
type FeedMuteData struct {
	AudioMuted bool `json:"audio_muted"`
	VideoMuted bool `json:"video_muted"`
}

// levelFloorDB bounds level values on the wire; JSON has no encoding for
// the -Inf that marks silence internally.
const levelFloorDB = -150.0

func clampLevelDB(db float64) float64 {
	if math.IsInf(db, -1) || db < levelFloorDB {
		return levelFloorDB
	}
	return db
}

// FeedEventSubscriber represents a WebSocket connection subscribed to feed events
type FeedEventSubscriber struct {
	conn   *websocket.Conn
	ctx    context.Context
	logger *zerolog.Logger
}

// FeedEventBroadcaster manages feed event subscriptions and broadcasting
type FeedEventBroadcaster struct {
	subscribers map[string]*FeedEventSubscriber
	mutex       sync.RWMutex
	logger      *zerolog.Logger
}

var (
	feedEventBroadcaster *FeedEventBroadcaster
	feedEventOnce        sync.Once
)

// InitializeFeedEventBroadcaster initializes the global feed event broadcaster
func InitializeFeedEventBroadcaster() {
	feedEventOnce.Do(func() {
		l := logger.With().Str("component", "feed-events").Logger()
		feedEventBroadcaster = &FeedEventBroadcaster{
			subscribers: make(map[string]*FeedEventSubscriber),
			logger:      &l,
		}

		// Start level broadcasting goroutine
		go feedEventBroadcaster.startLevelBroadcasting()
	})
}

// GetFeedEventBroadcaster returns the singleton feed event broadcaster
func GetFeedEventBroadcaster() *FeedEventBroadcaster {
	feedEventOnce.Do(func() {
		l := logger.With().Str("component", "feed-events").Logger()
		feedEventBroadcaster = &FeedEventBroadcaster{
			subscribers: make(map[string]*FeedEventSubscriber),
			logger:      &l,
		}

		// Start level broadcasting goroutine
		go feedEventBroadcaster.startLevelBroadcasting()
	})
	return feedEventBroadcaster
}

// Subscribe adds a WebSocket connection to receive feed events
func (feb *FeedEventBroadcaster) Subscribe(connectionID string, conn *websocket.Conn, ctx context.Context, logger *zerolog.Logger) {
	feb.mutex.Lock()
	defer feb.mutex.Unlock()

	feb.subscribers[connectionID] = &FeedEventSubscriber{
		conn:   conn,
		ctx:    ctx,
		logger: logger,
	}

	feb.logger.Info().Str("connectionID", connectionID).Msg("feed events subscription added")

	// Send initial state to new subscriber
	go feb.sendInitialState(connectionID)
}

// Unsubscribe removes a WebSocket connection from feed events
func (feb *FeedEventBroadcaster) Unsubscribe(connectionID string) {
	feb.mutex.Lock()
	defer feb.mutex.Unlock()

	delete(feb.subscribers, connectionID)
	feb.logger.Info().Str("connectionID", connectionID).Msg("feed events subscription removed")
}

// OnFeedNotification fans a feed notification out to websocket subscribers.
// Per-tick level readings are not forwarded here; the periodic level
// broadcast covers them at a subscriber-friendly rate.
func (feb *FeedEventBroadcaster) OnFeedNotification(feedID string, n feed.Notification) {
	switch n.Kind {
	case feed.KindSpeaking:
		feb.broadcast(FeedEvent{
			Type:   FeedEventSpeakingChanged,
			FeedID: feedID,
			Data:   FeedSpeakingData{Speaking: n.Speaking},
		})
	case feed.KindLocalVolume:
		feb.broadcast(FeedEvent{
			Type:   FeedEventLocalVolumeChanged,
			FeedID: feedID,
			Data:   FeedLocalVolumeData{Volume: n.Gain},
		})
	case feed.KindMuteState:
		feb.broadcast(FeedEvent{
			Type:   FeedEventMuteChanged,
			FeedID: feedID,
			Data:   FeedMuteData{AudioMuted: n.Audio, VideoMuted: n.Video},
		})
	case feed.KindLevel:
		// Forward only the floor marker published when measurement
		// stops, so meters clear without waiting for the next tick.
		if math.IsInf(n.Level, -1) {
			feb.broadcast(FeedEvent{
				Type:   FeedEventLevelChanged,
				FeedID: feedID,
				Data:   FeedLevelData{LevelDB: clampLevelDB(n.Level)},
			})
		}
	}
}

// sendInitialState sends current feed state to a new subscriber
func (feb *FeedEventBroadcaster) sendInitialState(connectionID string) {
	feb.mutex.RLock()
	subscriber, exists := feb.subscribers[connectionID]
	feb.mutex.RUnlock()

	if !exists {
		return
	}

	if feedRegistry == nil {
		return
	}

	for _, f := range feedRegistry.List() {
		muteEvent := FeedEvent{
			Type:   FeedEventMuteChanged,
			FeedID: f.ID(),
			Data:   FeedMuteData{AudioMuted: f.AudioMuted(), VideoMuted: f.VideoMuted()},
		}
		feb.sendToSubscriber(subscriber, muteEvent)

		speakingEvent := FeedEvent{
			Type:   FeedEventSpeakingChanged,
			FeedID: f.ID(),
			Data:   FeedSpeakingData{Speaking: f.Speaking()},
		}
		feb.sendToSubscriber(subscriber, speakingEvent)

		volumeEvent := FeedEvent{
			Type:   FeedEventLocalVolumeChanged,
			FeedID: f.ID(),
			Data:   FeedLocalVolumeData{Volume: f.LocalVolume()},
		}
		feb.sendToSubscriber(subscriber, volumeEvent)

		levelEvent := FeedEvent{
			Type:   FeedEventLevelChanged,
			FeedID: f.ID(),
			Data:   FeedLevelData{LevelDB: clampLevelDB(f.MaxVolume())},
		}
		feb.sendToSubscriber(subscriber, levelEvent)
	}
}

// startLevelBroadcasting starts a goroutine that periodically broadcasts peak levels
func (feb *FeedEventBroadcaster) startLevelBroadcasting() {
	interval := 250 * time.Millisecond
	if config != nil && config.LevelBroadcastIntervalMS > 0 {
		interval = config.LevelBroadcastInterval()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		feb.mutex.RLock()
		subscriberCount := len(feb.subscribers)
		feb.mutex.RUnlock()

		// Only broadcast if there are subscribers
		if subscriberCount == 0 {
			continue
		}

		if feedRegistry == nil {
			continue
		}

		for _, f := range feedRegistry.List() {
			if !f.Measuring() {
				continue
			}
			feb.broadcast(FeedEvent{
				Type:   FeedEventLevelChanged,
				FeedID: f.ID(),
				Data:   FeedLevelData{LevelDB: clampLevelDB(f.MaxVolume())},
			})
		}
	}
}

// broadcast sends an event to all subscribers
func (feb *FeedEventBroadcaster) broadcast(event FeedEvent) {
	feb.mutex.RLock()
	defer feb.mutex.RUnlock()

	for connectionID, subscriber := range feb.subscribers {
		go func(id string, sub *FeedEventSubscriber) {
			if !feb.sendToSubscriber(sub, event) {
				// Remove failed subscriber
				feb.mutex.Lock()
				delete(feb.subscribers, id)
				feb.mutex.Unlock()
				feb.logger.Warn().Str("connectionID", id).Msg("removed failed feed events subscriber")
			}
		}(connectionID, subscriber)
	}
}

// sendToSubscriber sends an event to a specific subscriber
func (feb *FeedEventBroadcaster) sendToSubscriber(subscriber *FeedEventSubscriber, event FeedEvent) bool {
	ctx, cancel := context.WithTimeout(subscriber.ctx, 5*time.Second)
	defer cancel()

	err := wsjson.Write(ctx, subscriber.conn, event)
	if err != nil {
		subscriber.logger.Warn().Err(err).Msg("failed to send feed event to subscriber")
		return false
	}

	return true
}
