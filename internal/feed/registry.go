package feed

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/voicegate/voicegate/internal/logging"
)

// ErrFeedNotFound is returned when a feed ID is not registered.
var ErrFeedNotFound = errors.New("feed not found")

// Registry tracks the live feeds by ID.
type Registry struct {
	mu     sync.RWMutex
	feeds  map[string]*Feed
	logger zerolog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		feeds:  make(map[string]*Feed),
		logger: logging.GetDefaultLogger().With().Str("component", "feed-registry").Logger(),
	}
}

// Add registers a feed. Registering over an existing ID disposes the feed
// it replaces.
func (r *Registry) Add(f *Feed) {
	r.mu.Lock()
	old := r.feeds[f.ID()]
	r.feeds[f.ID()] = f
	size := len(r.feeds)
	r.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
	activeFeeds.Set(float64(size))
	r.logger.Info().Str("feed_id", f.ID()).Int("feeds", size).Msg("feed registered")
}

// Get returns the feed registered under id.
func (r *Registry) Get(id string) (*Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.feeds[id]
	if !ok {
		return nil, ErrFeedNotFound
	}
	return f, nil
}

// List returns the live feeds sorted by ID.
func (r *Registry) List() []*Feed {
	r.mu.RLock()
	out := make([]*Feed, 0, len(r.feeds))
	for _, f := range r.feeds {
		out = append(out, f)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Remove disposes and forgets the feed under id. Unknown IDs are a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	f, ok := r.feeds[id]
	if ok {
		delete(r.feeds, id)
	}
	size := len(r.feeds)
	r.mu.Unlock()

	if !ok {
		return
	}
	f.Dispose()
	activeFeeds.Set(float64(size))
	r.logger.Info().Str("feed_id", id).Int("feeds", size).Msg("feed removed")
}

// Clear disposes every feed, for shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	feeds := r.feeds
	r.feeds = make(map[string]*Feed)
	r.mu.Unlock()

	for _, f := range feeds {
		f.Dispose()
	}
	activeFeeds.Set(0)
}
