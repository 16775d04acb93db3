package feed

import (
	"sync"
	"testing"
	"time"

	"github.com/voicegate/voicegate/internal/levels"
)

// scriptedSource hands out queued readings one per tick and reports no data
// once the queue is empty.
type scriptedSource struct {
	mu    sync.Mutex
	queue []float64
}

func (s *scriptedSource) push(readings ...float64) {
	s.mu.Lock()
	s.queue = append(s.queue, readings...)
	s.mu.Unlock()
}

func (s *scriptedSource) ReadPeakLevel() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0, false
	}
	v := s.queue[0]
	s.queue = s.queue[1:]
	return v, true
}

// constantSource always has the same reading available.
type constantSource struct {
	level float64
}

func (s constantSource) ReadPeakLevel() (float64, bool) {
	return s.level, true
}

// recorder captures notifications and mute requests in arrival order.
type recorder struct {
	mu    sync.Mutex
	notes []Notification
	mutes []bool
}

func (r *recorder) listen(n Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recorder) requestMute(muted bool) {
	r.mu.Lock()
	r.mutes = append(r.mutes, muted)
	r.mu.Unlock()
}

func (r *recorder) notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

func (r *recorder) notificationsOf(kind Kind) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) muteRequests() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.mutes...)
}

// fakeClock is a hand-advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newManualFeed builds a measuring feed whose loop never fires on its own,
// so tests drive ticks by hand.
func newManualFeed(t *testing.T, src levels.Source, rec *recorder, clock *fakeClock) *Feed {
	t.Helper()
	f := New(Config{
		ID:               "feed-under-test",
		SamplingInterval: time.Hour,
		Clock:            clock.Now,
		Listener:         rec.listen,
		RequestMute:      rec.requestMute,
	})
	f.AttachSource(src)
	f.StartMeasuring()
	t.Cleanup(f.Dispose)
	return f
}

// driveTick runs one sampling step on behalf of the loop.
func driveTick(f *Feed) bool {
	f.mu.Lock()
	stop := f.stopCh
	f.mu.Unlock()
	return f.tick(stop)
}
