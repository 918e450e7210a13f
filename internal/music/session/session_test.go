package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/keshon/lapis-music/internal/music/track"
)

type harness struct {
	reg      *Registry
	mu       sync.Mutex
	sinks    map[string]*fakeSink
	notifier *fakeNotifier
	created  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{sinks: make(map[string]*fakeSink), notifier: newFakeNotifier()}
	h.reg = NewRegistry(Options{
		Config: testConfig(),
		Logger: zaptest.NewLogger(t),
		SinkFactory: func(guildID string) Sink {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.created++
			s := newFakeSink()
			h.sinks[guildID] = s
			return s
		},
		NotifierFactory: func(Origin) Notifier { return h.notifier },
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = h.reg.Shutdown(ctx)
	})
	return h
}

func (h *harness) sink(guildID string) *fakeSink {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sinks[guildID]
}

func (h *harness) expectPlaying(t *testing.T, title string) {
	t.Helper()
	select {
	case got := <-h.notifier.playing:
		require.Equal(t, title, got)
	case <-time.After(waitFor):
		t.Fatalf("timed out waiting for %q to start", title)
	}
}

func (h *harness) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case got := <-h.notifier.playing:
		t.Fatalf("unexpected playback of %q", got)
	case <-time.After(d):
	}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(waitFor):
		t.Fatal("session coordinator did not exit")
	}
}

var origin = Origin{GuildID: "g1", ChannelID: "c1"}

func TestPlaysInOrder(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)

	for i, title := range []string{"A", "B", "C"} {
		pos, err := s.Enqueue(song(title))
		require.NoError(t, err)
		assert.LessOrEqual(t, pos, i+1)
	}

	sink := h.sink(origin.GuildID)
	h.expectPlaying(t, "A")
	require.True(t, sink.finish(nil))
	h.expectPlaying(t, "B")
	require.True(t, sink.finish(nil))
	h.expectPlaying(t, "C")

	played, _, _ := sink.snapshot()
	assert.Equal(t, []string{"test://A", "test://B", "test://C"}, played)
	assert.False(t, sink.concurrent)
}

func TestEnqueueDuringPlaybackWaitsForTrackEnd(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)

	_, err := s.Enqueue(song("A"))
	require.NoError(t, err)
	h.expectPlaying(t, "A")

	pos, err := s.Enqueue(song("B"))
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	h.expectSilence(t, 50*time.Millisecond)
	assert.Equal(t, "A", s.Current().Title())

	h.sink(origin.GuildID).finish(nil)
	h.expectPlaying(t, "B")
}

func TestSkipAdvances(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)

	s.Enqueue(song("A"))
	s.Enqueue(song("B"))
	h.expectPlaying(t, "A")

	skipped, err := s.Skip()
	require.NoError(t, err)
	assert.Equal(t, "A", skipped.Title())
	h.expectPlaying(t, "B")
	assert.Equal(t, 0, s.Snapshot().QueueLength)
}

func TestSkipWithNothingPlaying(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)

	_, err := s.Skip()
	assert.ErrorIs(t, err, ErrNothingPlaying)
}

func TestStopClearsQueueAndStaysConnected(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)

	s.Enqueue(song("A"))
	s.Enqueue(song("B"))
	s.Enqueue(song("C"))
	h.expectPlaying(t, "A")

	assert.Equal(t, 2, s.Stop())
	h.expectSilence(t, 20*time.Millisecond)

	sink := h.sink(origin.GuildID)
	_, stops, disconnects := sink.snapshot()
	assert.Equal(t, 1, stops)
	assert.Equal(t, 0, disconnects)
	assert.Nil(t, s.Current())
	assert.Equal(t, 0, s.Snapshot().QueueLength)
	assert.True(t, s.Connected())
}

func TestLoopReplaysCurrentBeforeQueue(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)
	s.SetLoop(true)

	s.Enqueue(song("A"))
	h.expectPlaying(t, "A")
	s.Enqueue(song("B"))

	sink := h.sink(origin.GuildID)
	sink.finish(nil)
	h.expectPlaying(t, "A")
	sink.finish(nil)
	h.expectPlaying(t, "A")

	assert.False(t, s.ToggleLoop())
	sink.finish(nil)
	h.expectPlaying(t, "B")
}

func TestStartFailureSkipsTrack(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)
	s.SetLoop(true)

	s.Enqueue(badSong("broken"))
	s.Enqueue(song("B"))

	h.expectPlaying(t, "B")
	select {
	case msg := <-h.notifier.errors:
		assert.Contains(t, msg, "broken")
	case <-time.After(waitFor):
		t.Fatal("expected an error notification")
	}
}

func TestNotConnectedDropsTrack(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)
	sink := h.sink(origin.GuildID)
	sink.mu.Lock()
	sink.connected = false
	sink.mu.Unlock()

	s.Enqueue(song("A"))

	select {
	case msg := <-h.notifier.errors:
		assert.Contains(t, msg, "not connected")
	case <-time.After(waitFor):
		t.Fatal("expected an error notification")
	}
	played, _, _ := sink.snapshot()
	assert.Empty(t, played)
}

func TestVolume(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)
	assert.Equal(t, DefaultVolume, s.Volume())

	require.NoError(t, s.SetVolumeLevel(150))
	assert.Equal(t, 1.5, s.Volume())

	assert.ErrorIs(t, s.SetVolumeLevel(250), ErrVolumeOutOfRange)
	assert.ErrorIs(t, s.SetVolumeLevel(-1), ErrVolumeOutOfRange)
	assert.Equal(t, 1.5, s.Volume())

	s.Enqueue(song("A"))
	h.expectPlaying(t, "A")
	sink := h.sink(origin.GuildID)
	sink.mu.Lock()
	assert.Equal(t, 1.5, sink.volume)
	sink.mu.Unlock()

	require.NoError(t, s.SetVolume(0.25))
	sink.mu.Lock()
	assert.Equal(t, 0.25, sink.volume)
	sink.mu.Unlock()
}

func TestIdleSessionIsDestroyedOnce(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)

	waitDone(t, s)

	assert.Equal(t, 0, h.reg.Len())
	assert.Equal(t, StateDestroyed, s.State())
	_, _, disconnects := h.sink(origin.GuildID).snapshot()
	assert.Equal(t, 1, disconnects)

	_, err := s.Enqueue(song("late"))
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestIdleTimerResetByEnqueue(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)

	time.Sleep(testConfig().IdleTimeout / 2)
	s.Enqueue(song("A"))
	h.expectPlaying(t, "A")

	time.Sleep(testConfig().IdleTimeout * 2)
	got, ok := h.reg.Get(origin.GuildID)
	require.True(t, ok, "a playing session must not expire")
	assert.Same(t, s, got)
}

func TestPersistentSessionSurvivesIdle(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)
	s.SetPersistent(true)

	s.Enqueue(song("A"))
	h.expectPlaying(t, "A")
	h.sink(origin.GuildID).finish(nil)

	time.Sleep(testConfig().IdleTimeout * 4)
	got, ok := h.reg.Get(origin.GuildID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, StateIdle, s.State())

	assert.False(t, s.TogglePersistent())
	waitDone(t, s)
	assert.Equal(t, 0, h.reg.Len())
}

func TestPersistentSessionStillPlaysNewTracks(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)
	s.SetPersistent(true)

	time.Sleep(testConfig().IdleTimeout * 2)
	s.Enqueue(song("A"))
	h.expectPlaying(t, "A")
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)
	s.SetLoop(true)
	s.SetPersistent(true)

	s.Enqueue(song("A"))
	h.expectPlaying(t, "A")
	s.Enqueue(song("B"))
	s.Enqueue(song("C"))

	snap := s.Snapshot()
	assert.Equal(t, StatePlaying, snap.State)
	assert.Equal(t, "A", snap.Current.Title())
	assert.Equal(t, 2, snap.QueueLength)
	assert.True(t, snap.Loop)
	assert.True(t, snap.Persistent)

	up := s.Upcoming(10)
	require.Len(t, up, 2)
	assert.Equal(t, "B", up[0].Title())
}

func TestSkipWithLoopReplaysTrack(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)
	s.SetLoop(true)

	s.Enqueue(song("A"))
	s.Enqueue(song("B"))
	h.expectPlaying(t, "A")

	skipped, err := s.Skip()
	require.NoError(t, err)
	assert.Equal(t, "A", skipped.Title())
	h.expectPlaying(t, "A")
	assert.Equal(t, 1, s.Snapshot().QueueLength)

	s.SetLoop(false)
	_, err = s.Skip()
	require.NoError(t, err)
	h.expectPlaying(t, "B")
}

func TestSlowStopStillAdvances(t *testing.T) {
	h := newHarness(t)
	s := h.reg.GetOrCreate(origin)
	sink := h.sink(origin.GuildID)
	sink.mu.Lock()
	sink.stopDelay = 30 * time.Millisecond
	sink.mu.Unlock()

	s.Enqueue(song("A"))
	s.Enqueue(song("B"))
	h.expectPlaying(t, "A")

	_, err := s.Skip()
	require.NoError(t, err)
	h.expectPlaying(t, "B")
	assert.False(t, sink.concurrent)
}

func TestFailedPopEvictsSession(t *testing.T) {
	reg := NewRegistry(Options{
		Config:      testConfig(),
		SinkFactory: func(string) Sink { return newFakeSink() },
	})
	sink := newFakeSink()
	s := newSession(reg, origin, sink, nil, testConfig(), zaptest.NewLogger(t))
	reg.mu.Lock()
	reg.sessions[origin.GuildID] = s
	reg.mu.Unlock()

	_, err := s.popNext()
	require.ErrorIs(t, err, track.ErrEmpty)
	assert.Nil(t, s.Current())

	require.True(t, s.expire())
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, StateDestroyed, s.State())
	_, _, disconnects := sink.snapshot()
	assert.Equal(t, 1, disconnects)

	_, err = s.popNext()
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestFailedPopKeepsPersistentSession(t *testing.T) {
	reg := NewRegistry(Options{
		Config:      testConfig(),
		SinkFactory: func(string) Sink { return newFakeSink() },
	})
	sink := newFakeSink()
	s := newSession(reg, origin, sink, nil, testConfig(), zaptest.NewLogger(t))
	reg.mu.Lock()
	reg.sessions[origin.GuildID] = s
	reg.mu.Unlock()
	s.SetPersistent(true)

	_, err := s.popNext()
	require.ErrorIs(t, err, track.ErrEmpty)
	assert.False(t, s.expire())
	assert.Equal(t, 1, reg.Len())

	reg.Destroy(origin.GuildID)
}
