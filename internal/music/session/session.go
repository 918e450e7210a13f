package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/music/track"
)

const (
	DefaultIdleTimeout = 300 * time.Second
	DefaultPopTimeout  = 10 * time.Second
	DefaultVolume      = 0.5
	MaxVolume          = 2.0
	MaxVolumeLevel     = 200
)

type State int

const (
	StateIdle State = iota
	StatePlaying
	StateDraining
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateDraining:
		return "draining"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the coordinator timings.
type Config struct {
	// IdleTimeout is how long an empty, non-persistent session waits before teardown.
	IdleTimeout time.Duration
	// PopTimeout bounds taking the next track off the queue.
	PopTimeout time.Duration
	// DefaultVolume is the fraction new sessions start with.
	DefaultVolume float64
}

func DefaultConfig() Config {
	return Config{
		IdleTimeout:   DefaultIdleTimeout,
		PopTimeout:    DefaultPopTimeout,
		DefaultVolume: DefaultVolume,
	}
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = DefaultPopTimeout
	}
	if c.DefaultVolume <= 0 || c.DefaultVolume > MaxVolume {
		c.DefaultVolume = DefaultVolume
	}
	return c
}

// Snapshot is a consistent read of a session for display.
type Snapshot struct {
	State       State
	Current     *track.Track
	QueueLength int
	Loop        bool
	Persistent  bool
	Volume      float64
}

// Session is the playback coordinator of one guild.
type Session struct {
	id        string
	origin    Origin
	cfg       Config
	createdAt time.Time
	log       *zap.Logger

	sink     Sink
	notifier Notifier
	registry *Registry

	mu         sync.Mutex
	queue      *track.Queue
	current    *track.Track
	loop       bool
	persistent bool
	volume     float64
	state      State
	destroyed  bool

	wake         *signal
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	teardownOnce sync.Once
}

func newSession(reg *Registry, origin Origin, sink Sink, notifier Notifier, cfg Config, log *zap.Logger) *Session {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		id:        id,
		origin:    origin,
		cfg:       cfg,
		createdAt: time.Now(),
		log:       log.With(zap.String("guild", origin.GuildID), zap.String("session", id)),
		sink:      sink,
		notifier:  notifier,
		registry:  reg,
		queue:     track.NewQueue(),
		volume:    cfg.DefaultVolume,
		state:     StateIdle,
		wake:      newSignal(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) GuildID() string      { return s.origin.GuildID }
func (s *Session) Origin() Origin       { return s.origin }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Done is closed once the coordinator goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// run is the coordinator loop. It owns every transition of current.
func (s *Session) run() {
	defer close(s.done)
	s.log.Info("Coordinator started")

	for {
		s.wake.Clear()
		s.releaseFinished()

		if s.idle() && !s.Persistent() {
			if !s.waitIdle() {
				return
			}
			continue
		}

		s.setState(StateDraining)
		s.mu.Lock()
		prev, loop := s.current, s.loop
		s.mu.Unlock()
		if s.queue.RequeueCurrentIfLooping(prev, loop) {
			s.log.Debug("Looping track requeued", zap.Stringer("track", prev))
		}

		next, err := s.popNext()
		if err != nil {
			if s.Persistent() {
				if !s.park() {
					return
				}
				continue
			}
			s.log.Info("Nothing left to play", zap.Error(err))
			if s.expire() {
				return
			}
			continue
		}

		finished, started := s.start(next)
		if started {
			s.setState(StatePlaying)
			s.notifier.NowPlaying(next)
		}
		if !s.awaitCompletion(finished) {
			return
		}
	}
}

// releaseFinished forgets the previous track unless it is about to loop.
func (s *Session) releaseFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && !s.loop {
		s.current = nil
	}
}

func (s *Session) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == nil && s.queue.Len() == 0
}

// waitIdle blocks until something wakes the session or the idle timeout
// expires. It returns false when the coordinator must exit.
func (s *Session) waitIdle() bool {
	s.setState(StateIdle)
	timer := time.NewTimer(s.cfg.IdleTimeout)
	defer timer.Stop()

	select {
	case <-s.wake.C():
		return true
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		select {
		case <-s.wake.C():
			return true
		default:
		}
		s.log.Info("Idle timeout reached", zap.Duration("timeout", s.cfg.IdleTimeout))
		return !s.expire()
	}
}

// park is the idle wait of a persistent session: it never tears down and
// re-checks every idle period.
func (s *Session) park() bool {
	s.setState(StateIdle)
	timer := time.NewTimer(s.cfg.IdleTimeout)
	defer timer.Stop()

	select {
	case <-s.wake.C():
	case <-timer.C:
		s.log.Debug("Persistent session still idle")
	case <-s.ctx.Done():
		return false
	}
	return true
}

func (s *Session) popNext() (*track.Track, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.PopTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrDestroyed
	}
	next, err := s.queue.Advance(ctx)
	if err != nil {
		return nil, err
	}
	s.current = next
	return next, nil
}

// start hands t to the sink. The returned channel is closed when the track is
// over, immediately if it never started.
func (s *Session) start(t *track.Track) (<-chan struct{}, bool) {
	finished := make(chan struct{})
	var once sync.Once
	complete := func() {
		once.Do(func() {
			close(finished)
			s.wake.Set()
		})
	}

	s.mu.Lock()
	if s.destroyed || s.current != t {
		s.mu.Unlock()
		complete()
		return finished, false
	}
	volume := s.volume
	s.mu.Unlock()

	if !s.sink.Connected() {
		s.log.Warn("Sink is not connected, dropping track", zap.Stringer("track", t))
		s.notifier.Error("I'm not connected to a voice channel, skipping **" + t.Title() + "**.")
		s.dropTrack(t)
		complete()
		return finished, false
	}

	if s.sink.IsPlaying() {
		s.log.Warn("Sink still busy, stopping it before the next track")
		s.sink.Stop()
	}

	opts := PlayOptions{Reconnect: true, AudioOnly: true, Volume: volume}
	err := s.sink.Play(t.StreamLocator(), opts, func(err error) {
		if err != nil {
			s.log.Warn("Playback ended with error", zap.Stringer("track", t), zap.Error(err))
		} else {
			s.log.Debug("Playback finished", zap.Stringer("track", t))
		}
		complete()
	})
	if err != nil {
		startErr := &PlaybackStartError{Track: t, Err: err}
		s.log.Error("Play error", zap.Error(startErr))
		s.notifier.Error("Could not play **" + t.Title() + "**, skipping it.")
		s.dropTrack(t)
		complete()
		return finished, false
	}

	// A stop that raced the start must still silence this track.
	s.mu.Lock()
	stale := s.current != t
	s.mu.Unlock()
	if stale {
		s.sink.Stop()
		return finished, false
	}

	s.log.Info("Now playing", zap.Stringer("track", t), zap.Float64("volume", volume))
	return finished, true
}

// dropTrack forgets t so that loop mode cannot requeue it.
func (s *Session) dropTrack(t *track.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == t {
		s.current = nil
	}
}

// awaitCompletion waits for the track to end. Wakes caused by enqueues while
// the track still plays are absorbed.
func (s *Session) awaitCompletion(finished <-chan struct{}) bool {
	for {
		select {
		case <-finished:
			return true
		case <-s.wake.C():
			select {
			case <-finished:
				return true
			default:
			}
		case <-s.ctx.Done():
			return false
		}
	}
}

// expire tries to evict the session after it ran out of work. It reports
// whether the session is gone.
func (s *Session) expire() bool {
	if s.registry != nil {
		if !s.registry.evict(s) {
			s.log.Debug("Eviction aborted, new work arrived")
			return false
		}
	} else {
		s.mu.Lock()
		if s.current != nil || s.queue.Len() > 0 || s.persistent {
			s.mu.Unlock()
			return false
		}
		s.destroyed = true
		s.mu.Unlock()
	}
	s.teardown(false)
	return true
}

// teardown releases everything the session holds. Explicit teardowns
// disconnect even in persistent mode.
func (s *Session) teardown(explicit bool) {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		s.destroyed = true
		s.state = StateDestroyed
		s.current = nil
		persistent := s.persistent
		s.mu.Unlock()

		dropped := s.queue.Clear()
		s.cancel()

		if s.sink.IsPlaying() {
			s.sink.Stop()
		}
		if explicit || !persistent {
			if err := s.sink.Disconnect(); err != nil {
				s.log.Warn("Failed to disconnect sink", zap.Error(err))
			}
		}
		s.log.Info("Session destroyed", zap.Bool("explicit", explicit), zap.Int("dropped", dropped))
	})
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDestroyed {
		s.state = st
	}
}

// Enqueue appends t and wakes the coordinator. It returns the queue position.
func (s *Session) Enqueue(t *track.Track) (int, error) {
	if t == nil {
		return 0, errors.New("nil track")
	}
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return 0, ErrDestroyed
	}
	pos := s.queue.Enqueue(t)
	s.mu.Unlock()

	s.log.Info("Track queued", zap.Stringer("track", t), zap.Int("position", pos))
	s.wake.Set()
	s.notifier.Queued(t, pos)
	return pos, nil
}

// Skip stops the current track; the coordinator then advances.
func (s *Session) Skip() (*track.Track, error) {
	current := s.Current()
	if current == nil || !s.sink.IsPlaying() {
		return nil, ErrNothingPlaying
	}
	s.log.Info("Skipping track", zap.Stringer("track", current))
	s.sink.Stop()
	return current, nil
}

// Stop clears the queue and silences the current track without leaving the
// voice channel. It returns the number of queued tracks dropped.
func (s *Session) Stop() int {
	s.mu.Lock()
	dropped := s.queue.Clear()
	s.current = nil
	s.mu.Unlock()

	if s.sink.IsPlaying() {
		s.sink.Stop()
	}
	s.wake.Set()
	s.log.Info("Playback stopped", zap.Int("dropped", dropped))
	return dropped
}

func (s *Session) SetLoop(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = on
}

// ToggleLoop flips loop mode and returns the new value.
func (s *Session) ToggleLoop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = !s.loop
	return s.loop
}

func (s *Session) Loop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// SetPersistent switches 24/7 mode. The wake restarts any pending idle wait.
func (s *Session) SetPersistent(on bool) {
	s.mu.Lock()
	s.persistent = on
	s.mu.Unlock()
	s.wake.Set()
}

// TogglePersistent flips 24/7 mode and returns the new value.
func (s *Session) TogglePersistent() bool {
	s.mu.Lock()
	s.persistent = !s.persistent
	on := s.persistent
	s.mu.Unlock()
	s.wake.Set()
	return on
}

func (s *Session) Persistent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistent
}

// SetVolume sets the volume fraction (0.0-2.0).
func (s *Session) SetVolume(fraction float64) error {
	if fraction < 0 || fraction > MaxVolume {
		return ErrVolumeOutOfRange
	}
	s.mu.Lock()
	s.volume = fraction
	s.mu.Unlock()

	if vs, ok := s.sink.(VolumeSetter); ok {
		vs.SetVolume(fraction)
	}
	return nil
}

// SetVolumeLevel sets the volume from a percentage in [0, 200].
func (s *Session) SetVolumeLevel(level int) error {
	if level < 0 || level > MaxVolumeLevel {
		return ErrVolumeOutOfRange
	}
	return s.SetVolume(float64(level) / 100)
}

func (s *Session) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Session) Current() *track.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Upcoming returns up to n queued tracks, next first.
func (s *Session) Upcoming(n int) []*track.Track {
	return s.queue.Peek(0, n)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:       s.state,
		Current:     s.current,
		QueueLength: s.queue.Len(),
		Loop:        s.loop,
		Persistent:  s.persistent,
		Volume:      s.volume,
	}
}

// Connect joins the sink to a voice channel.
func (s *Session) Connect(channelID string) bool {
	ok := s.sink.Connect(channelID)
	if !ok {
		s.log.Warn("Voice connect failed", zap.String("channel", channelID))
	}
	return ok
}

func (s *Session) Connected() bool {
	return s.sink.Connected()
}

// IsPlaying reports whether the sink is streaming right now.
func (s *Session) IsPlaying() bool {
	return s.sink.IsPlaying()
}
