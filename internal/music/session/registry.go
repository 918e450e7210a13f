package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/music/track"
)

// Options configure a Registry.
type Options struct {
	Config Config
	Logger *zap.Logger

	// SinkFactory builds the audio output of a new session. Required.
	SinkFactory func(guildID string) Sink
	// NotifierFactory builds the notification target of a new session.
	NotifierFactory func(origin Origin) Notifier
	// OnCreate runs under the registry lock before the coordinator starts.
	OnCreate func(s *Session)
}

// Registry maps guilds to their live session. At most one session per guild
// exists at any time.
type Registry struct {
	opts Options
	log  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(opts Options) *Registry {
	if opts.SinkFactory == nil {
		panic("session: SinkFactory is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opts.Config = opts.Config.withDefaults()
	return &Registry{
		opts:     opts,
		log:      log.Named("sessions"),
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the live session of origin's guild, creating and
// starting it if there is none.
func (r *Registry) GetOrCreate(origin Origin) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[origin.GuildID]; ok {
		return s
	}

	var notifier Notifier
	if r.opts.NotifierFactory != nil {
		notifier = r.opts.NotifierFactory(origin)
	}
	s := newSession(r, origin, r.opts.SinkFactory(origin.GuildID), notifier, r.opts.Config, r.log.Named("session"))
	r.sessions[origin.GuildID] = s
	if r.opts.OnCreate != nil {
		r.opts.OnCreate(s)
	}
	go s.run()

	r.log.Info("Session created", zap.String("guild", origin.GuildID), zap.String("session", s.id))
	return s
}

// Get returns the live session of a guild, if any.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Enqueue adds t to the guild's session, replacing a session that was
// destroyed between lookup and enqueue.
func (r *Registry) Enqueue(origin Origin, t *track.Track) (*Session, int, error) {
	for attempt := 0; attempt < 2; attempt++ {
		s := r.GetOrCreate(origin)
		pos, err := s.Enqueue(t)
		if errors.Is(err, ErrDestroyed) {
			continue
		}
		return s, pos, err
	}
	return nil, 0, ErrDestroyed
}

// Destroy tears down the guild's session regardless of 24/7 mode.
func (r *Registry) Destroy(guildID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	if ok {
		delete(r.sessions, guildID)
		s.mu.Lock()
		s.destroyed = true
		s.mu.Unlock()
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.teardown(true)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Guilds lists the guilds with a live session.
func (r *Registry) Guilds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown destroys every session and waits for their coordinators.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
		s.mu.Lock()
		s.destroyed = true
		s.mu.Unlock()
	}
	r.mu.Unlock()

	for _, s := range all {
		s.teardown(true)
	}
	for _, s := range all {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.log.Info("All sessions shut down", zap.Int("count", len(all)))
	return nil
}

// evict removes s if it is still the guild's session and still has nothing
// to do. Lock order is registry, then session.
func (r *Registry) evict(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return true
	}
	if s.current != nil || s.queue.Len() > 0 || s.persistent {
		return false
	}
	s.destroyed = true
	s.state = StateDestroyed
	if cur, ok := r.sessions[s.origin.GuildID]; ok && cur == s {
		delete(r.sessions, s.origin.GuildID)
	}
	return true
}
