package jukebox

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/lyrics"
	"github.com/keshon/lapis-music/internal/music/session"
	"github.com/keshon/lapis-music/internal/music/track"
	"github.com/keshon/lapis-music/internal/storage"
)

const QueuePageSize = 10

var (
	ErrNoPlayer       = errors.New("no active player")
	ErrNotInVoice     = errors.New("you must be in a voice channel")
	ErrVoiceJoin      = errors.New("could not join your voice channel")
	ErrQueueEmpty     = errors.New("queue is empty")
	ErrNothingPlaying = session.ErrNothingPlaying
)

type Resolver interface {
	Resolve(ctx context.Context, query string, requester track.Requester) (*track.Track, error)
}

type LyricsFinder interface {
	Available() bool
	Search(ctx context.Context, title string) (*lyrics.Song, error)
}

type Store interface {
	Volume(guildID string) (float64, bool, error)
	SetVolume(guildID string, fraction float64) error
	AppendTrackToHistory(guildID string, t storage.TrackHistoryRecord) error
	FetchTrackHistory(guildID string) ([]storage.TrackHistoryRecord, error)
}

// Request identifies who asked for playback and from where.
type Request struct {
	GuildID        string
	TextChannelID  string
	VoiceChannelID string
	Requester      track.Requester
}

type PlayResult struct {
	Track    *track.Track
	Position int
	// Immediate is set when nothing was playing, so the track starts now.
	Immediate bool
}

type QueueView struct {
	Current    *track.Track
	Upcoming   []*track.Track
	Total      int
	Loop       bool
	Persistent bool
	Volume     float64
}

// Jukebox implements the music commands on top of the session registry,
// independent of any chat transport.
type Jukebox struct {
	sessions *session.Registry
	resolver Resolver
	lyrics   LyricsFinder
	store    Store
	log      *zap.Logger
}

func New(sessions *session.Registry, resolver Resolver, lyrics LyricsFinder, store Store, log *zap.Logger) *Jukebox {
	if log == nil {
		log = zap.NewNop()
	}
	return &Jukebox{
		sessions: sessions,
		resolver: resolver,
		lyrics:   lyrics,
		store:    store,
		log:      log.Named("jukebox"),
	}
}

// RestoreVolume returns a session.Options.OnCreate hook applying each
// guild's saved volume.
func RestoreVolume(store Store, log *zap.Logger) func(*session.Session) {
	return func(s *session.Session) {
		v, ok, err := store.Volume(s.GuildID())
		if err != nil {
			log.Warn("Failed to load volume", zap.String("guild", s.GuildID()), zap.Error(err))
			return
		}
		if ok {
			_ = s.SetVolume(v)
		}
	}
}

// Play resolves query and queues it in the requester's guild, joining the
// requester's voice channel first when needed.
func (j *Jukebox) Play(ctx context.Context, req Request, query string) (*PlayResult, error) {
	if req.VoiceChannelID == "" {
		return nil, ErrNotInVoice
	}

	t, err := j.resolver.Resolve(ctx, query, req.Requester)
	if err != nil {
		return nil, err
	}

	origin := session.Origin{GuildID: req.GuildID, ChannelID: req.TextChannelID}
	for attempt := 0; attempt < 2; attempt++ {
		s := j.sessions.GetOrCreate(origin)
		if !s.Connected() && !s.Connect(req.VoiceChannelID) {
			return nil, ErrVoiceJoin
		}
		idle := s.Current() == nil && !s.IsPlaying()

		pos, err := s.Enqueue(t)
		if errors.Is(err, session.ErrDestroyed) {
			j.log.Debug("Session expired during play, retrying", zap.String("guild", req.GuildID))
			continue
		}
		if err != nil {
			return nil, err
		}
		return &PlayResult{Track: t, Position: pos, Immediate: idle && pos == 1}, nil
	}
	return nil, session.ErrDestroyed
}

func (j *Jukebox) session(guildID string) (*session.Session, error) {
	s, ok := j.sessions.Get(guildID)
	if !ok {
		return nil, ErrNoPlayer
	}
	return s, nil
}

func (j *Jukebox) Skip(guildID string) (*track.Track, error) {
	s, err := j.session(guildID)
	if err != nil {
		return nil, ErrNothingPlaying
	}
	return s.Skip()
}

// Stop clears the queue and silences playback, staying in the channel.
func (j *Jukebox) Stop(guildID string) (int, error) {
	s, err := j.session(guildID)
	if err != nil {
		return 0, err
	}
	return s.Stop(), nil
}

// Queue returns the current track and the first page of the queue.
func (j *Jukebox) Queue(guildID string) (*QueueView, error) {
	s, err := j.session(guildID)
	if err != nil {
		return nil, ErrQueueEmpty
	}
	snap := s.Snapshot()
	if snap.QueueLength == 0 {
		return nil, ErrQueueEmpty
	}
	return &QueueView{
		Current:    snap.Current,
		Upcoming:   s.Upcoming(QueuePageSize),
		Total:      snap.QueueLength,
		Loop:       snap.Loop,
		Persistent: snap.Persistent,
		Volume:     snap.Volume,
	}, nil
}

func (j *Jukebox) ToggleLoop(guildID string) (bool, error) {
	s, err := j.session(guildID)
	if err != nil {
		return false, err
	}
	return s.ToggleLoop(), nil
}

func (j *Jukebox) Toggle247(guildID string) (bool, error) {
	s, err := j.session(guildID)
	if err != nil {
		return false, err
	}
	return s.TogglePersistent(), nil
}

// SetVolume applies a 0-200 level and remembers it for the guild.
func (j *Jukebox) SetVolume(guildID string, level int) error {
	s, err := j.session(guildID)
	if err != nil {
		return err
	}
	if err := s.SetVolumeLevel(level); err != nil {
		return err
	}
	if j.store != nil {
		if err := j.store.SetVolume(guildID, s.Volume()); err != nil {
			j.log.Warn("Failed to save volume", zap.String("guild", guildID), zap.Error(err))
		}
	}
	return nil
}

func (j *Jukebox) NowPlaying(guildID string) (*track.Track, error) {
	s, err := j.session(guildID)
	if err != nil {
		return nil, ErrNothingPlaying
	}
	current := s.Current()
	if current == nil {
		return nil, ErrNothingPlaying
	}
	return current, nil
}

// Lyrics looks up lyrics of the current track and formats them for chat.
func (j *Jukebox) Lyrics(ctx context.Context, guildID string) (string, error) {
	current, err := j.NowPlaying(guildID)
	if err != nil {
		return "", err
	}
	if j.lyrics == nil || !j.lyrics.Available() {
		return "", lyrics.ErrUnavailable
	}
	song, err := j.lyrics.Search(ctx, current.Title())
	if err != nil {
		return "", err
	}
	return lyrics.Format(song), nil
}

// Leave destroys the guild's session, even in 24/7 mode.
func (j *Jukebox) Leave(guildID string) error {
	if !j.sessions.Destroy(guildID) {
		return ErrNoPlayer
	}
	return nil
}

func (j *Jukebox) History(guildID string) ([]storage.TrackHistoryRecord, error) {
	if j.store == nil {
		return nil, nil
	}
	return j.store.FetchTrackHistory(guildID)
}

// NewHistoryNotifier records every started track before passing the event on.
func NewHistoryNotifier(store Store, guildID string, next session.Notifier, log *zap.Logger) session.Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &historyNotifier{store: store, guildID: guildID, next: next, log: log}
}

type historyNotifier struct {
	store   Store
	guildID string
	next    session.Notifier
	log     *zap.Logger
}

func (h *historyNotifier) NowPlaying(t *track.Track) {
	rec := storage.TrackHistoryRecord{
		Title:       t.Title(),
		URL:         t.URL(),
		Source:      t.SourceName(),
		RequesterID: t.Requester().ID,
		PlayedAt:    time.Now(),
	}
	if err := h.store.AppendTrackToHistory(h.guildID, rec); err != nil {
		h.log.Warn("Failed to record track history", zap.String("guild", h.guildID), zap.Error(err))
	}
	if h.next != nil {
		h.next.NowPlaying(t)
	}
}

func (h *historyNotifier) Queued(t *track.Track, position int) {
	if h.next != nil {
		h.next.Queued(t, position)
	}
}

func (h *historyNotifier) Error(message string) {
	if h.next != nil {
		h.next.Error(message)
	}
}
