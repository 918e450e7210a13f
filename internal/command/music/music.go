// Package music holds the music commands. Each intent is one slash command
// and one prefix command rendering a jukebox result.
package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/keshon/lapis-music/internal/command"
	"github.com/keshon/lapis-music/internal/lyrics"
	"github.com/keshon/lapis-music/internal/music/jukebox"
	"github.com/keshon/lapis-music/internal/music/session"
	"github.com/keshon/lapis-music/internal/music/track"
	"github.com/keshon/lapis-music/internal/storage"
)

// Player is the part of the jukebox the commands drive.
type Player interface {
	Play(ctx context.Context, req jukebox.Request, query string) (*jukebox.PlayResult, error)
	Skip(guildID string) (*track.Track, error)
	Stop(guildID string) (int, error)
	Queue(guildID string) (*jukebox.QueueView, error)
	ToggleLoop(guildID string) (bool, error)
	Toggle247(guildID string) (bool, error)
	SetVolume(guildID string, level int) error
	NowPlaying(guildID string) (*track.Track, error)
	Lyrics(ctx context.Context, guildID string) (string, error)
	Leave(guildID string) error
	History(guildID string) ([]storage.TrackHistoryRecord, error)
}

var _ Player = (*jukebox.Jukebox)(nil)

// VoiceLocator returns the voice channel a member is connected to.
type VoiceLocator func(guildID, userID string) (string, error)

type Deps struct {
	Jukebox Player
	Voice   VoiceLocator
	// Prefix is the message prefix shown in help, e.g. "!".
	Prefix string
}

// Register adds every music command to reg, wrapped with mws.
func Register(reg *command.Registry, deps Deps, mws ...command.Middleware) {
	d := &deps
	cmds := []command.Command{
		&PlayCommand{d},
		&SkipCommand{d},
		&StopCommand{d},
		&QueueCommand{d},
		&LoopCommand{d},
		&VolumeCommand{d},
		&PersistCommand{d},
		&LyricsCommand{d},
		&NowPlayingCommand{d},
		&LeaveCommand{d},
		&HistoryCommand{d},
		&HelpCommand{deps: d, registry: reg},
	}
	for _, c := range cmds {
		reg.Register(command.Apply(c, mws...))
	}
}

// ErrorMessage renders a jukebox failure for chat.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, jukebox.ErrNoPlayer):
		return "❌ No active player!"
	case errors.Is(err, jukebox.ErrNothingPlaying):
		return "❌ Nothing playing!"
	case errors.Is(err, jukebox.ErrNotInVoice):
		return "❌ You must be in a voice channel!"
	case errors.Is(err, jukebox.ErrVoiceJoin):
		return "❌ I could not join your voice channel!"
	case errors.Is(err, jukebox.ErrQueueEmpty):
		return "📭 Queue is empty!"
	case errors.Is(err, session.ErrVolumeOutOfRange):
		return "❌ Volume must be between 0-200!"
	case errors.Is(err, lyrics.ErrUnavailable):
		return "❌ Lyrics service unavailable!"
	case errors.Is(err, lyrics.ErrNotFound):
		return "❌ Lyrics not found!"
	default:
		return fmt.Sprintf("❌ Error: %v", err)
	}
}

// userFacing reports whether err is an expected outcome rather than a fault.
func userFacing(err error) bool {
	for _, known := range []error{
		jukebox.ErrNoPlayer,
		jukebox.ErrNothingPlaying,
		jukebox.ErrNotInVoice,
		jukebox.ErrQueueEmpty,
		session.ErrVolumeOutOfRange,
		lyrics.ErrUnavailable,
		lyrics.ErrNotFound,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

// fail answers inv with err. Expected outcomes are answered privately and
// swallowed; anything else is also returned so middleware can log it.
func fail(inv *command.Invocation, err error) error {
	if userFacing(err) {
		return inv.Reply.EmbedEphemeral(errorEmbed(ErrorMessage(err)))
	}
	if rerr := inv.Reply.Text(ErrorMessage(err)); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}
