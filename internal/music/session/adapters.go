package session

import (
	"errors"
	"fmt"

	"github.com/keshon/lapis-music/internal/music/track"
)

var (
	ErrDestroyed        = errors.New("session is destroyed")
	ErrNothingPlaying   = errors.New("nothing is playing")
	ErrNotConnected     = errors.New("not connected to a voice channel")
	ErrVolumeOutOfRange = errors.New("volume must be between 0 and 200")
)

// PlayOptions are handed to the sink with every stream locator.
type PlayOptions struct {
	// Reconnect asks the decoder to recover from transient network failures.
	Reconnect bool
	// AudioOnly drops any video stream.
	AudioOnly bool
	// Volume is a fraction, 1.0 being unchanged.
	Volume float64
}

// Sink is the audio output for one guild.
//
// onComplete must fire exactly once for every Play call that returned nil:
// on natural end, on Stop, or on internal failure.
type Sink interface {
	Connect(channelID string) bool
	Connected() bool
	Play(locator string, opts PlayOptions, onComplete func(error)) error
	Stop()
	IsPlaying() bool
	Disconnect() error
}

// VolumeSetter is implemented by sinks that can change volume mid-track.
type VolumeSetter interface {
	SetVolume(fraction float64)
}

// Notifier receives fire-and-forget playback notifications.
type Notifier interface {
	NowPlaying(t *track.Track)
	Queued(t *track.Track, position int)
	Error(message string)
}

// Origin is where a session was created from.
type Origin struct {
	GuildID   string
	ChannelID string
}

// PlaybackStartError is returned when the sink rejects a stream locator.
type PlaybackStartError struct {
	Track *track.Track
	Err   error
}

func (e *PlaybackStartError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Track, e.Err)
}

func (e *PlaybackStartError) Unwrap() error { return e.Err }

type nopNotifier struct{}

func (nopNotifier) NowPlaying(*track.Track)  {}
func (nopNotifier) Queued(*track.Track, int) {}
func (nopNotifier) Error(string)             {}
