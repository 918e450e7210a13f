package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/keshon/lapis-music/internal/music/track"
)

var errBadLocator = errors.New("unplayable")

// fakeSink plays nothing; tests end tracks with finish.
type fakeSink struct {
	mu          sync.Mutex
	connected   bool
	playing     bool
	onComplete  func(error)
	played      []string
	stops       int
	disconnects int
	volume      float64
	concurrent  bool
	// stopDelay makes Stop return at once and complete the track later, like
	// a sink still draining its stream.
	stopDelay time.Duration
}

func newFakeSink() *fakeSink {
	return &fakeSink{connected: true}
}

func (f *fakeSink) Connect(string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return true
}

func (f *fakeSink) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSink) Play(locator string, opts PlayOptions, onComplete func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.HasPrefix(locator, "bad://") {
		return errBadLocator
	}
	if f.playing {
		f.concurrent = true
	}
	f.playing = true
	f.onComplete = onComplete
	f.played = append(f.played, locator)
	f.volume = opts.Volume
	return nil
}

// finish ends the current playback as if the stream ran out.
func (f *fakeSink) finish(err error) bool {
	f.mu.Lock()
	cb := f.onComplete
	f.onComplete = nil
	f.playing = false
	f.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(err)
	return true
}

func (f *fakeSink) Stop() {
	f.mu.Lock()
	f.stops++
	delay := f.stopDelay
	f.mu.Unlock()
	if delay > 0 {
		go func() {
			time.Sleep(delay)
			f.finish(nil)
		}()
		return
	}
	f.finish(nil)
}

func (f *fakeSink) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeSink) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeSink) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakeSink) snapshot() (played []string, stops, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...), f.stops, f.disconnects
}

type fakeNotifier struct {
	playing chan string
	queued  chan int
	errors  chan string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		playing: make(chan string, 64),
		queued:  make(chan int, 64),
		errors:  make(chan string, 64),
	}
}

func (n *fakeNotifier) NowPlaying(t *track.Track)      { n.playing <- t.Title() }
func (n *fakeNotifier) Queued(_ *track.Track, pos int) { n.queued <- pos }
func (n *fakeNotifier) Error(msg string)               { n.errors <- msg }

func song(title string) *track.Track {
	return track.New(track.Info{Title: title, StreamLocator: "test://" + title}, track.Requester{ID: "1"})
}

func badSong(title string) *track.Track {
	return track.New(track.Info{Title: title, StreamLocator: "bad://" + title}, track.Requester{ID: "1"})
}

const waitFor = 2 * time.Second

func testConfig() Config {
	return Config{
		IdleTimeout:   80 * time.Millisecond,
		PopTimeout:    50 * time.Millisecond,
		DefaultVolume: DefaultVolume,
	}
}
