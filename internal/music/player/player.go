package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/music/session"
)

var ErrBusy = errors.New("player is already streaming")

var (
	_ session.Sink         = (*Player)(nil)
	_ session.VolumeSetter = (*Player)(nil)
)

// VoiceConn is a joined voice channel that accepts opus frames.
type VoiceConn interface {
	ChannelID() string
	OpusChannel() chan<- []byte
	Speaking(on bool) error
	Disconnect() error
}

// Joiner connects to voice channels.
type Joiner interface {
	Join(guildID, channelID string) (VoiceConn, error)
}

// Opener starts a PCM stream for a locator.
type Opener func(ctx context.Context, locator string, opts session.PlayOptions) (io.ReadCloser, error)

// Pump moves PCM from r to out as opus frames until r ends or stop closes.
type Pump func(stop <-chan struct{}, r io.Reader, out chan<- []byte, volume func() float64) error

// Player streams one track at a time into a guild's voice connection. It
// implements session.Sink.
type Player struct {
	guildID string
	joiner  Joiner
	open    Opener
	pump    Pump
	log     *zap.Logger

	mu      sync.Mutex
	conn    VoiceConn
	playing bool
	volume  float64
	cur     *playback
}

// playback is one Play call. stop is closed at most once by Stop; done is
// closed after onComplete has run.
type playback struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	cancel   context.CancelFunc
	pcm      io.ReadCloser
}

func (pb *playback) halt() {
	pb.stopOnce.Do(func() { close(pb.stop) })
	pb.cancel()
}

func (pb *playback) stopped() bool {
	select {
	case <-pb.stop:
		return true
	default:
		return false
	}
}

func New(guildID string, joiner Joiner, open Opener, pump Pump, log *zap.Logger) *Player {
	if log == nil {
		log = zap.NewNop()
	}
	return &Player{
		guildID: guildID,
		joiner:  joiner,
		open:    open,
		pump:    pump,
		volume:  session.DefaultVolume,
		log:     log.Named("player").With(zap.String("guild", guildID)),
	}
}

// Connect joins channelID, reusing the current connection when it is
// already there.
func (p *Player) Connect(channelID string) bool {
	p.mu.Lock()
	if p.conn != nil && p.conn.ChannelID() == channelID {
		p.mu.Unlock()
		return true
	}
	p.mu.Unlock()

	conn, err := p.joiner.Join(p.guildID, channelID)
	if err != nil {
		p.log.Warn("Failed to join voice channel", zap.String("channel", channelID), zap.Error(err))
		return false
	}

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	p.log.Info("Joined voice channel", zap.String("channel", channelID))
	return true
}

func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Player) SetVolume(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = fraction
}

func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Play opens locator and streams it in the background. onComplete fires once
// when the stream ends, fails, or is stopped. A Stop while the stream is
// still opening ends the playback before any audio is sent.
func (p *Player) Play(locator string, opts session.PlayOptions, onComplete func(error)) error {
	ctx, cancel := context.WithCancel(context.Background())
	pb := &playback{
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		cancel()
		return ErrBusy
	}
	conn := p.conn
	if conn == nil {
		p.mu.Unlock()
		cancel()
		return session.ErrNotConnected
	}
	p.playing = true
	p.volume = opts.Volume
	p.cur = pb
	p.mu.Unlock()

	pcm, err := p.open(ctx, locator, opts)
	if err == nil {
		pcm = &onceCloser{ReadCloser: pcm}
	}

	p.mu.Lock()
	stopped := pb.stopped()
	if err == nil && !stopped {
		pb.pcm = pcm
	}
	p.mu.Unlock()

	switch {
	case stopped:
		if err == nil {
			_ = pcm.Close()
		}
		p.log.Debug("Playback stopped while opening")
		go p.finish(pb, nil, onComplete)
		return nil
	case err != nil:
		p.release(pb)
		close(pb.done)
		return fmt.Errorf("failed to open stream: %w", err)
	}

	go p.runPlayback(pb, conn, pcm, onComplete)
	return nil
}

func (p *Player) runPlayback(pb *playback, conn VoiceConn, pcm io.ReadCloser, onComplete func(error)) {
	if err := conn.Speaking(true); err != nil {
		p.log.Debug("Speaking(true) failed", zap.Error(err))
	}
	err := p.pump(pb.stop, pcm, conn.OpusChannel(), p.Volume)
	if serr := conn.Speaking(false); serr != nil {
		p.log.Debug("Speaking(false) failed", zap.Error(serr))
	}
	_ = pcm.Close()

	// Reads interrupted by Stop fail with a closed-pipe error.
	if err != nil && pb.stopped() {
		err = nil
	}
	p.finish(pb, err, onComplete)
}

func (p *Player) finish(pb *playback, err error, onComplete func(error)) {
	defer close(pb.done)
	p.release(pb)

	if err != nil {
		p.log.Warn("Playback finished with error", zap.Error(err))
	} else {
		p.log.Debug("Playback finished")
	}
	if onComplete != nil {
		onComplete(err)
	}
}

func (p *Player) release(pb *playback) {
	pb.cancel()
	p.mu.Lock()
	if p.cur == pb {
		p.cur = nil
		p.playing = false
	}
	p.mu.Unlock()
}

// Stop ends the current stream and waits until its onComplete has run. The
// decoder is cancelled and the stream closed first, so a stalled read
// returns.
func (p *Player) Stop() {
	p.mu.Lock()
	pb := p.cur
	var pcm io.ReadCloser
	if pb != nil {
		pcm = pb.pcm
	}
	p.mu.Unlock()

	if pb == nil {
		return
	}
	pb.halt()
	if pcm != nil {
		_ = pcm.Close()
	}
	<-pb.done
}

// Disconnect stops playback and leaves the voice channel.
func (p *Player) Disconnect() error {
	p.Stop()

	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	p.log.Info("Leaving voice channel", zap.String("channel", conn.ChannelID()))
	return conn.Disconnect()
}

// onceCloser lets Stop and the playback goroutine both close the stream.
type onceCloser struct {
	io.ReadCloser
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() { c.err = c.ReadCloser.Close() })
	return c.err
}
