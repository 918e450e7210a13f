package player

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/keshon/lapis-music/internal/music/session"
)

type fakeConn struct {
	channel     string
	frames      chan []byte
	disconnects atomic.Int32
}

func (c *fakeConn) ChannelID() string          { return c.channel }
func (c *fakeConn) OpusChannel() chan<- []byte { return c.frames }
func (c *fakeConn) Speaking(bool) error        { return nil }
func (c *fakeConn) Disconnect() error {
	c.disconnects.Add(1)
	return nil
}

type fakeJoiner struct {
	mu    sync.Mutex
	joins int
	fail  bool
	last  *fakeConn
}

func (j *fakeJoiner) Join(_, channelID string) (VoiceConn, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail {
		return nil, errors.New("no permission")
	}
	j.joins++
	j.last = &fakeConn{channel: channelID, frames: make(chan []byte, 16)}
	return j.last, nil
}

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

func openBytes(n int) Opener {
	return func(_ context.Context, locator string, _ session.PlayOptions) (io.ReadCloser, error) {
		if locator == "missing" {
			return nil, errors.New("404")
		}
		return nopCloser{bytes.NewReader(make([]byte, n))}, nil
	}
}

// chunkPump sends one frame per 4 bytes so tests can control duration.
func chunkPump(stop <-chan struct{}, r io.Reader, out chan<- []byte, volume func() float64) error {
	buf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil
		}
		select {
		case out <- []byte{byte(volume() * 100)}:
		case <-stop:
			return nil
		}
	}
}

// blockingPump runs until stopped.
func blockingPump(stop <-chan struct{}, _ io.Reader, _ chan<- []byte, _ func() float64) error {
	<-stop
	return nil
}

func newTestPlayer(t *testing.T, pump Pump) (*Player, *fakeJoiner) {
	j := &fakeJoiner{}
	return New("g1", j, openBytes(8), pump, zaptest.NewLogger(t)), j
}

func completion() (func(error), <-chan error, *atomic.Int32) {
	ch := make(chan error, 4)
	var calls atomic.Int32
	return func(err error) {
		calls.Add(1)
		ch <- err
	}, ch, &calls
}

func TestPlayRequiresConnection(t *testing.T) {
	p, _ := newTestPlayer(t, chunkPump)
	err := p.Play("x", session.PlayOptions{Volume: 1}, nil)
	assert.ErrorIs(t, err, session.ErrNotConnected)
}

func TestConnectReusesChannel(t *testing.T) {
	p, j := newTestPlayer(t, chunkPump)
	require.True(t, p.Connect("c1"))
	require.True(t, p.Connect("c1"))
	assert.Equal(t, 1, j.joins)
	assert.True(t, p.Connected())

	j.fail = true
	assert.False(t, p.Connect("c2"))
}

func TestNaturalEndCompletesOnce(t *testing.T) {
	p, j := newTestPlayer(t, chunkPump)
	require.True(t, p.Connect("c1"))

	done, ch, calls := completion()
	require.NoError(t, p.Play("x", session.PlayOptions{Volume: 0.5}, done))

	select {
	case err := <-ch:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("onComplete not called")
	}
	assert.False(t, p.IsPlaying())
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, j.last.frames, 2)
	assert.Equal(t, []byte{50}, <-j.last.frames)
}

func TestStopCompletesOnce(t *testing.T) {
	p, _ := newTestPlayer(t, blockingPump)
	require.True(t, p.Connect("c1"))

	done, ch, calls := completion()
	require.NoError(t, p.Play("x", session.PlayOptions{Volume: 1}, done))
	assert.True(t, p.IsPlaying())
	assert.ErrorIs(t, p.Play("y", session.PlayOptions{}, nil), ErrBusy)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Stop()
		}()
	}
	wg.Wait()

	assert.NoError(t, <-ch)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, p.IsPlaying())
}

func TestOpenFailureIsReturned(t *testing.T) {
	p, _ := newTestPlayer(t, chunkPump)
	require.True(t, p.Connect("c1"))

	done, _, calls := completion()
	err := p.Play("missing", session.PlayOptions{}, done)
	require.Error(t, err)
	assert.False(t, p.IsPlaying())
	assert.Equal(t, int32(0), calls.Load())
}

func TestDisconnectStopsAndLeaves(t *testing.T) {
	p, j := newTestPlayer(t, blockingPump)
	require.True(t, p.Connect("c1"))
	done, ch, _ := completion()
	require.NoError(t, p.Play("x", session.PlayOptions{}, done))

	require.NoError(t, p.Disconnect())
	assert.NoError(t, <-ch)
	assert.False(t, p.Connected())
	assert.Equal(t, int32(1), j.last.disconnects.Load())
	require.NoError(t, p.Disconnect())
}

func TestSetVolume(t *testing.T) {
	p, _ := newTestPlayer(t, chunkPump)
	p.SetVolume(1.25)
	assert.Equal(t, 1.25, p.Volume())
}

// readPump reads frames until the reader fails, like the opus pump does.
func readPump(stop <-chan struct{}, r io.Reader, out chan<- []byte, _ func() float64) error {
	buf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		select {
		case out <- buf:
		case <-stop:
			return nil
		}
	}
}

func TestStopUnblocksStalledRead(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	stalled := func(context.Context, string, session.PlayOptions) (io.ReadCloser, error) {
		return pr, nil
	}

	j := &fakeJoiner{}
	p := New("g1", j, stalled, readPump, zaptest.NewLogger(t))
	require.True(t, p.Connect("c1"))

	done, ch, calls := completion()
	require.NoError(t, p.Play("x", session.PlayOptions{Volume: 1}, done))

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a stalled stream")
	}

	assert.NoError(t, <-ch)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, p.IsPlaying())
}

func TestStopCancelsDecoder(t *testing.T) {
	// The reader only ends once its context is cancelled, like ffmpeg under
	// exec.CommandContext.
	ctxBound := func(ctx context.Context, _ string, _ session.PlayOptions) (io.ReadCloser, error) {
		pr, pw := io.Pipe()
		go func() {
			<-ctx.Done()
			_ = pw.CloseWithError(ctx.Err())
		}()
		return io.NopCloser(pr), nil
	}

	p := New("g1", &fakeJoiner{}, ctxBound, readPump, zaptest.NewLogger(t))
	require.True(t, p.Connect("c1"))

	done, ch, _ := completion()
	require.NoError(t, p.Play("x", session.PlayOptions{Volume: 1}, done))

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the decoder")
	}
	assert.NoError(t, <-ch)
}

func TestStopWhileOpening(t *testing.T) {
	cases := map[string]func(ctx context.Context) (io.ReadCloser, error){
		"open fails on cancel": func(ctx context.Context) (io.ReadCloser, error) {
			return nil, ctx.Err()
		},
		"open succeeds anyway": func(context.Context) (io.ReadCloser, error) {
			return nopCloser{bytes.NewReader(make([]byte, 64))}, nil
		},
	}
	for name, result := range cases {
		t.Run(name, func(t *testing.T) {
			opening := make(chan struct{})
			slow := func(ctx context.Context, _ string, _ session.PlayOptions) (io.ReadCloser, error) {
				close(opening)
				<-ctx.Done()
				return result(ctx)
			}
			var pumped atomic.Int32
			pump := func(stop <-chan struct{}, r io.Reader, out chan<- []byte, v func() float64) error {
				pumped.Add(1)
				return chunkPump(stop, r, out, v)
			}

			p := New("g1", &fakeJoiner{}, slow, pump, zaptest.NewLogger(t))
			require.True(t, p.Connect("c1"))

			done, ch, calls := completion()
			played := make(chan error, 1)
			go func() { played <- p.Play("x", session.PlayOptions{Volume: 1}, done) }()

			<-opening
			assert.True(t, p.IsPlaying())
			p.Stop()

			assert.NoError(t, <-played)
			assert.NoError(t, <-ch)
			assert.Equal(t, int32(1), calls.Load())
			assert.Equal(t, int32(0), pumped.Load())
			assert.False(t, p.IsPlaying())
		})
	}
}
