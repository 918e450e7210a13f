package source_resolver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/keshon/lapis-music/internal/music/sources"
	"github.com/keshon/lapis-music/internal/music/track"
)

type stubSource struct {
	name   string
	prefix string
	info   track.Info
	err    error
	wait   bool
	calls  int
}

func (s *stubSource) Match(q string) bool { return strings.HasPrefix(q, s.prefix) }
func (s *stubSource) SourceName() string  { return s.name }
func (s *stubSource) Resolve(ctx context.Context, _ string) (track.Info, error) {
	s.calls++
	if s.wait {
		<-ctx.Done()
		return track.Info{}, ctx.Err()
	}
	return s.info, s.err
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://youtu.be/x"))
	assert.True(t, IsURL("http://a.b"))
	assert.False(t, IsURL("youtube.com/watch?v=x"))
	assert.False(t, IsURL("lofi https://x"))
}

func TestResolvePicksFirstMatch(t *testing.T) {
	yt := &stubSource{name: "youtube", prefix: "https://youtu", info: track.Info{Title: "Video", StreamLocator: "s://v"}}
	other := &stubSource{name: "ytdlp", prefix: "http", info: track.Info{Title: "Other", StreamLocator: "s://o"}}
	r := NewWithSources(time.Second, zaptest.NewLogger(t), yt, other)

	tr, err := r.Resolve(context.Background(), "  https://youtu.be/x ", track.Requester{ID: "7", Name: "ann"})
	require.NoError(t, err)
	assert.Equal(t, "Video", tr.Title())
	assert.Equal(t, "youtube", tr.SourceName())
	assert.Equal(t, "<@7>", tr.Requester().Mention())
	assert.Zero(t, other.calls)
}

func TestResolveErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := &stubSource{name: "bad", prefix: "bad", err: boom}
	noLocator := &stubSource{name: "empty", prefix: "empty", info: track.Info{Title: "x"}}
	r := NewWithSources(time.Second, nil, failing, noLocator)

	_, err := r.Resolve(context.Background(), "bad query", track.Requester{})
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "bad query", resErr.Query)
	assert.ErrorIs(t, err, boom)

	_, err = r.Resolve(context.Background(), "empty", track.Requester{})
	assert.ErrorIs(t, err, sources.ErrNoStreamURL)

	_, err = r.Resolve(context.Background(), "nothing matches", track.Requester{})
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = r.Resolve(context.Background(), "   ", track.Requester{})
	assert.ErrorAs(t, err, &resErr)
}

func TestResolveTimeout(t *testing.T) {
	slow := &stubSource{name: "slow", prefix: "", wait: true}
	r := NewWithSources(20*time.Millisecond, nil, slow)

	_, err := r.Resolve(context.Background(), "anything", track.Requester{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
