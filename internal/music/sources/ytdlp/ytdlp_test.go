package ytdlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/lapis-music/internal/music/sources"
)

func TestParseLine(t *testing.T) {
	out := "Song\thttps://soundcloud.com/a/b\t201.5\thttps://img/x.jpg\thttps://cdn/stream.mp3\n"

	info, err := parseLine(out)
	require.NoError(t, err)
	assert.Equal(t, "Song", info.Title)
	assert.Equal(t, "https://soundcloud.com/a/b", info.URL)
	assert.Equal(t, 201, info.DurationSeconds)
	assert.Equal(t, "https://img/x.jpg", info.ThumbnailURL)
	assert.Equal(t, "https://cdn/stream.mp3", info.StreamLocator)
	assert.Equal(t, SourceYTDLP, info.SourceName)
}

func TestParseLineMissingFields(t *testing.T) {
	info, err := parseLine("Radio\tNA\tNA\tNA\thttps://cdn/live\n")
	require.NoError(t, err)
	assert.Empty(t, info.URL)
	assert.Zero(t, info.DurationSeconds)
	assert.Empty(t, info.ThumbnailURL)

	_, err = parseLine("Radio\tNA\tNA\tNA\tNA\n")
	assert.ErrorIs(t, err, sources.ErrNoStreamURL)

	_, err = parseLine("  \n")
	assert.ErrorIs(t, err, sources.ErrNoResults)

	_, err = parseLine("garbage")
	assert.ErrorIs(t, err, errMalformedOutput)
}

func TestMatch(t *testing.T) {
	s := New("", nil)
	assert.True(t, s.Match("https://soundcloud.com/a/b"))
	assert.True(t, s.Match(" http://example.com/x.mp3"))
	assert.False(t, s.Match("lofi beats"))
}
