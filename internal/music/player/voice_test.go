package player

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sharedConn mimics discordgo handing the same connection to every join of
// a guild.
func sharedJoiner() (*DiscordJoiner, *fakeConn) {
	conn := &fakeConn{channel: "c1", frames: make(chan []byte, 1)}
	return newJoiner(func(_, channelID string) (VoiceConn, error) {
		conn.channel = channelID
		return conn, nil
	}), conn
}

func TestStaleDisconnectKeepsSuccessorConnected(t *testing.T) {
	j, conn := sharedJoiner()

	old, err := j.Join("g1", "c1")
	require.NoError(t, err)
	successor, err := j.Join("g1", "c1")
	require.NoError(t, err)

	require.NoError(t, old.Disconnect())
	assert.Equal(t, int32(0), conn.disconnects.Load())

	require.NoError(t, successor.Disconnect())
	assert.Equal(t, int32(1), conn.disconnects.Load())
	require.NoError(t, successor.Disconnect())
	assert.Equal(t, int32(1), conn.disconnects.Load())
}

func TestDisconnectBeforeSuccessorJoins(t *testing.T) {
	j, conn := sharedJoiner()

	old, err := j.Join("g1", "c1")
	require.NoError(t, err)
	require.NoError(t, old.Disconnect())
	assert.Equal(t, int32(1), conn.disconnects.Load())

	successor, err := j.Join("g1", "c2")
	require.NoError(t, err)
	assert.Equal(t, "c2", successor.ChannelID())
	require.NoError(t, successor.Disconnect())
	assert.Equal(t, int32(2), conn.disconnects.Load())
}

func TestLeasesArePerGuild(t *testing.T) {
	j, conn := sharedJoiner()

	a, err := j.Join("g1", "c1")
	require.NoError(t, err)
	_, err = j.Join("g2", "c9")
	require.NoError(t, err)

	require.NoError(t, a.Disconnect())
	assert.Equal(t, int32(1), conn.disconnects.Load())
}

func TestJoinFailureKeepsLease(t *testing.T) {
	conn := &fakeConn{channel: "c1"}
	fail := false
	j := newJoiner(func(string, string) (VoiceConn, error) {
		if fail {
			return nil, errors.New("timeout")
		}
		return conn, nil
	})

	first, err := j.Join("g1", "c1")
	require.NoError(t, err)
	fail = true
	_, err = j.Join("g1", "c2")
	require.Error(t, err)

	require.NoError(t, first.Disconnect())
	assert.Equal(t, int32(1), conn.disconnects.Load())
}
