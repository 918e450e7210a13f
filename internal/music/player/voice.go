package player

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// DiscordJoiner joins voice channels through a gateway session. discordgo
// keeps one voice connection per guild, so a connection handed out by Join
// only disconnects while it is still the guild's latest join; a session torn
// down after its successor joined leaves the shared connection alone.
type DiscordJoiner struct {
	join func(guildID, channelID string) (VoiceConn, error)

	mu     sync.Mutex
	guilds map[string]*voiceLease
}

type voiceLease struct {
	mu  sync.Mutex
	gen uint64
}

func NewDiscordJoiner(s *discordgo.Session) *DiscordJoiner {
	return newJoiner(func(guildID, channelID string) (VoiceConn, error) {
		vc, err := s.ChannelVoiceJoin(guildID, channelID, false, true)
		if err != nil {
			return nil, err
		}
		return discordVoice{vc: vc}, nil
	})
}

func newJoiner(join func(guildID, channelID string) (VoiceConn, error)) *DiscordJoiner {
	return &DiscordJoiner{join: join, guilds: make(map[string]*voiceLease)}
}

func (j *DiscordJoiner) lease(guildID string) *voiceLease {
	j.mu.Lock()
	defer j.mu.Unlock()
	l, ok := j.guilds[guildID]
	if !ok {
		l = &voiceLease{}
		j.guilds[guildID] = l
	}
	return l
}

func (j *DiscordJoiner) Join(guildID, channelID string) (VoiceConn, error) {
	l := j.lease(guildID)
	l.mu.Lock()
	defer l.mu.Unlock()

	vc, err := j.join(guildID, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}
	l.gen++
	return &leasedConn{VoiceConn: vc, lease: l, gen: l.gen}, nil
}

type leasedConn struct {
	VoiceConn
	lease *voiceLease
	gen   uint64
}

func (c *leasedConn) Disconnect() error {
	c.lease.mu.Lock()
	defer c.lease.mu.Unlock()
	if c.lease.gen != c.gen {
		return nil
	}
	c.lease.gen++
	return c.VoiceConn.Disconnect()
}

type discordVoice struct {
	vc *discordgo.VoiceConnection
}

func (d discordVoice) ChannelID() string          { return d.vc.ChannelID }
func (d discordVoice) OpusChannel() chan<- []byte { return d.vc.OpusSend }
func (d discordVoice) Speaking(on bool) error     { return d.vc.Speaking(on) }
func (d discordVoice) Disconnect() error          { return d.vc.Disconnect() }
