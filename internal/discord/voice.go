package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/lapis-music/internal/music/player"
)

var errNotInVoice = errors.New("user not in any voice channel")

// findUserVoiceChannel returns the voice channel a member is in, according to
// the gateway state cache.
func findUserVoiceChannel(state *discordgo.State, guildID, userID string) (string, error) {
	vs, err := state.VoiceState(guildID, userID)
	if err != nil {
		if errors.Is(err, discordgo.ErrStateNotFound) {
			return "", errNotInVoice
		}
		return "", fmt.Errorf("error retrieving voice state: %w", err)
	}
	if vs.ChannelID == "" {
		return "", errNotInVoice
	}
	return vs.ChannelID, nil
}

// NewPlayer builds the voice sink of a guild.
func (b *Bot) NewPlayer(guildID string, open player.Opener, pump player.Pump) *player.Player {
	return player.New(guildID, b.voice, open, pump, b.log)
}
