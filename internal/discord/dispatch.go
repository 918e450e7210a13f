package discord

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// parsePrefixCommand splits "<prefix>name arg1 arg2" into its parts. A leading
// mention of the bot works like the prefix.
func parsePrefixCommand(content, prefix, botID string) (string, []string, bool) {
	content = strings.TrimSpace(content)

	switch {
	case botID != "" && strings.HasPrefix(content, "<@"+botID+">"):
		content = strings.TrimPrefix(content, "<@"+botID+">")
	case botID != "" && strings.HasPrefix(content, "<@!"+botID+">"):
		content = strings.TrimPrefix(content, "<@!"+botID+">")
	case prefix != "" && strings.HasPrefix(content, prefix):
		content = strings.TrimPrefix(content, prefix)
	default:
		return "", nil, false
	}

	fields := strings.Fields(content)
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// slashArgs flattens slash command options into positional arguments.
func slashArgs(opts []*discordgo.ApplicationCommandInteractionDataOption) []string {
	args := make([]string, 0, len(opts))
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionString:
			args = append(args, o.StringValue())
		case discordgo.ApplicationCommandOptionInteger:
			args = append(args, strconv.FormatInt(o.IntValue(), 10))
		case discordgo.ApplicationCommandOptionBoolean:
			args = append(args, strconv.FormatBool(o.BoolValue()))
		case discordgo.ApplicationCommandOptionNumber:
			args = append(args, strconv.FormatFloat(o.FloatValue(), 'f', -1, 64))
		case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
			args = append(args, o.Name)
			args = append(args, slashArgs(o.Options)...)
		default:
			args = append(args, fmt.Sprint(o.Value))
		}
	}
	return args
}

// interactionUser returns the invoking user, in a guild or in DMs.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func displayName(u *discordgo.User, m *discordgo.Member) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
