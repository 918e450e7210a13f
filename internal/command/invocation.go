// Package command provides a transport-agnostic command core: a command is
// something with a name, description, and Run(ctx, invocation). How it is
// registered and dispatched (slash interaction, prefix message) is defined by
// the Discord adapter.
package command

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Invocation carries everything a command needs from whoever dispatched it.
type Invocation struct {
	GuildID   string
	ChannelID string
	UserID    string
	Username  string
	// Permissions is the caller's permission bitset in ChannelID.
	Permissions int64
	// Args are the prefix message words after the command name, or the slash
	// option values in declaration order.
	Args []string
	// Reply sends the command's answer back where it came from.
	Reply Responder
	// Data is the transport payload (*discordgo.InteractionCreate or
	// *discordgo.MessageCreate).
	Data any
}

// Arg returns the i-th argument or "".
func (inv *Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// Responder answers an invocation. Slash commands may acknowledge first with
// Defer and answer later; prefix commands treat Defer as a typing hint.
type Responder interface {
	Defer() error
	Embed(embed *discordgo.MessageEmbed) error
	// EmbedEphemeral is only visible to the caller where the transport
	// supports it.
	EmbedEphemeral(embed *discordgo.MessageEmbed) error
	Text(content string) error
}

// Command is the universal contract: identity plus execution.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// SlashProvider is implemented by commands that register as slash commands.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// AliasProvider is implemented by commands reachable under extra prefix names.
type AliasProvider interface {
	Aliases() []string
}

// UsageProvider is implemented by commands that describe their arguments.
type UsageProvider interface {
	Usage() string
}

// PermissionProvider is implemented by commands restricted to members holding
// any of the returned permissions.
type PermissionProvider interface {
	UserPermissions() []int64
}
