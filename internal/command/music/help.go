package music

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"

	"github.com/keshon/lapis-music/internal/command"
	"github.com/keshon/lapis-music/internal/version"
)

// HelpCommand lists every registered command.
type HelpCommand struct {
	deps     *Deps
	registry *command.Registry
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Show all commands" }
func (c *HelpCommand) Aliases() []string   { return []string{"h", "commands"} }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand { return simpleSlash(c) }

func (c *HelpCommand) Run(_ context.Context, inv *command.Invocation) error {
	return inv.Reply.Embed(c.render())
}

func (c *HelpCommand) render() *discordgo.MessageEmbed {
	e := embed.NewEmbed().
		SetColor(EmbedColor).
		SetTitle(version.AppName + " Help").
		SetDescription("**Available Commands:**")

	for _, cmd := range c.registry.GetAll() {
		root := command.Root(cmd)
		name := "/" + cmd.Name()
		if u, ok := root.(command.UsageProvider); ok {
			name += " " + u.Usage()
		}
		desc := cmd.Description()
		if a, ok := root.(command.AliasProvider); ok && len(a.Aliases()) > 0 {
			desc += fmt.Sprintf(" (aliases: %s)", strings.Join(a.Aliases(), ", "))
		}
		e.AddField(name, desc)
	}

	if c.deps.Prefix != "" {
		e.SetFooter(fmt.Sprintf("Every command also works as %splay, %sskip, ...", c.deps.Prefix, c.deps.Prefix))
	}
	return e.MessageEmbed
}
