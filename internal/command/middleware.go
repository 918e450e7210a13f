package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/storage"
)

// Middleware wraps a command (logging, guild check). The wrapped type remains
// a Command.
type Middleware func(Command) Command

// Apply applies middlewares in order; the last in the list is the outermost.
func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}

// WithGuildOnly refuses invocations outside a guild.
func WithGuildOnly() Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			if inv.GuildID == "" {
				if inv.Reply == nil {
					return nil
				}
				return inv.Reply.Text("❌ This command only works in a server.")
			}
			return c.Run(ctx, inv)
		})
	}
}

var permissionNames = map[int64]string{
	discordgo.PermissionAdministrator:    "Administrator",
	discordgo.PermissionManageGuild:      "Manage Server",
	discordgo.PermissionManageChannels:   "Manage Channels",
	discordgo.PermissionVoiceMoveMembers: "Move Members",
}

// WithUserPermissionCheck enforces PermissionProvider with any-of semantics.
// Administrators always pass; commands without requirements are open.
func WithUserPermissionCheck() Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			pp, ok := Root(c).(PermissionProvider)
			if !ok || inv.GuildID == "" || inv.Permissions&discordgo.PermissionAdministrator != 0 {
				return c.Run(ctx, inv)
			}
			required := pp.UserPermissions()
			if len(required) == 0 {
				return c.Run(ctx, inv)
			}
			for _, p := range required {
				if inv.Permissions&p != 0 {
					return c.Run(ctx, inv)
				}
			}

			allowed := make([]string, 0, len(required))
			for _, p := range required {
				name := permissionNames[p]
				if name == "" {
					name = fmt.Sprintf("0x%x", p)
				}
				allowed = append(allowed, name)
			}
			if inv.Reply == nil {
				return nil
			}
			return inv.Reply.Text(fmt.Sprintf(
				"❌ You need at least one of the following permissions to run this command:\n`%s`",
				strings.Join(allowed, "`, `"),
			))
		})
	}
}

// CommandLogger persists executed commands.
type CommandLogger interface {
	AppendCommandToHistory(guildID string, record storage.CommandHistoryRecord) error
}

// WithCommandLogger records every guild invocation after it ran, whatever its
// outcome.
func WithCommandLogger(store CommandLogger, log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("commands")
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			err := c.Run(ctx, inv)

			fields := []zap.Field{
				zap.String("command", c.Name()),
				zap.String("guild", inv.GuildID),
				zap.String("user", inv.Username),
			}
			if err != nil {
				log.Warn("Command failed", append(fields, zap.Error(err))...)
			} else {
				log.Debug("Command executed", fields...)
			}

			if inv.GuildID == "" || store == nil {
				return err
			}
			record := storage.CommandHistoryRecord{
				ChannelID: inv.ChannelID,
				UserID:    inv.UserID,
				Username:  inv.Username,
				Command:   c.Name(),
				Param:     strings.Join(inv.Args, " "),
				Datetime:  time.Now(),
			}
			if e := store.AppendCommandToHistory(inv.GuildID, record); e != nil {
				log.Warn("Failed to log command", zap.String("command", c.Name()), zap.Error(e))
			}
			return err
		})
	}
}
