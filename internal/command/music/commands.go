package music

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/lapis-music/internal/command"
	"github.com/keshon/lapis-music/internal/music/jukebox"
	"github.com/keshon/lapis-music/internal/music/session"
	"github.com/keshon/lapis-music/internal/music/track"
)

func simpleSlash(c command.Command) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

// PlayCommand resolves a link or search query and queues it.
type PlayCommand struct{ deps *Deps }

func (c *PlayCommand) Name() string        { return "play" }
func (c *PlayCommand) Description() string { return "Play a song from a link or search term" }
func (c *PlayCommand) Usage() string       { return "<query>" }
func (c *PlayCommand) Aliases() []string   { return []string{"p"} }

func (c *PlayCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "Song URL or search term",
				Required:    true,
			},
		},
	}
}

func (c *PlayCommand) Run(ctx context.Context, inv *command.Invocation) error {
	query := strings.TrimSpace(strings.Join(inv.Args, " "))
	if query == "" {
		return inv.Reply.EmbedEphemeral(errorEmbed("❌ Tell me what to play: a link or a search term."))
	}

	if err := inv.Reply.Defer(); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}

	voiceChannelID, err := c.deps.Voice(inv.GuildID, inv.UserID)
	if err != nil || voiceChannelID == "" {
		return fail(inv, jukebox.ErrNotInVoice)
	}

	res, err := c.deps.Jukebox.Play(ctx, jukebox.Request{
		GuildID:        inv.GuildID,
		TextChannelID:  inv.ChannelID,
		VoiceChannelID: voiceChannelID,
		Requester:      track.Requester{ID: inv.UserID, Name: inv.Username},
	}, query)
	if err != nil {
		return fail(inv, err)
	}
	return inv.Reply.Embed(QueuedEmbed(res.Track, res.Position))
}

type SkipCommand struct{ deps *Deps }

func (c *SkipCommand) Name() string        { return "skip" }
func (c *SkipCommand) Description() string { return "Skip current song" }
func (c *SkipCommand) Aliases() []string   { return []string{"next", "s"} }

func (c *SkipCommand) SlashDefinition() *discordgo.ApplicationCommand { return simpleSlash(c) }

func (c *SkipCommand) Run(_ context.Context, inv *command.Invocation) error {
	skipped, err := c.deps.Jukebox.Skip(inv.GuildID)
	if err != nil {
		return fail(inv, err)
	}
	return inv.Reply.Text(fmt.Sprintf("⏭️ Skipped **%s**!", skipped.Title()))
}

type StopCommand struct{ deps *Deps }

func (c *StopCommand) Name() string { return "stop" }
func (c *StopCommand) Description() string {
	return "Stop player and clear queue without disconnecting"
}

func (c *StopCommand) SlashDefinition() *discordgo.ApplicationCommand { return simpleSlash(c) }

func (c *StopCommand) Run(_ context.Context, inv *command.Invocation) error {
	if _, err := c.deps.Jukebox.Stop(inv.GuildID); err != nil {
		return fail(inv, err)
	}
	return inv.Reply.Text("⏹️ Stopped player and cleared queue!")
}

type QueueCommand struct{ deps *Deps }

func (c *QueueCommand) Name() string        { return "queue" }
func (c *QueueCommand) Description() string { return "Show current queue" }
func (c *QueueCommand) Aliases() []string   { return []string{"q"} }

func (c *QueueCommand) SlashDefinition() *discordgo.ApplicationCommand { return simpleSlash(c) }

func (c *QueueCommand) Run(_ context.Context, inv *command.Invocation) error {
	view, err := c.deps.Jukebox.Queue(inv.GuildID)
	if err != nil {
		return fail(inv, err)
	}
	return inv.Reply.Embed(queueEmbed(view))
}

type LoopCommand struct{ deps *Deps }

func (c *LoopCommand) Name() string        { return "loop" }
func (c *LoopCommand) Description() string { return "Toggle loop mode" }

func (c *LoopCommand) SlashDefinition() *discordgo.ApplicationCommand { return simpleSlash(c) }

func (c *LoopCommand) Run(_ context.Context, inv *command.Invocation) error {
	on, err := c.deps.Jukebox.ToggleLoop(inv.GuildID)
	if err != nil {
		return fail(inv, err)
	}
	if on {
		return inv.Reply.Text("Loop 🔁 Enabled")
	}
	return inv.Reply.Text("Loop ➡️ Disabled")
}

type VolumeCommand struct{ deps *Deps }

func (c *VolumeCommand) Name() string        { return "volume" }
func (c *VolumeCommand) Description() string { return "Set volume (0-200%)" }
func (c *VolumeCommand) Usage() string       { return "<0-200>" }
func (c *VolumeCommand) Aliases() []string   { return []string{"vol"} }

func (c *VolumeCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minLevel := 0.0
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "level",
				Description: "Volume level (0-200)",
				Required:    true,
				MinValue:    &minLevel,
				MaxValue:    session.MaxVolumeLevel,
			},
		},
	}
}

func (c *VolumeCommand) Run(_ context.Context, inv *command.Invocation) error {
	level, err := strconv.Atoi(strings.TrimSuffix(inv.Arg(0), "%"))
	if err != nil {
		return fail(inv, session.ErrVolumeOutOfRange)
	}
	if err := c.deps.Jukebox.SetVolume(inv.GuildID, level); err != nil {
		return fail(inv, err)
	}
	return inv.Reply.Text(fmt.Sprintf("🔊 Volume set to %d%%", level))
}

// PersistCommand toggles 24/7 mode. Administrators only.
type PersistCommand struct{ deps *Deps }

func (c *PersistCommand) Name() string             { return "247" }
func (c *PersistCommand) Description() string      { return "Toggle 24/7 mode (Admin only)" }
func (c *PersistCommand) UserPermissions() []int64 { return []int64{discordgo.PermissionAdministrator} }

func (c *PersistCommand) SlashDefinition() *discordgo.ApplicationCommand {
	perm := int64(discordgo.PermissionAdministrator)
	def := simpleSlash(c)
	def.DefaultMemberPermissions = &perm
	return def
}

func (c *PersistCommand) Run(_ context.Context, inv *command.Invocation) error {
	on, err := c.deps.Jukebox.Toggle247(inv.GuildID)
	if err != nil {
		return fail(inv, err)
	}
	if on {
		return inv.Reply.Text("🕒 24/7 Mode ENABLED 🔒")
	}
	return inv.Reply.Text("🕒 24/7 Mode DISABLED 🔓")
}

type LyricsCommand struct{ deps *Deps }

func (c *LyricsCommand) Name() string        { return "lyrics" }
func (c *LyricsCommand) Description() string { return "Get current song lyrics" }

func (c *LyricsCommand) SlashDefinition() *discordgo.ApplicationCommand { return simpleSlash(c) }

func (c *LyricsCommand) Run(ctx context.Context, inv *command.Invocation) error {
	if _, err := c.deps.Jukebox.NowPlaying(inv.GuildID); err != nil {
		return fail(inv, err)
	}
	if err := inv.Reply.Defer(); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}
	text, err := c.deps.Jukebox.Lyrics(ctx, inv.GuildID)
	if err != nil {
		return fail(inv, err)
	}
	return inv.Reply.Text(text)
}

type NowPlayingCommand struct{ deps *Deps }

func (c *NowPlayingCommand) Name() string        { return "nowplaying" }
func (c *NowPlayingCommand) Description() string { return "Show current song info" }
func (c *NowPlayingCommand) Aliases() []string   { return []string{"np"} }

func (c *NowPlayingCommand) SlashDefinition() *discordgo.ApplicationCommand { return simpleSlash(c) }

func (c *NowPlayingCommand) Run(_ context.Context, inv *command.Invocation) error {
	current, err := c.deps.Jukebox.NowPlaying(inv.GuildID)
	if err != nil {
		return fail(inv, err)
	}
	return inv.Reply.Embed(currentEmbed(current))
}

// LeaveCommand disconnects and forgets the guild's player, 24/7 or not.
type LeaveCommand struct{ deps *Deps }

func (c *LeaveCommand) Name() string        { return "leave" }
func (c *LeaveCommand) Description() string { return "Disconnect from voice and clear the queue" }
func (c *LeaveCommand) Aliases() []string   { return []string{"dc", "disconnect"} }

func (c *LeaveCommand) SlashDefinition() *discordgo.ApplicationCommand { return simpleSlash(c) }

func (c *LeaveCommand) Run(_ context.Context, inv *command.Invocation) error {
	if err := c.deps.Jukebox.Leave(inv.GuildID); err != nil {
		return fail(inv, err)
	}
	return inv.Reply.Text("👋 Left the voice channel.")
}

type HistoryCommand struct{ deps *Deps }

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Description() string { return "Show recently played songs" }

func (c *HistoryCommand) SlashDefinition() *discordgo.ApplicationCommand { return simpleSlash(c) }

func (c *HistoryCommand) Run(_ context.Context, inv *command.Invocation) error {
	records, err := c.deps.Jukebox.History(inv.GuildID)
	if err != nil {
		return fail(inv, err)
	}
	if len(records) == 0 {
		return inv.Reply.EmbedEphemeral(errorEmbed("📭 Nothing has been played here yet."))
	}
	return inv.Reply.Embed(historyEmbed(records))
}
