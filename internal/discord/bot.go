package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/command"
	"github.com/keshon/lapis-music/internal/music/player"
	"github.com/keshon/lapis-music/internal/music/session"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	Token             string
	Prefix            string
	StatusMessage     string
	InitSlashCommands bool
}

// Bot is the Discord gateway front of the music engine.
type Bot struct {
	cfg    Config
	dg     *discordgo.Session
	hashes CommandHashStore
	out    *outbox
	voice  *player.DiscordJoiner
	log    *zap.Logger

	commands *command.Registry

	ctx    context.Context
	synced sync.Map
}

// NewBot prepares a gateway session. Nothing connects until Run.
func NewBot(cfg Config, hashes CommandHashStore, log *zap.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord token is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	b := &Bot{
		cfg:    cfg,
		dg:     dg,
		hashes: hashes,
		voice:  player.NewDiscordJoiner(dg),
		log:    log.Named("discord"),
		ctx:    context.Background(),
	}
	b.out = newOutbox(func(channelID string, e *discordgo.MessageEmbed) error {
		return sendEmbed(b.dg, channelID, e)
	}, b.log)
	return b, nil
}

// Notifier returns the notification target of a session created from origin.
func (b *Bot) Notifier(origin session.Origin) session.Notifier {
	return &channelNotifier{
		out:       b.out,
		channelID: origin.ChannelID,
		log:       b.log.With(zap.String("guild", origin.GuildID)),
	}
}

// VoiceChannel returns the voice channel a member is in.
func (b *Bot) VoiceChannel(guildID, userID string) (string, error) {
	return findUserVoiceChannel(b.dg.State, guildID, userID)
}

// Run connects, serves commands until ctx is cancelled, then destroys every
// session and disconnects.
func (b *Bot) Run(ctx context.Context, commands *command.Registry, sessions *session.Registry) error {
	b.ctx = ctx
	b.commands = commands

	b.configureIntents()
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onMessageCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	go b.out.run(ctx)

	<-ctx.Done()
	b.log.Info("Shutdown signal received, cleaning up")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		b.log.Warn("Sessions did not stop in time", zap.Error(err))
	}
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: string(discordgo.StatusDoNotDisturb),
		Activities: []*discordgo.Activity{{
			Name: b.cfg.StatusMessage,
			Type: discordgo.ActivityTypeListening,
		}},
	})
	if err != nil {
		b.log.Warn("Failed to set presence", zap.Error(err))
	}
	b.log.Info("Discord bot is running",
		zap.String("user", r.User.Username),
		zap.String("id", r.User.ID),
		zap.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.log.Info("Guild available", zap.String("guild", g.ID), zap.String("name", g.Name))

	if !b.cfg.InitSlashCommands {
		return
	}
	if _, done := b.synced.LoadOrStore(g.ID, true); done {
		return
	}
	cs := &commandSync{api: s, hashes: b.hashes, pause: 25 * time.Millisecond, log: b.log}
	if err := cs.sync(s.State.User.ID, g.ID, b.commands.SlashDefinitions()); err != nil {
		b.synced.Delete(g.ID)
		b.log.Error("Failed to register slash commands", zap.String("guild", g.ID), zap.Error(err))
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	cmd, ok := b.commands.Get(data.Name)
	if !ok {
		b.log.Warn("Unknown command", zap.String("command", data.Name))
		return
	}

	user := interactionUser(i)
	if user == nil {
		return
	}
	inv := &command.Invocation{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		UserID:    user.ID,
		Username:  displayName(user, i.Member),
		Args:      slashArgs(data.Options),
		Reply:     &interactionResponder{s: s, i: i},
		Data:      i,
	}
	if i.Member != nil {
		inv.Permissions = i.Member.Permissions
	}

	if err := cmd.Run(b.ctx, inv); err != nil {
		b.log.Error("Error running slash command", zap.String("command", data.Name), zap.Error(err))
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	name, args, ok := parsePrefixCommand(m.Content, b.cfg.Prefix, s.State.User.ID)
	if !ok {
		return
	}
	cmd, ok := b.commands.Get(name)
	if !ok {
		return
	}

	inv := &command.Invocation{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Username:  displayName(m.Author, m.Member),
		Args:      args,
		Reply:     &messageResponder{s: s, m: m},
		Data:      m,
	}
	perms, err := s.State.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		perms, err = s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	}
	if err != nil {
		b.log.Debug("Failed to resolve permissions", zap.String("user", m.Author.ID), zap.Error(err))
	}
	inv.Permissions = perms

	if err := cmd.Run(b.ctx, inv); err != nil {
		b.log.Error("Error running prefix command", zap.String("command", name), zap.Error(err))
	}
}
