package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/keshon/lapis-music/internal/command"
	"github.com/keshon/lapis-music/internal/command/music"
	"github.com/keshon/lapis-music/internal/config"
	"github.com/keshon/lapis-music/internal/discord"
	"github.com/keshon/lapis-music/internal/docs"
	"github.com/keshon/lapis-music/internal/health"
	"github.com/keshon/lapis-music/internal/logging"
	"github.com/keshon/lapis-music/internal/lyrics"
	"github.com/keshon/lapis-music/internal/music/audio"
	"github.com/keshon/lapis-music/internal/music/jukebox"
	"github.com/keshon/lapis-music/internal/music/session"
	"github.com/keshon/lapis-music/internal/music/source_resolver"
	"github.com/keshon/lapis-music/internal/music/stream"
	"github.com/keshon/lapis-music/internal/storage"
	"github.com/keshon/lapis-music/internal/version"
)

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:           "lapis-music",
		Short:         version.AppDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFiles...)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	root.Flags().StringSliceVar(&envFiles, "env-file", nil, "env files to load (default .env)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s (rev %s, built %s, %s)\n",
				version.AppName, version.Revision(), version.BuildDate, version.GoVersion())
		},
	})
	root.AddCommand(newReadmeCmd())
	return root
}

func newReadmeCmd() *cobra.Command {
	var prefix, tmpl, out string
	cmd := &cobra.Command{
		Use:   "readme",
		Short: "Regenerate README.md from the registered commands",
		RunE: func(_ *cobra.Command, _ []string) error {
			commands := command.NewRegistry()
			music.Register(commands, music.Deps{Prefix: prefix})
			return docs.UpdateReadme(commands, prefix, tmpl, out)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "!", "command prefix shown in the README")
	cmd.Flags().StringVar(&tmpl, "template", "README.md.tmpl", "template path")
	cmd.Flags().StringVar(&out, "out", "README.md", "output path")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	log.Info(fmt.Sprintf("Starting %s bot", version.AppName), zap.String("revision", version.Revision()))

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	resolver := source_resolver.New(cfg.YouTubeProxy, cfg.ResolveTimeout, log)
	lyricsClient := lyrics.New(cfg.GeniusToken, log)

	bot, err := discord.NewBot(discord.Config{
		Token:             cfg.DiscordToken,
		Prefix:            cfg.CommandPrefix,
		StatusMessage:     cfg.StatusMessage,
		InitSlashCommands: cfg.InitSlashCommands,
	}, store, log)
	if err != nil {
		return err
	}

	sessions := session.NewRegistry(session.Options{
		Config: session.Config{
			IdleTimeout:   cfg.IdleTimeout,
			PopTimeout:    cfg.PopTimeout,
			DefaultVolume: session.DefaultVolume,
		},
		Logger: log,
		SinkFactory: func(guildID string) session.Sink {
			return bot.NewPlayer(guildID, audio.Open, stream.StreamToDiscord)
		},
		NotifierFactory: func(o session.Origin) session.Notifier {
			return jukebox.NewHistoryNotifier(store, o.GuildID, bot.Notifier(o), log)
		},
		OnCreate: jukebox.RestoreVolume(store, log),
	})

	juke := jukebox.New(sessions, resolver, lyricsClient, store, log)

	commands := command.NewRegistry()
	music.Register(commands, music.Deps{
		Jukebox: juke,
		Voice:   bot.VoiceChannel,
		Prefix:  cfg.CommandPrefix,
	},
		command.WithGuildOnly(),
		command.WithUserPermissionCheck(),
		command.WithCommandLogger(store, log),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return health.New(cfg.HealthAddr, sessions.Len, log).Run(gctx)
	})
	g.Go(func() error {
		return bot.Run(gctx, commands, sessions)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Bot exited with error", zap.Error(err))
		return err
	}
	log.Info("Discord bot exited cleanly")
	return nil
}
