package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
	"go.uber.org/zap"

	"github.com/keshon/lapis-music/internal/command/music"
	"github.com/keshon/lapis-music/internal/music/session"
	"github.com/keshon/lapis-music/internal/music/track"
)

const outboxSize = 64

type outgoing struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

// outbox delivers session notifications in order on a single goroutine so a
// slow Discord API never stalls a coordinator.
type outbox struct {
	send func(channelID string, embed *discordgo.MessageEmbed) error
	ch   chan outgoing
	log  *zap.Logger
}

func newOutbox(send func(string, *discordgo.MessageEmbed) error, log *zap.Logger) *outbox {
	return &outbox{
		send: send,
		ch:   make(chan outgoing, outboxSize),
		log:  log,
	}
}

func (o *outbox) post(channelID string, e *discordgo.MessageEmbed) {
	if channelID == "" {
		return
	}
	select {
	case o.ch <- outgoing{channelID: channelID, embed: e}:
	default:
		o.log.Warn("Notification dropped, outbox full", zap.String("channel", channelID))
	}
}

// run delivers until ctx is cancelled.
func (o *outbox) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-o.ch:
			if err := o.send(msg.channelID, msg.embed); err != nil {
				o.log.Warn("Failed to send notification", zap.String("channel", msg.channelID), zap.Error(err))
			}
		}
	}
}

// channelNotifier reports a session's playback events to the text channel the
// session was created from.
type channelNotifier struct {
	out       *outbox
	channelID string
	log       *zap.Logger
}

var _ session.Notifier = (*channelNotifier)(nil)

func (n *channelNotifier) NowPlaying(t *track.Track) {
	n.out.post(n.channelID, music.NowPlayingEmbed(t))
}

// Queued is answered by the play command itself.
func (n *channelNotifier) Queued(t *track.Track, position int) {
	n.log.Debug("Queued", zap.Stringer("track", t), zap.Int("position", position))
}

func (n *channelNotifier) Error(message string) {
	n.out.post(n.channelID, embed.NewEmbed().
		SetColor(music.EmbedColor).
		SetDescription("⚠️ "+message).
		MessageEmbed)
}
