package music

import (
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"

	"github.com/keshon/lapis-music/internal/music/jukebox"
	"github.com/keshon/lapis-music/internal/music/track"
	"github.com/keshon/lapis-music/internal/storage"
)

const EmbedColor = 0xb01e66

func trackLink(t *track.Track) string {
	if t.URL() == "" {
		return t.Title()
	}
	return fmt.Sprintf("[%s](%s)", t.Title(), t.URL())
}

// NowPlayingEmbed announces a track that just started.
func NowPlayingEmbed(t *track.Track) *discordgo.MessageEmbed {
	e := embed.NewEmbed().
		SetColor(EmbedColor).
		SetTitle("🎶 Now Playing").
		SetDescription(trackLink(t)).
		AddField("Requested by", t.Requester().Mention()).
		AddField("Duration", t.DisplayDuration())
	if t.ThumbnailURL() != "" {
		e.SetThumbnail(t.ThumbnailURL())
	}
	return e.InlineAllFields().MessageEmbed
}

// QueuedEmbed confirms a track was added at position (1-based).
func QueuedEmbed(t *track.Track, position int) *discordgo.MessageEmbed {
	e := embed.NewEmbed().
		SetColor(EmbedColor).
		SetTitle("🎵 Added to Queue").
		SetDescription(trackLink(t)).
		AddField("Position", fmt.Sprintf("%d", position))
	if t.ThumbnailURL() != "" {
		e.SetThumbnail(t.ThumbnailURL())
	}
	return e.InlineAllFields().MessageEmbed
}

func currentEmbed(t *track.Track) *discordgo.MessageEmbed {
	e := embed.NewEmbed().
		SetColor(EmbedColor).
		SetTitle("🎶 Now Playing").
		SetDescription(fmt.Sprintf("**%s**\n%s", t.Title(), t.URL())).
		SetFooter("Requested by " + t.Requester().Name)
	if t.ThumbnailURL() != "" {
		e.SetThumbnail(t.ThumbnailURL())
	}
	return e.MessageEmbed
}

func queueEmbed(v *jukebox.QueueView) *discordgo.MessageEmbed {
	e := embed.NewEmbed().
		SetColor(EmbedColor).
		SetTitle("🎵 Music Queue")
	if v.Current != nil {
		e.SetDescription("**Now playing:** " + trackLink(v.Current))
	}
	for i, t := range v.Upcoming {
		e.AddField(fmt.Sprintf("%d. %s", i+1, t.Title()), "Requested by "+t.Requester().Mention())
	}
	footer := []string{fmt.Sprintf("%d in queue", v.Total)}
	if more := v.Total - len(v.Upcoming); more > 0 {
		footer[0] += fmt.Sprintf(" (%d more not shown)", more)
	}
	footer = append(footer,
		"Loop "+onOff(v.Loop),
		"24/7 "+onOff(v.Persistent),
		fmt.Sprintf("Volume %d%%", volumePercent(v.Volume)),
	)
	return e.SetFooter(strings.Join(footer, " • ")).MessageEmbed
}

func historyEmbed(records []storage.TrackHistoryRecord) *discordgo.MessageEmbed {
	e := embed.NewEmbed().
		SetColor(EmbedColor).
		SetTitle("🕘 Recently Played")

	var b strings.Builder
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		title := r.Title
		if r.URL != "" {
			title = fmt.Sprintf("[%s](%s)", r.Title, r.URL)
		}
		fmt.Fprintf(&b, "`%d.` %s", len(records)-i, title)
		if r.RequesterID != "" {
			fmt.Fprintf(&b, " • <@%s>", r.RequesterID)
		}
		if !r.PlayedAt.IsZero() {
			fmt.Fprintf(&b, " • <t:%d:R>", r.PlayedAt.Unix())
		}
		b.WriteString("\n")
	}
	return e.SetDescription(b.String()).MessageEmbed
}

func errorEmbed(message string) *discordgo.MessageEmbed {
	return embed.NewEmbed().
		SetColor(EmbedColor).
		SetDescription(message).
		MessageEmbed
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func volumePercent(fraction float64) int {
	return int(math.Round(fraction * 100))
}
