package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/lapis-music/internal/command"
)

var (
	_ command.Responder = (*interactionResponder)(nil)
	_ command.Responder = (*messageResponder)(nil)
)

// interactionResponder answers a slash interaction. The first answer is the
// interaction response; once deferred, answers edit the deferred response and
// later ones become followups.
type interactionResponder struct {
	s *discordgo.Session
	i *discordgo.InteractionCreate

	mu       sync.Mutex
	deferred bool
	answered bool
}

func (r *interactionResponder) Defer() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deferred || r.answered {
		return nil
	}
	r.deferred = true
	return r.s.InteractionRespond(r.i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func (r *interactionResponder) Embed(embed *discordgo.MessageEmbed) error {
	return r.send(&discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}})
}

func (r *interactionResponder) EmbedEphemeral(embed *discordgo.MessageEmbed) error {
	return r.send(&discordgo.InteractionResponseData{
		Flags:  discordgo.MessageFlagsEphemeral,
		Embeds: []*discordgo.MessageEmbed{embed},
	})
}

func (r *interactionResponder) Text(content string) error {
	return r.send(&discordgo.InteractionResponseData{Content: content})
}

func (r *interactionResponder) send(data *discordgo.InteractionResponseData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case !r.deferred && !r.answered:
		r.answered = true
		return r.s.InteractionRespond(r.i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: data,
		})
	case r.deferred && !r.answered:
		// A deferred response keeps its visibility, so the edit is public.
		r.answered = true
		edit := &discordgo.WebhookEdit{}
		if len(data.Embeds) > 0 {
			edit.Embeds = &data.Embeds
		}
		if data.Content != "" {
			edit.Content = &data.Content
		}
		_, err := r.s.InteractionResponseEdit(r.i.Interaction, edit)
		return err
	default:
		_, err := r.s.FollowupMessageCreate(r.i.Interaction, true, &discordgo.WebhookParams{
			Content: data.Content,
			Embeds:  data.Embeds,
			Flags:   data.Flags,
		})
		return err
	}
}

// messageResponder answers a prefix command by replying in the channel.
type messageResponder struct {
	s *discordgo.Session
	m *discordgo.MessageCreate
}

func (r *messageResponder) Defer() error {
	return r.s.ChannelTyping(r.m.ChannelID)
}

func (r *messageResponder) Embed(embed *discordgo.MessageEmbed) error {
	_, err := r.s.ChannelMessageSendComplex(r.m.ChannelID, &discordgo.MessageSend{
		Embeds:    []*discordgo.MessageEmbed{embed},
		Reference: r.m.Reference(),
	})
	return err
}

func (r *messageResponder) EmbedEphemeral(embed *discordgo.MessageEmbed) error {
	return r.Embed(embed)
}

func (r *messageResponder) Text(content string) error {
	_, err := r.s.ChannelMessageSendComplex(r.m.ChannelID, &discordgo.MessageSend{
		Content:   content,
		Reference: r.m.Reference(),
	})
	return err
}

// sendEmbed posts an embed to a channel outside of any command.
func sendEmbed(s *discordgo.Session, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := s.ChannelMessageSendEmbed(channelID, embed)
	return err
}
