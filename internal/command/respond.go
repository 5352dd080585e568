package command

import (
	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
)

const EmbedColor = 0xb01e66

// NewEmbed starts an embed in the bot colour.
func NewEmbed(title, description string) *embed.Embed {
	return embed.NewEmbed().
		SetTitle(title).
		SetDescription(description).
		SetColor(EmbedColor)
}

// Defer acknowledges an interaction; the reply follows as a followup.
func Defer(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) error {
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	return s.InteractionRespond(i.Interaction, resp)
}

// RespondEmbedEphemeral replies immediately with an embed only the caller sees.
func RespondEmbedEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, e *discordgo.MessageEmbed) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:  discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{e},
		},
	})
}

// FollowupEmbed sends a public embed followup message.
func FollowupEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, e *discordgo.MessageEmbed) error {
	_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{e},
	})
	return err
}

// FollowupEmbedEphemeral sends an embed followup only the caller sees.
func FollowupEmbedEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, e *discordgo.MessageEmbed) error {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{e},
		Flags:  discordgo.MessageFlagsEphemeral,
	})
	return err
}

// MessageEmbed sends an embed to a channel outside any interaction.
func MessageEmbed(s *discordgo.Session, channelID string, e *discordgo.MessageEmbed) error {
	_, err := s.ChannelMessageSendEmbed(channelID, e)
	return err
}
