package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/keshon/cordhost/internal/component"
)

// Embed colors per reply kind.
const (
	EmbedColor   = 0xb01e66
	SuccessColor = 0x2ecc71
	ErrorColor   = 0xe74c3c
)

// Embed renders a reply as a message embed.
func Embed(r *component.Reply) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       r.Title,
		Description: r.Text,
		Color:       EmbedColor,
	}
	switch r.Kind {
	case component.ReplySuccess:
		embed.Color = SuccessColor
	case component.ReplyError:
		embed.Color = ErrorColor
	}
	for _, f := range r.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}
	return embed
}
