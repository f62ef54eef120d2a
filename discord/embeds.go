package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

const embedFooter = "LOGAWA Logger Bot"

const (
	colorGreen  = 0x00ff00
	colorRed    = 0xff0000
	colorOrange = 0xffa500
	colorYellow = 0xffff00
	colorBlue   = 0x0099ff
)

// moderationColors maps moderation actions to their embed color.
var moderationColors = map[string]int{
	"kick":        colorOrange,
	"ban":         colorRed,
	"unban":       colorGreen,
	"timeout":     colorYellow,
	"role_add":    colorGreen,
	"role_remove": colorOrange,
}

func newLogEmbed(title, description string, color int, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: embedFooter},
	}
}

func embedField(name, value string, inline bool) *discordgo.MessageEmbedField {
	if value == "" {
		value = "No content"
	}
	// Discord の Embed Field Value の最大文字数
	const maxFieldLength = 1024
	if len(value) > maxFieldLength {
		value = value[:maxFieldLength]
	}
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline}
}
