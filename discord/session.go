package discord

import "github.com/bwmarrin/discordgo"

// ChannelSender defines the interface for discordgo session methods used by
// the delivery router. This allows for mocking the session in tests.
type ChannelSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// ensure discordgo.Session implements ChannelSender
var _ ChannelSender = (*discordgo.Session)(nil)
