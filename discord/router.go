package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/eraiza0816/logawa/logging"
)

// fallbackOrder lists, per category, the channels tried when the preferred
// one is unavailable. After these, any configured channel is used.
var fallbackOrder = map[logging.Category][]logging.Category{
	logging.CategoryModeration:     {logging.CategoryStatus, logging.CategoryMessages},
	logging.CategoryForbiddenWords: {logging.CategoryMessages, logging.CategoryStatus},
	logging.CategoryStatus:         {logging.CategoryMessages},
	logging.CategoryMessages:       {logging.CategoryStatus},
}

// DeliveryRouter sends log embeds to the Discord channel bound to a
// category, falling back through a fixed priority order when the preferred
// channel is not configured. Delivery never raises to the caller: with no
// channel available at all, the embed is dropped with a warning.
type DeliveryRouter struct {
	diag     zerolog.Logger
	sender   ChannelSender
	channels map[logging.Category]string
}

// NewDeliveryRouter builds a router over the configured category→channel
// mapping. Call Initialize once the session is open to verify the channels.
func NewDeliveryRouter(diag zerolog.Logger, sender ChannelSender, channels map[logging.Category]string) *DeliveryRouter {
	verified := make(map[logging.Category]string, len(channels))
	for category, id := range channels {
		if id != "" {
			verified[category] = id
		}
	}
	return &DeliveryRouter{
		diag:     diag.With().Str("component", "router").Logger(),
		sender:   sender,
		channels: verified,
	}
}

// Initialize resolves every configured channel and drops the ones the bot
// cannot see. Returns the number of usable channels.
func (r *DeliveryRouter) Initialize() int {
	for category, id := range r.channels {
		if _, err := r.sender.Channel(id); err != nil {
			r.diag.Error().Err(err).
				Str("category", string(category)).
				Str("channel_id", id).
				Msg("log channel unavailable, dropped from routing")
			delete(r.channels, category)
			continue
		}
		r.diag.Info().
			Str("category", string(category)).
			Str("channel_id", id).
			Msg("log channel initialized")
	}
	return len(r.channels)
}

// Deliver sends the embed to the category's channel or the best fallback.
func (r *DeliveryRouter) Deliver(embed *discordgo.MessageEmbed, category logging.Category) {
	channelID, routed := r.resolve(category)
	if channelID == "" {
		r.diag.Warn().
			Str("category", string(category)).
			Msg("no log channel available, delivery dropped")
		return
	}
	if _, err := r.sender.ChannelMessageSendEmbed(channelID, embed); err != nil {
		r.diag.Error().Err(err).
			Str("category", string(category)).
			Str("channel_id", channelID).
			Msg("failed to send log embed")
		return
	}
	if routed != category {
		r.diag.Warn().
			Str("category", string(category)).
			Str("routed", string(routed)).
			Msg("log delivered to fallback channel")
	}
}

// resolve picks the channel for a category: preferred, then the category's
// fallback chain, then any configured channel.
func (r *DeliveryRouter) resolve(category logging.Category) (string, logging.Category) {
	if id, ok := r.channels[category]; ok {
		return id, category
	}
	for _, fallback := range fallbackOrder[category] {
		if id, ok := r.channels[fallback]; ok {
			return id, fallback
		}
	}
	for _, any := range logging.Categories() {
		if id, ok := r.channels[any]; ok {
			return id, any
		}
	}
	return "", category
}
