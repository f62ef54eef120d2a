package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/eraiza0816/logawa/logging"
)

// setupHandlers registers the guild-event handlers. Each handler turns the
// event into a log entry (recorded locally and queued for remote sync) and a
// rich embed delivered through the router. Handlers never fail: the logging
// pipeline swallows its own errors.
func setupHandlers(s *discordgo.Session, lctx *logging.LoggingContext, router *DeliveryRouter) {
	s.AddHandler(func(s *discordgo.Session, event *discordgo.Ready) {
		onReady(s, event, lctx, router)
	})
	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.ID == s.State.User.ID {
			return
		}
		logMessageEvent(lctx, router, m.Message, "sent")
	})
	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageUpdate) {
		if m.Author == nil || m.Author.ID == s.State.User.ID {
			return
		}
		logMessageEvent(lctx, router, m.Message, "edited")
	})
	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageDelete) {
		logMessageDelete(lctx, router, m)
	})
	s.AddHandler(func(s *discordgo.Session, e *discordgo.GuildMemberAdd) {
		logMemberEvent(lctx, router, e.Member, "join", colorGreen)
	})
	s.AddHandler(func(s *discordgo.Session, e *discordgo.GuildMemberRemove) {
		logMemberEvent(lctx, router, e.Member, "leave", colorOrange)
	})
	s.AddHandler(func(s *discordgo.Session, e *discordgo.GuildBanAdd) {
		logBanEvent(lctx, router, e.User, "ban")
	})
	s.AddHandler(func(s *discordgo.Session, e *discordgo.GuildBanRemove) {
		logBanEvent(lctx, router, e.User, "unban")
	})
	s.AddHandler(func(s *discordgo.Session, e *discordgo.ChannelCreate) {
		logChannelEvent(lctx, router, e.Channel, "created")
	})
	s.AddHandler(func(s *discordgo.Session, e *discordgo.ChannelDelete) {
		logChannelEvent(lctx, router, e.Channel, "deleted")
	})
}

func onReady(s *discordgo.Session, event *discordgo.Ready, lctx *logging.LoggingContext, router *DeliveryRouter) {
	lctx.Diag.Info().
		Str("user", event.User.Username).
		Int("guilds", len(event.Guilds)).
		Msg("bot is ready")

	message := fmt.Sprintf("Bot status: ready as %s", event.User.Username)
	entry := logging.NewEntry(logging.LevelInfo, logging.CategoryStatus, message, map[string]any{
		"logType": string(logging.CategoryStatus),
		"source":  "logawa-bot",
		"guilds":  len(event.Guilds),
	})
	lctx.Record(entry)

	embed := newLogEmbed("Bot Status: Ready", message, colorGreen,
		embedField("Status", "READY", true),
		embedField("Timestamp", entry.Timestamp.Format(logging.TimeLayout), true),
	)
	router.Deliver(embed, logging.CategoryStatus)
}

func logMessageEvent(lctx *logging.LoggingContext, router *DeliveryRouter, m *discordgo.Message, action string) {
	message := fmt.Sprintf("Message %s: %s in #%s", action, m.Author.Username, m.ChannelID)
	entry := logging.NewEntry(logging.LevelInfo, logging.CategoryMessages, message, map[string]any{
		"logType":   string(logging.CategoryMessages),
		"source":    "logawa-bot",
		"messageId": m.ID,
		"authorId":  m.Author.ID,
		"channelId": m.ChannelID,
		"content":   truncate(m.Content, 100),
	})
	lctx.Record(entry)

	embed := newLogEmbed(
		fmt.Sprintf("Message %s", titleCase(action)),
		fmt.Sprintf("**Channel:** <#%s>\n**Author:** %s (%s)", m.ChannelID, m.Author.Username, m.Author.ID),
		colorGreen,
		embedField("Content", m.Content, false),
		embedField("Message ID", m.ID, true),
		embedField("Timestamp", entry.Timestamp.Format(logging.TimeLayout), true),
	)
	router.Deliver(embed, logging.CategoryMessages)
}

func logMessageDelete(lctx *logging.LoggingContext, router *DeliveryRouter, m *discordgo.MessageDelete) {
	message := fmt.Sprintf("Message deleted in channel %s", m.ChannelID)
	entry := logging.NewEntry(logging.LevelInfo, logging.CategoryMessages, message, map[string]any{
		"logType":   string(logging.CategoryMessages),
		"source":    "logawa-bot",
		"messageId": m.ID,
		"channelId": m.ChannelID,
		// Deleted message content is usually gone from the cache.
		"content": nil,
	})
	lctx.Record(entry)

	embed := newLogEmbed("Message Deleted",
		fmt.Sprintf("**Channel:** <#%s>", m.ChannelID),
		colorRed,
		embedField("Message ID", m.ID, true),
		embedField("Timestamp", entry.Timestamp.Format(logging.TimeLayout), true),
	)
	router.Deliver(embed, logging.CategoryMessages)
}

func logMemberEvent(lctx *logging.LoggingContext, router *DeliveryRouter, member *discordgo.Member, action string, color int) {
	if member == nil || member.User == nil {
		return
	}
	message := fmt.Sprintf("Member %s: %s", action, member.User.Username)
	entry := logging.NewEntry(logging.LevelInfo, logging.CategoryStatus, message, map[string]any{
		"logType": string(logging.CategoryStatus),
		"source":  "logawa-bot",
		"userId":  member.User.ID,
		"action":  action,
	})
	lctx.Record(entry)

	embed := newLogEmbed(
		fmt.Sprintf("Member %s", titleCase(action)),
		fmt.Sprintf("**Member:** %s (%s)", member.User.Username, member.User.ID),
		color,
		embedField("Action", action, true),
		embedField("Timestamp", entry.Timestamp.Format(logging.TimeLayout), true),
	)
	router.Deliver(embed, logging.CategoryStatus)
}

func logBanEvent(lctx *logging.LoggingContext, router *DeliveryRouter, user *discordgo.User, action string) {
	if user == nil {
		return
	}
	message := fmt.Sprintf("Moderation action: %s on %s", action, user.Username)
	entry := logging.NewEntry(logging.LevelInfo, logging.CategoryModeration, message, map[string]any{
		"logType": string(logging.CategoryModeration),
		"source":  "logawa-bot",
		"userId":  user.ID,
		"action":  action,
	})
	lctx.Record(entry)

	color, ok := moderationColors[action]
	if !ok {
		color = colorGreen
	}
	embed := newLogEmbed(
		fmt.Sprintf("User %s", titleCase(action)),
		fmt.Sprintf("**User:** %s (%s)", user.Username, user.ID),
		color,
		embedField("Action", action, true),
		embedField("Timestamp", entry.Timestamp.Format(logging.TimeLayout), true),
	)
	router.Deliver(embed, logging.CategoryModeration)
}

func logChannelEvent(lctx *logging.LoggingContext, router *DeliveryRouter, channel *discordgo.Channel, action string) {
	if channel == nil {
		return
	}
	message := fmt.Sprintf("Channel %s: #%s", action, channel.Name)
	entry := logging.NewEntry(logging.LevelInfo, logging.CategoryStatus, message, map[string]any{
		"logType":   string(logging.CategoryStatus),
		"source":    "logawa-bot",
		"channelId": channel.ID,
		"action":    action,
	})
	lctx.Record(entry)

	embed := newLogEmbed(
		fmt.Sprintf("Channel %s", titleCase(action)),
		fmt.Sprintf("**Channel:** #%s (%s)", channel.Name, channel.ID),
		colorBlue,
		embedField("Action", action, true),
		embedField("Timestamp", entry.Timestamp.Format(logging.TimeLayout), true),
	)
	router.Deliver(embed, logging.CategoryStatus)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func titleCase(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-('a'-'A')) + s[1:]
}
