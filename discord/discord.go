package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/eraiza0816/logawa/config"
	"github.com/eraiza0816/logawa/logging"
)

// StartBot opens the gateway session, registers the guild-event handlers and
// initializes the delivery router against the configured log channels.
// The caller owns the returned session and must Close it on shutdown.
func StartBot(cfg *config.Config, lctx *logging.LoggingContext) (*discordgo.Session, *DeliveryRouter, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	router := NewDeliveryRouter(lctx.Diag, session, cfg.ChannelIDs())
	setupHandlers(session, lctx, router)

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent

	if err := session.Open(); err != nil {
		return nil, nil, fmt.Errorf("failed to open Discord session: %w", err)
	}

	if router.Initialize() == 0 {
		lctx.Diag.Warn().Msg("no log channels could be initialized, continuing with file logging only")
	}
	return session, router, nil
}
