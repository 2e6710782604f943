package telegram

import (
	"net"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/funnelbot/core/config"
)

const defaultLongPoll = 10 * time.Second

// allowedUpdates limits delivery to what the bot routes: messages (text,
// commands, contacts) and inline button presses.
var allowedUpdates = []string{"message", "callback_query"}

// longPollTimeout is the getUpdates timeout, zero in webhook mode. cfg is
// expected to be normalized.
func longPollTimeout(cfg *coreconfig.Config) time.Duration {
	switch {
	case cfg.Telegram.RunMode == coreconfig.RunModeWebhook:
		return 0
	case cfg.Telegram.LongPollTimeoutSeconds > 0:
		return time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	}
	return defaultLongPoll
}

// newPoller picks the update source for the configured run mode.
func newPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			AllowedUpdates: allowedUpdates,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: longPollTimeout(cfg), AllowedUpdates: allowedUpdates}
}
