package notify

import (
	"log/slog"

	"github.com/foxseedlab/streamscribe/external/discord"
	"github.com/foxseedlab/streamscribe/external/webhook"
	"github.com/foxseedlab/streamscribe/internal/config"
	"github.com/foxseedlab/streamscribe/internal/notify"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (notify.Sender, error) {
		cfg := do.MustInvoke[*config.Config](i)
		var senders []notify.Sender
		if cfg.TranscriptWebhookURL != "" {
			senders = append(senders, webhook.NewHTTPSender(cfg.TranscriptWebhookURL))
		}
		if cfg.DiscordEnabled() {
			ds, err := discord.NewChannelSender(cfg.DiscordToken, cfg.DiscordChannelID)
			if err != nil {
				return nil, err
			}
			senders = append(senders, ds)
		}
		slog.Info("transcript notification configured", "senders", len(senders))
		return notify.NewMulti(senders...), nil
	})
}
