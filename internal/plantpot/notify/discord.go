package notify

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"
)

// Discord posts notices as embeds to a Discord webhook
type Discord struct {
	client *webhook.Client
}

// NewDiscord creates a notifier for a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>
func NewDiscord(url string) (*Discord, error) {
	client, err := webhook.NewWithURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook client: %w", err)
	}
	return &Discord{client: client}, nil
}

// Name implements Notifier
func (d *Discord) Name() string { return "discord" }

// Notify implements Notifier
func (d *Discord) Notify(ctx context.Context, n Notice) error {
	builder := discord.NewEmbedBuilder().
		SetTitle(n.Title).
		SetDescription(n.Message).
		SetColor(colorFor(n.Kind)).
		SetTimestamp(n.Time).
		SetFooter("plantpot", "")
	for _, k := range sortedKeys(n.Fields) {
		builder.AddField(k, n.Fields[k], true)
	}

	if _, err := d.client.CreateEmbeds([]discord.Embed{builder.Build()}, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to send embed: %w", err)
	}
	return nil
}

func colorFor(kind Kind) int {
	switch kind {
	case KindRefill, KindPumpFailure:
		return 0xff0000
	case KindSkipped:
		return 0xffa500
	default:
		return 0x00ff00
	}
}
