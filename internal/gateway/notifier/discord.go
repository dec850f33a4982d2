package notifier

import (
	"fmt"
	"net/http"
)

// Discord 通过 webhook 推送，与 Telegram 共用同一套重试策略。
type Discord struct {
	WebhookURL string
	Client     *http.Client
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{WebhookURL: webhookURL, Client: newPostClient()}
}

func (d *Discord) SendText(text string) error {
	if d.WebhookURL == "" {
		return fmt.Errorf("Discord webhook 未配置")
	}
	return postJSON(d.Client, "discord", d.WebhookURL, map[string]any{"content": text})
}
