package notifier

import (
	"fmt"
	"net/http"
)

// Telegram 把下单/成交/撤单/升级/离场等交易事件推送至指定群/频道。
type Telegram struct {
	BotToken string
	ChatID   string
	Client   *http.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{BotToken: botToken, ChatID: chatID, Client: newPostClient()}
}

func (t *Telegram) SendText(text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("Telegram 配置不完整")
	}
	return postJSON(t.Client, "telegram",
		fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.BotToken),
		map[string]any{
			"chat_id":    t.ChatID,
			"text":       text,
			"parse_mode": "Markdown",
		})
}
