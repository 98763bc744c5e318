package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends plain-text reminders to a linked Telegram chat.
type Notifier struct {
	bot botSender
}

func NewNotifier(token string) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: bot}, nil
}

func (n *Notifier) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}
