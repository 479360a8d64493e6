package notify

import (
	"encoding/json"
	"fmt"

	"tameer/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier pushes a short message to the managers' chats when
// a new request arrives, so triage does not depend on staff watching
// the dashboard.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramNotifier(token string, chatIDs []int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(chatIDs)).Msg("telegram notifier ready")
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, logger: logger}, nil
}

// AttachTo subscribes the notifier to request-created events on the
// store's change bus.
func (n *TelegramNotifier) AttachTo(bus *events.ChangeBus) *events.Subscription {
	return bus.Subscribe(events.EventRequestCreated, func(event *events.Event) error {
		var payload events.RequestEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			n.logger.Warn().Err(err).Msg("bad request event payload")
			return err
		}
		return n.NotifyNewRequest(&payload)
	})
}

// NotifyNewRequest sends the new-request summary to every manager chat.
// A failed chat does not block the others.
func (n *TelegramNotifier) NotifyNewRequest(payload *events.RequestEventPayload) error {
	text := fmt.Sprintf(
		"📥 طلب خدمة جديد\nرقم الطلب: %s\nالاسم: %s\nالولاية: %s\nنوع الخدمة: %s\nالأولوية: %s",
		payload.RequestID,
		payload.Name,
		payload.Location,
		payload.ServiceType,
		payload.Urgency,
	)

	var lastErr error
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("notify manager failed")
			lastErr = err
		}
	}
	return lastErr
}
