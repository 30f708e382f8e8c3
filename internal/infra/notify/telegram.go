package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hotelops/backend/internal/domain/items"
)

// Alerter posts stock alerts to an admin Telegram chat. A nil *Alerter is
// a no-op so callers can fire alerts unconditionally.
type Alerter struct {
	api  *tgbotapi.BotAPI
	chat int64
	log  *slog.Logger
}

func NewAlerter(token string, chatID int64, log *slog.Logger) (*Alerter, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Alerter{api: api, chat: chatID, log: log}, nil
}

// LowStock sends an alert when the item's status is below ok. Delivery is
// best-effort; a failed send is logged, never returned.
func (a *Alerter) LowStock(it *items.Item) {
	if a == nil || it == nil {
		return
	}
	st := it.Status()
	if st == items.StatusOK {
		return
	}

	available := it.Buckets.Current
	if it.Kind == items.KindLinen {
		available = it.Buckets.Clean
	}
	text := fmt.Sprintf("⚠️ %s (%s): %s, available %.2f", it.Name, it.Code, st, available)

	if _, err := a.api.Send(tgbotapi.NewMessage(a.chat, text)); err != nil {
		a.log.Warn("stock alert failed", "item_id", it.ID, "err", err)
	}
}
