package notify

import (
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"swap_bot/internal/models"
	"swap_bot/internal/modules/config"
	"swap_bot/pkg/logger"
)

// Telegram — пассивный нотифайер оператора. Получает только критичные для
// безопасности события: инвалидация ключей, принудительное закрытие,
// неудавшийся TP/SL.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(cfg *config.Config) (*Telegram, error) {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		// Без токена работаем молча: критичные события остаются в логе.
		return &Telegram{}, nil
	}
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: cfg.Telegram.ChatID}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Error("telegram send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Emit — подписка на общий поток: пропускаем всё, кроме error-событий.
func (t *Telegram) Emit(event string, payload any) {
	if event != models.EventError {
		return
	}
	if n, ok := payload.(models.NoticeEvent); ok {
		t.Sendf("[bot] %s", n.Message)
	}
}
