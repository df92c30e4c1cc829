package notify

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Telegram sends Markdown messages to one chat and answers /status there.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	status StatusSource
	log    *zap.Logger
}

func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "telegram bot")
	}
	return newTelegram(b, chatID, log), nil
}

func newTelegram(b *tgbot.BotAPI, chatID int64, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: b, chatID: chatID, log: log}
}

func (t *Telegram) SetStatusSource(s StatusSource) { t.status = s }

func (t *Telegram) Send(_ context.Context, msg string) error {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return nil
	}
	m := tgbot.NewMessage(t.chatID, msg)
	m.ParseMode = tgbot.ModeMarkdown
	if _, err := t.bot.Send(m); err != nil {
		return errors.Wrap(err, "telegram send")
	}
	return nil
}

// Start: long-polling for commands until ctx is done.
func (t *Telegram) Start(ctx context.Context) {
	if t == nil || t.bot == nil {
		return
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		defer t.bot.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				t.handle(ctx, upd)
			}
		}
	}()
}

func (t *Telegram) handle(ctx context.Context, upd tgbot.Update) {
	if upd.Message == nil || upd.Message.Chat == nil || upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
		return
	}
	switch strings.ToLower(upd.Message.Command()) {
	case "status":
		text := "status unavailable"
		if t.status != nil {
			text = t.status.Status()
		}
		if err := t.Send(ctx, text); err != nil {
			t.log.Warn("status reply failed", zap.Error(err))
		}
	}
}
