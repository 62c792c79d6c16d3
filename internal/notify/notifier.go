package notify

import (
	"context"
	"fmt"
	"strings"

	"coinbase_bot/internal/models"
	"coinbase_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// StatusProvider отдаёт снимки состояния для команды /status.
type StatusProvider interface {
	Snapshots() []models.StateSnapshot
}

// Telegram пассивный нотифайер + команды /status и /help.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	status StatusProvider
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

// SetStatusProvider подключается после сборки раннера.
func (t *Telegram) SetStatusProvider(p StatusProvider) { t.status = p }

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Warn("[TG] send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

func (t *Telegram) handleStatus() {
	if t.status == nil {
		t.Send("❗️ Раннер ещё не запущен")
		return
	}
	t.Send(FormatStatus(t.status.Snapshots()))
}

// FormatStatus текст для /status и ежедневной сводки.
func FormatStatus(snaps []models.StateSnapshot) string {
	if len(snaps) == 0 {
		return "📭 Нет активных символов"
	}
	var b strings.Builder
	b.WriteString("📊 Состояние:\n")
	for _, s := range snaps {
		fmt.Fprintf(&b, "- %s [%s] price=%.6f ref=%.6f trades=%d profit=%.2f\n",
			s.Symbol, s.Phase, s.LastPrice, s.ReferencePrice, s.TotalTrades, s.TotalProfit)
		if s.LastDecision != "" {
			fmt.Fprintf(&b, "    %s\n", s.LastDecision)
		}
	}
	return b.String()
}

// Start: long-polling для команд из своего чата.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "status":
					go t.handleStatus()
				case "help", "start":
					t.Send("Команды: /status: цены, опорные цены и сделки по символам")
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	if t != nil && t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
}

// Stdout заглушка без Telegram, всё пишет в лог.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { logger.Info("%s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { logger.Info(format, args...) }
