package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NewBotAPI authorizes against Telegram with token.
func NewBotAPI(token string, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorize: %w", err)
	}
	bot.Debug = false
	logger.Info("telegram bot authorized", "account", bot.Self.UserName)
	return bot, nil
}

// updatesAPI is botAPI plus long polling.
type updatesAPI interface {
	botAPI
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// CommandListener answers /start and /id with the caller's chat id, which an
// admin then registers on the staff member (admin add-staff -telegram <id>).
type CommandListener struct {
	bot    updatesAPI
	logger *slog.Logger
}

func NewCommandListener(bot updatesAPI, logger *slog.Logger) *CommandListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandListener{bot: bot, logger: logger}
}

// Run polls for updates until ctx is cancelled.
func (l *CommandListener) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := l.bot.GetUpdatesChan(u)
	defer l.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			l.handle(update)
		}
	}
}

func (l *CommandListener) handle(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	switch msg.Command() {
	case "start", "id":
		chatID := msg.Chat.ID
		reply := tgbotapi.NewMessage(chatID,
			"Seu chat id é <code>"+strconv.FormatInt(chatID, 10)+"</code>. Informe-o ao administrador para receber notificações de denúncias.")
		reply.ParseMode = tgbotapi.ModeHTML
		if _, err := l.bot.Send(reply); err != nil {
			l.logger.Warn("telegram reply failed", "chat_id", chatID, "error", err)
		}
	}
}
