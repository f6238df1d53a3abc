// Package telegram delivers staff notifications through the Telegram Bot API
// and answers the few commands staff need to link their chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"denuncia/backend/internal/localization"
	"denuncia/backend/internal/models"
	"denuncia/backend/internal/notify"
)

// botAPI is the part of *tgbotapi.BotAPI the package uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender implements notify.Sender. Recipients without a Telegram chat id are
// skipped.
type Sender struct {
	bot       botAPI
	localizer *localization.Localizer
	lang      string
	location  *time.Location
	logger    *slog.Logger
}

type Option func(*Sender)

func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) {
		s.logger = l
	}
}

func WithLanguage(lang string) Option {
	return func(s *Sender) {
		s.lang = lang
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Sender) {
		s.location = loc
	}
}

func NewSender(bot botAPI, l *localization.Localizer, opts ...Option) *Sender {
	s := &Sender{
		bot:       bot,
		localizer: l,
		lang:      localization.DefaultLanguage,
		location:  time.Local,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sender) Name() string { return "telegram" }

// Send messages every recipient with a chat id and joins the failures.
func (s *Sender) Send(ctx context.Context, n notify.Notification) error {
	text := s.Render(n)
	var errs []error
	for _, r := range n.Recipients {
		if r.TelegramChatID == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		msg := tgbotapi.NewMessage(*r.TelegramChatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := s.bot.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("staff %d: %w", r.ID, err))
			continue
		}
		s.logger.Debug("telegram notification sent", "staff_id", r.ID, "protocol", n.Complaint.Protocol)
	}
	return errors.Join(errs...)
}

// Render builds the HTML message body for n.
func (s *Sender) Render(n notify.Notification) string {
	c := n.Complaint
	at := c.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}
	when := at.In(s.location).Format(models.DisplayTimeLayout)

	switch n.Kind {
	case notify.KindStatusChanged:
		text := s.localizer.Format(s.lang, "notify.status_changed",
			html.EscapeString(c.Protocol),
			html.EscapeString(s.status(n.Previous)),
			html.EscapeString(s.status(c.Status)),
			when,
		)
		if c.Status == models.StatusConcluded && strings.TrimSpace(c.ResolutionNote) != "" {
			text += "\n" + s.localizer.Format(s.lang, "notify.resolution", html.EscapeString(c.ResolutionNote))
		}
		return text
	default:
		categories := c.CategoriesLabel
		if categories == "" {
			categories = s.localizer.GetString(s.lang, "categories.none")
		}
		return s.localizer.Format(s.lang, "notify.new_complaint",
			html.EscapeString(c.Protocol),
			html.EscapeString(categories),
			html.EscapeString(s.priority(c.Priority)),
			when,
		)
	}
}

func (s *Sender) status(st models.Status) string {
	if v, ok := s.localizer.Lookup(s.lang, "status."+string(st)); ok {
		return v
	}
	return st.Label()
}

func (s *Sender) priority(p models.Priority) string {
	if p == "" {
		return s.localizer.GetString(s.lang, "priority.none")
	}
	return s.localizer.GetString(s.lang, "priority."+string(p))
}
