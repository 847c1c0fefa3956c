package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"content-factory/internal/domain"
	"content-factory/internal/infra/metrics"
)

// Telegram отправляет уведомления контент-завода в рабочий чат маркетинга.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

var _ domain.Notifier = (*Telegram)(nil)

// NewTelegram создаёт нотификатор для указанного чата.
func NewTelegram(bot *tgbotapi.BotAPI, chatID int64, logger zerolog.Logger) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, log: logger}
}

// NotifySchedule отправляет итоги прогона автопланировщика.
func (t *Telegram) NotifySchedule(ctx context.Context, result domain.ScheduleResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "🗓 Автопланирование %s\n", result.RunAt.Format("2006-01-02"))
	if len(result.Assignments) == 0 {
		b.WriteString("Размещать нечего: одобренных постов нет либо слоты заняты.\n")
	} else {
		fmt.Fprintf(&b, "Размещено постов: %d\n", len(result.Assignments))
		for _, a := range result.Assignments {
			fmt.Fprintf(&b, "• %s → %s\n", a.PostID, a.ScheduledDate.Format("2006-01-02"))
		}
	}
	if len(result.Unplaced) > 0 {
		fmt.Fprintf(&b, "⚠️ Не поместилось в окно: %d\n", len(result.Unplaced))
		for _, p := range result.Unplaced {
			fmt.Fprintf(&b, "• %s (%s)\n", p.ID, p.Channel)
		}
	}
	if len(result.Conflicts) > 0 {
		fmt.Fprintf(&b, "❗ Проблемы календаря: %d\n", len(result.Conflicts))
		for _, c := range result.Conflicts {
			fmt.Fprintf(&b, "• %s\n", c.Message)
		}
	}
	return t.send(b.String())
}

// NotifyReviewBacklog напоминает о постах, ждущих ревью.
func (t *Telegram) NotifyReviewBacklog(ctx context.Context, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👀 На ревью ждут %d постов:\n", len(posts))
	for _, p := range posts {
		fmt.Fprintf(&b, "• %s — %s / %s\n", p.ID, p.Channel, p.Format)
	}
	return t.send(b.String())
}

func (t *Telegram) send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	start := time.Now()
	_, err := t.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(t.chatID, 10), start, err)
	if err != nil {
		metrics.NotifierSendErrors.Inc()
		t.log.Error().Err(err).Msg("не удалось отправить сообщение в чат")
		return fmt.Errorf("отправка сообщения: %w", err)
	}
	return nil
}
