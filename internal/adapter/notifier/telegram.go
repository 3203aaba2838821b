package notifier

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/custos/internal/config"
)

// Sender is the part of the bot API used for notifications.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Logger interface {
	Errorf(template string, args ...interface{})
}

// Telegram reports job outcomes to a chat. Failures are always sent;
// successes only when NotifySuccess is set.
type Telegram struct {
	sender        Sender
	chatID        int64
	notifySuccess bool
	logger        Logger
	now           func() time.Time
}

func NewTelegram(cfg *config.TelegramConfig, logger Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewTelegramWithSender(bot, cfg.ChatID, cfg.NotifySuccess, logger), nil
}

func NewTelegramWithSender(sender Sender, chatID int64, notifySuccess bool, logger Logger) *Telegram {
	return &Telegram{
		sender:        sender,
		chatID:        chatID,
		notifySuccess: notifySuccess,
		logger:        logger,
		now:           time.Now,
	}
}

func (t *Telegram) RecordJobStarted(jobID, strategy string) {}

func (t *Telegram) RecordJobCompleted(jobID string, durationSeconds float64, totalBytes int64) {
	if !t.notifySuccess {
		return
	}
	t.send(completedMessage(jobID, durationSeconds, totalBytes, t.now()))
}

func (t *Telegram) RecordJobFailed(jobID, errorMessage string) {
	t.send(failedMessage(jobID, errorMessage, t.now()))
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.sender.Send(msg); err != nil {
		t.logger.Errorf("Failed to send telegram notification: %v", err)
	}
}

func completedMessage(jobID string, durationSeconds float64, totalBytes int64, at time.Time) string {
	return fmt.Sprintf(
		"✅ Backup Completed\n\n"+
			"📁 Job: %s\n"+
			"📊 Size: %.2f MB\n"+
			"⏱ Duration: %.1fs\n"+
			"🕐 Time: %s",
		jobID,
		float64(totalBytes)/(1024*1024),
		durationSeconds,
		at.Format("2006-01-02 15:04:05"),
	)
}

func failedMessage(jobID, errorMessage string, at time.Time) string {
	if errorMessage == "" {
		errorMessage = "no engine produced a backup"
	}
	return fmt.Sprintf(
		"❌ Backup Failed\n\n"+
			"📁 Job: %s\n"+
			"⚠️ Error: %s\n"+
			"🕐 Time: %s",
		jobID,
		errorMessage,
		at.Format("2006-01-02 15:04:05"),
	)
}
