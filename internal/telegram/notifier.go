package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/camuig/pie-watch/internal/config"
	"github.com/camuig/pie-watch/internal/logger"
	"github.com/camuig/pie-watch/internal/metrics"
	"github.com/camuig/pie-watch/internal/portfolio"
)

type Notifier struct {
	bot      *tgbotapi.BotAPI
	chatID   int64
	currency string
	enabled  bool
	logger   *logger.Logger
}

func NewNotifier(cfg *config.Config, log *logger.Logger) *Notifier {
	if !cfg.Telegram.Enabled {
		return &Notifier{enabled: false, logger: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Notifier{enabled: false, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return &Notifier{
		bot:      bot,
		chatID:   cfg.Telegram.ChatID,
		currency: cfg.Trading212.Currency,
		enabled:  true,
		logger:   log,
	}
}

func (n *Notifier) Enabled() bool { return n.enabled }

func (n *Notifier) NotifyNewPie(r portfolio.Record) {
	n.send(newPieMessage(r, n.currency))
}

func (n *Notifier) NotifyError(context string, err error) {
	n.send(errorMessage(context, err))
}

func (n *Notifier) NotifyStatus(message string) {
	n.send(message)
}

func (n *Notifier) send(text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("send telegram message", "error", err)
	}
}

func newPieMessage(r portfolio.Record, currency string) string {
	name := tgbotapi.EscapeText(tgbotapi.ModeMarkdown, r.DisplayName())
	return fmt.Sprintf("🥧 *New pie* %s\nInvested: %s\nValue: %s\nResult: %+.2f%%",
		name,
		metrics.FormatAmount(r.Result.InvestedValue, currency),
		metrics.FormatAmount(r.Result.CurrentValue, currency),
		r.Result.ResultCoefficient*100)
}

func errorMessage(context string, err error) string {
	return fmt.Sprintf("⚠️ *Refresh failing* [%s]\n%s", context,
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, err.Error()))
}
