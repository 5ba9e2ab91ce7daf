package bot

import (
	"github.com/gofiber/fiber/v2/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/startunnel/StarTunnel/app/repository"
	"github.com/startunnel/StarTunnel/internal/pkg/payment"
	"github.com/startunnel/StarTunnel/internal/pkg/subscription"
)

// Bot is the Telegram transport over the subscription lifecycle core. It
// translates commands, callbacks and payment updates into core operations
// and sends the core's outcome messages back to the user.
type Bot struct {
	api           *tgbotapi.BotAPI
	repo          repository.UserAccountRepository
	engine        *subscription.Engine
	intake        *payment.Intake
	providerToken string
	adminIDs      map[int64]bool
}

// Config carries everything the transport needs besides the core services.
type Config struct {
	Token         string
	ProviderToken string
	AdminIDs      []int64
}

// New connects to the Telegram Bot API and wires the transport.
func New(cfg Config, repo repository.UserAccountRepository, engine *subscription.Engine, intake *payment.Intake) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	admins := make(map[int64]bool, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = true
	}

	return &Bot{
		api:           api,
		repo:          repo,
		engine:        engine,
		intake:        intake,
		providerToken: cfg.ProviderToken,
		adminIDs:      admins,
	}, nil
}

// Run processes updates until the channel closes.
func (b *Bot) Run() {
	log.Infof("[Bot] Authorized as @%s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for update := range updates {
		if update.PreCheckoutQuery != nil {
			b.handlePreCheckout(update.PreCheckoutQuery)
			continue
		}

		if msg := update.Message; msg != nil {
			b.handleMessage(msg)
			continue
		}

		if cq := update.CallbackQuery; cq != nil && cq.Message != nil {
			b.handleCallback(cq)
		}
	}
}

// Stop ends the update loop.
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

// Notify implements the sweeper's notifier over Telegram.
func (b *Bot) Notify(userID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(userID, text))
	return err
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.adminIDs[userID]
}

// ack answers a callback query, optionally with a popup alert.
func (b *Bot) ack(cq *tgbotapi.CallbackQuery, text string, alert bool) {
	cb := tgbotapi.NewCallback(cq.ID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(cq.ID, text)
	}
	if _, err := b.api.Request(cb); err != nil {
		log.Debugf("[Bot] callback answer failed: %v", err)
	}
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Errorf("[Bot] send to %d failed: %v", chatID, err)
	}
}

func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		log.Errorf("[Bot] send to %d failed: %v", chatID, err)
	}
}

// deleteMessage removes a message best-effort; the user may have deleted it
// themselves already.
func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.Debugf("[Bot] delete message %d in chat %d failed: %v", messageID, chatID, err)
	}
}

func displayName(from *tgbotapi.User) string {
	if from == nil {
		return ""
	}
	if from.UserName != "" {
		return from.UserName
	}
	return from.FirstName
}
