package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/startunnel/StarTunnel/internal/pkg/payment"
	"github.com/startunnel/StarTunnel/internal/pkg/subscription"
)

const maxMessageLength = 4096

const welcomeText = "👋 Hi! Welcome to the Outline VPN Purchase Bot!\n\n" +
	"This bot allows you to purchase VPN access via subscription using Telegram Stars.\n\n" +
	"Choose an option below:"

const infoText = "📖 Instructions for using the Outline VPN Purchase Bot:\n\n" +
	"<b>Purchase VPN access:</b>\n" +
	"1. Press the '💳 Payment' button to choose a subscription duration and complete payment using Telegram Stars.\n" +
	"2. After successful payment, your subscription will activate and you can access the VPN.\n" +
	"   Note: A valid subscription is required to access the VPN."

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.SuccessfulPayment != nil {
		b.handleSuccessfulPayment(msg)
		return
	}

	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start":
		reply := tgbotapi.NewMessage(msg.Chat.ID, welcomeText)
		reply.ParseMode = tgbotapi.ModeHTML
		reply.ReplyMarkup = mainMenuKeyboard()
		if _, err := b.api.Send(reply); err != nil {
			log.Errorf("[Bot] start reply failed: %v", err)
		}
	case "admin":
		if !b.isAdmin(msg.From.ID) {
			b.send(msg.Chat.ID, "Access Denied")
			return
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Admin Panel:")
		reply.ReplyMarkup = adminKeyboard()
		if _, err := b.api.Send(reply); err != nil {
			log.Errorf("[Bot] admin reply failed: %v", err)
		}
	}
}

func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	data := cq.Data

	if strings.HasPrefix(data, "pay_sub_") {
		b.handleDurationSelected(cq, strings.TrimPrefix(data, "pay_sub_"))
		return
	}

	switch data {
	case "menu_get_vpn":
		b.handleAccessRequest(cq)
	case "menu_info":
		b.ack(cq, "", false)
		b.sendHTML(cq.From.ID, infoText)
	case "menu_settings":
		b.handleSettings(cq)
	case "menu_payments":
		b.handlePaymentMenu(cq)
	case "subscription_selection_cancel":
		b.deleteMessage(cq.From.ID, cq.Message.MessageID)
		b.ack(cq, "", false)
	case "subscription_cancel":
		b.handleInvoiceCancel(cq)
	case "admin_stats":
		b.handleAdminStats(cq)
	case "admin_users":
		b.handleAdminUsers(cq)
	case "admin_close":
		b.ack(cq, "Admin panel closed.", false)
		b.deleteMessage(cq.From.ID, cq.Message.MessageID)
	}
}

// handleAccessRequest serves the "get VPN" button through the lifecycle
// engine's access-request transition.
func (b *Bot) handleAccessRequest(cq *tgbotapi.CallbackQuery) {
	userID := cq.From.ID
	access, err := b.engine.RequestAccess(context.Background(), userID, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrNoSubscription):
			b.ack(cq, "❌ Please purchase VPN access first.", true)
		case errors.Is(err, subscription.ErrSubscriptionExpired):
			b.ack(cq, "Your subscription has expired. Please purchase a new subscription.", true)
		case errors.Is(err, subscription.ErrTemporarilyUnavailable):
			b.ack(cq, "", false)
			b.send(userID, "❌ Failed to create VPN access. Please try again later.")
		default:
			log.Errorf("[Bot] access request for user %d failed: %v", userID, err)
			b.ack(cq, "Something went wrong. Please try again later.", true)
		}
		return
	}

	b.ack(cq, "", false)
	text := fmt.Sprintf("🔑 Your VPN access:\n<pre>%s</pre>\n\nSubscription valid until %s UTC.",
		access.Credential.AccessURL, access.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
	b.sendHTML(userID, text)
}

func (b *Bot) handleSettings(cq *tgbotapi.CallbackQuery) {
	now := time.Now().UTC()
	var info string

	account, err := b.repo.GetByUserID(cq.From.ID)
	switch {
	case err != nil || account.SubscriptionExpiry == nil:
		info = "No subscription active. Please purchase a subscription to get VPN access."
	case account.IsActiveAt(now):
		info = fmt.Sprintf("Subscription active until %s UTC.", account.SubscriptionExpiry.UTC().Format("2006-01-02 15:04:05"))
	default:
		info = fmt.Sprintf("Subscription expired on %s UTC.", account.SubscriptionExpiry.UTC().Format("2006-01-02 15:04:05"))
	}

	b.ack(cq, "", false)
	b.send(cq.From.ID, "⚙ Bot Settings:\n\n"+info)
}

func (b *Bot) handlePaymentMenu(cq *tgbotapi.CallbackQuery) {
	now := time.Now().UTC()
	if account, err := b.repo.GetByUserID(cq.From.ID); err == nil && account.IsActiveAt(now) {
		b.ack(cq, "You already have an active subscription. To extend, choose a duration.", true)
	} else {
		b.ack(cq, "", false)
	}

	reply := tgbotapi.NewMessage(cq.From.ID, "💳 Choose subscription duration for VPN access:")
	reply.ReplyMarkup = durationKeyboard()
	if _, err := b.api.Send(reply); err != nil {
		log.Errorf("[Bot] payment menu failed: %v", err)
	}
}

// handleDurationSelected sends a Stars invoice for the chosen duration.
func (b *Bot) handleDurationSelected(cq *tgbotapi.CallbackQuery, raw string) {
	userID := cq.From.ID

	if b.intake.Invoices().Has(userID) {
		b.ack(cq, "You already have a pending invoice. Please complete or cancel it before creating a new one.", true)
		return
	}

	months, err := strconv.Atoi(raw)
	if err != nil {
		b.ack(cq, "Invalid subscription period.", true)
		return
	}

	payload, err := payment.BuildPayload(months)
	if err != nil {
		b.ack(cq, "Unknown subscription period.", true)
		return
	}
	price := payment.Prices[months]

	b.ack(cq, "", false)

	invoice := tgbotapi.NewInvoice(userID,
		"VPN Subscription Purchase",
		fmt.Sprintf("%d month(s) of VPN access subscription.", months),
		payload,
		b.providerToken,
		"vpn_subscription",
		"XTR",
		[]tgbotapi.LabeledPrice{{Label: fmt.Sprintf("%d month subscription", months), Amount: price}},
	)
	invoice.ReplyMarkup = invoiceKeyboard(price)

	sent, err := b.api.Send(invoice)
	if err != nil {
		log.Errorf("[Bot] invoice for user %d failed: %v", userID, err)
		b.send(userID, fmt.Sprintf("Error creating invoice: %v", err))
		return
	}

	if err := b.intake.Invoices().Add(userID, sent.MessageID); err != nil {
		// Lost a double-tap race; retract the second invoice.
		b.deleteMessage(userID, sent.MessageID)
	}
}

// handleInvoiceCancel retracts a pending invoice. The visible message is
// deleted best-effort; a failed delete never blocks the cancellation.
func (b *Bot) handleInvoiceCancel(cq *tgbotapi.CallbackQuery) {
	messageID, ok := b.intake.Invoices().Pop(cq.From.ID)
	if !ok {
		b.ack(cq, "No pending invoice to cancel.", true)
		return
	}
	b.deleteMessage(cq.From.ID, messageID)
	b.ack(cq, "Invoice canceled.", false)
}

func (b *Bot) handlePreCheckout(pcq *tgbotapi.PreCheckoutQuery) {
	ans := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: pcq.ID,
		OK:                 true,
	}
	if _, err := b.api.Request(ans); err != nil {
		log.Errorf("[Bot] precheckout answer failed: %v", err)
	}
}

func (b *Bot) handleSuccessfulPayment(msg *tgbotapi.Message) {
	sp := msg.SuccessfulPayment
	userID := msg.From.ID

	expiry, err := b.intake.HandleSuccessfulPayment(userID, displayName(msg.From), sp.InvoicePayload, sp.TotalAmount, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidPayload),
			errors.Is(err, payment.ErrUnknownDuration),
			errors.Is(err, payment.ErrPriceMismatch):
			b.send(userID, "Error processing payment data.")
		default:
			b.send(userID, "Payment received but could not be recorded. Please try again later.")
		}
		return
	}

	b.send(userID, fmt.Sprintf("Payment successful! Subscription extended until %s UTC.", expiry.UTC().Format("2006-01-02 15:04:05")))
}

func (b *Bot) handleAdminStats(cq *tgbotapi.CallbackQuery) {
	if !b.isAdmin(cq.From.ID) {
		b.ack(cq, "Access Denied", true)
		return
	}

	total, err := b.repo.Count()
	if err != nil {
		b.ack(cq, "Stats unavailable. Please try again later.", true)
		return
	}
	active, err := b.repo.CountActive(time.Now().UTC())
	if err != nil {
		b.ack(cq, "Stats unavailable. Please try again later.", true)
		return
	}

	b.ack(cq, "", false)
	b.send(cq.From.ID, fmt.Sprintf("📊 General Statistics:\nUsers: %d\nActive Subscriptions: %d", total, active))
}

func (b *Bot) handleAdminUsers(cq *tgbotapi.CallbackQuery) {
	if !b.isAdmin(cq.From.ID) {
		b.ack(cq, "Access Denied", true)
		return
	}

	accounts, err := b.repo.ListAll()
	if err != nil {
		b.ack(cq, "User list unavailable. Please try again later.", true)
		return
	}

	b.ack(cq, "", false)

	if len(accounts) == 0 {
		b.send(cq.From.ID, "No users found.")
		return
	}

	now := time.Now().UTC()
	lines := make([]string, 0, len(accounts))
	for _, account := range accounts {
		sub := "None"
		active := ""
		if account.SubscriptionExpiry != nil {
			sub = account.SubscriptionExpiry.UTC().Format("2006-01-02 15:04:05")
			if account.IsActiveAt(now) {
				active = "✅"
			} else {
				active = "❌"
			}
		}
		lines = append(lines, fmt.Sprintf("ID: %d, Name: %s, Subscription: %s %s", account.UserID, account.DisplayName, sub, active))
	}

	for _, chunk := range chunkText(strings.Join(lines, "\n"), maxMessageLength) {
		b.send(cq.From.ID, chunk)
	}
}

// chunkText splits text into pieces that fit the Telegram message limit
// without cutting a UTF-8 sequence in half.
func chunkText(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}
	var chunks []string
	for len(text) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}
