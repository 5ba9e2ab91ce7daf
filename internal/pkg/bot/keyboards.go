package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/startunnel/StarTunnel/internal/pkg/payment"
)

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔑 Get VPN", "menu_get_vpn"),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Information", "menu_info"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚙ Settings", "menu_settings"),
			tgbotapi.NewInlineKeyboardButtonData("💳 Payment", "menu_payments"),
		),
	)
}

func durationKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, months := range payment.Durations() {
		price := payment.Prices[months]
		label := fmt.Sprintf("%d month - %d ⭐", months, price)
		if months > 1 {
			label = fmt.Sprintf("%d months - %d ⭐", months, price)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("pay_sub_%d", months)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Cancel", "subscription_selection_cancel"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func invoiceKeyboard(price int) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.InlineKeyboardButton{Text: fmt.Sprintf("Pay %d ⭐", price), Pay: true},
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "subscription_cancel"),
		),
	)
}

func adminKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("General Stats", "admin_stats"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("User List", "admin_users"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Close", "admin_close"),
		),
	)
}
