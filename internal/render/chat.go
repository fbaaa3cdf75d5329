// Package render formats ledger data for Telegram (HTML parse mode) and the
// web history page.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/validator"
)

// Amount prints a magnitude with two fraction digits.
func Amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Signed prints an amount with the sign implied by kind.
func Signed(tx domain.Transaction) string {
	if tx.Kind == domain.KindIncome {
		return "+" + Amount(tx.Amount)
	}
	return "-" + Amount(tx.Amount)
}

func category(tx domain.Transaction) string {
	if tx.SubCategory == "" {
		return tx.ParentCategory
	}
	return tx.ParentCategory + " / " + tx.SubCategory
}

func line(tx domain.Transaction) string {
	return fmt.Sprintf("• <b>%s</b> %s\n   %s · paid by %s · %s",
		html.EscapeString(tx.Item),
		Signed(tx),
		html.EscapeString(category(tx)),
		html.EscapeString(tx.PayerName),
		tx.TransactionDate.Format(validator.ISODate),
	)
}

func Saved(txs []domain.Transaction) string {
	var b strings.Builder
	if len(txs) == 1 {
		b.WriteString("✅ <b>Saved 1 entry</b>\n")
	} else {
		fmt.Fprintf(&b, "✅ <b>Saved %d entries</b>\n", len(txs))
	}
	for _, tx := range txs {
		b.WriteString(line(tx))
		b.WriteString("\n")
	}
	b.WriteString("\nWrong? /undo removes the last one, /payer &lt;name&gt; fixes who paid.")
	return b.String()
}

// Dashboard renders the group overview. historyURL may be empty.
func Dashboard(d *domain.Dashboard, historyURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>%s</b> · this month\n\n", html.EscapeString(d.GroupName))
	fmt.Fprintf(&b, "Income:  +%s\n", Amount(d.Overview.Income))
	fmt.Fprintf(&b, "Expense: -%s\n", Amount(d.Overview.Expense))
	fmt.Fprintf(&b, "Balance: <b>%s</b>\n", d.Overview.Balance.StringFixed(2))

	if len(d.Members) > 0 {
		b.WriteString("\n👥 <b>Spent by</b>\n")
		for _, m := range d.Members {
			fmt.Fprintf(&b, "%s: %s\n", html.EscapeString(m.PayerName), Amount(m.Total))
		}
	}

	b.WriteString("\n🧾 <b>Recent</b>\n")
	if len(d.Recent) == 0 {
		b.WriteString("No transactions yet.\n")
	}
	for _, tx := range d.Recent {
		b.WriteString(line(tx))
		b.WriteString("\n")
	}

	if historyURL != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">Full history</a>", html.EscapeString(historyURL))
	}
	return b.String()
}

func Undone(tx *domain.Transaction) string {
	return fmt.Sprintf("🗑️ Deleted <b>%s</b> %s (%s)",
		html.EscapeString(tx.Item), Signed(*tx), tx.TransactionDate.Format(validator.ISODate))
}

func NothingToUndo() string {
	return "Nothing to delete."
}

func PayerReassigned(tx *domain.Transaction) string {
	return fmt.Sprintf("👤 <b>%s</b> %s is now paid by <b>%s</b>",
		html.EscapeString(tx.Item), Signed(*tx), html.EscapeString(tx.PayerName))
}

func NothingToReassign() string {
	return "No transaction to reassign."
}

func NicknameSet(nickname string) string {
	return fmt.Sprintf("👋 Got it, I'll call you <b>%s</b>.", html.EscapeString(nickname))
}

func GroupRenamed(name string) string {
	return fmt.Sprintf("🏷️ Group renamed to <b>%s</b>.", html.EscapeString(name))
}

func Help(categories []string) string {
	var b strings.Builder
	b.WriteString("📒 <b>Group ledger</b>\n\n")
	b.WriteString("Just write what you spent, e.g. <code>lunch 120</code> or <code>Mao paid taxi 35 yesterday</code>.\n\n")
	b.WriteString("Commands:\n")
	b.WriteString("<code>/nick Ken</code> — your name in this group\n")
	b.WriteString("<code>/rename Flatmates</code> — name the group\n")
	b.WriteString("<code>/stats</code> — this month's overview\n")
	b.WriteString("<code>/undo</code> or <code>/delete</code> — remove the last entry\n")
	b.WriteString("<code>/payer Mao</code> — change who paid the last entry\n")
	if len(categories) > 0 {
		fmt.Fprintf(&b, "\nCategories: %s", html.EscapeString(strings.Join(categories, ", ")))
	}
	return b.String()
}
