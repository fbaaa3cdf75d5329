package render

import (
	"embed"
	"html/template"
	"io"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/validator"
)

//go:embed templates/*.html
var templatesFS embed.FS

var historyTmpl = template.Must(template.New("history.html").Funcs(template.FuncMap{
	"signed": Signed,
	"day": func(tx domain.Transaction) string {
		return tx.TransactionDate.Format(validator.ISODate)
	},
	"income": func(tx domain.Transaction) bool { return tx.Kind == domain.KindIncome },
}).ParseFS(templatesFS, "templates/history.html"))

type HistoryPage struct {
	GroupName    string
	Transactions []domain.Transaction
}

func History(w io.Writer, page HistoryPage) error {
	return historyTmpl.Execute(w, page)
}
