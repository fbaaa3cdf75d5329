package extract

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/validator"
)

func buildPrompt(req Request) string {
	today := req.Today.Format(validator.ISODate)

	var b strings.Builder
	fmt.Fprintf(&b, "Reference date: %s (today is %s).\n", today, req.Today.Weekday())
	fmt.Fprintf(&b, "Message: %q\n", req.Text)
	if len(req.Nicknames) > 0 {
		fmt.Fprintf(&b, "Possible payers: %s.\n", strings.Join(req.Nicknames, ", "))
	}
	b.WriteString("\nRules:\n")
	b.WriteString("1. Extract every expense or income mentioned in the message.\n")
	fmt.Fprintf(&b, "2. Identify who paid. If the author paid, use '%s'. Match other names to the possible payers when you can.\n", domain.SelfPayer)
	fmt.Fprintf(&b, "3. parentCategory must be one of: %s.\n", strings.Join(req.Categories, ", "))
	b.WriteString("4. Dates:\n")
	b.WriteString("   - \"yesterday\" and similar words are relative to the reference date.\n")
	b.WriteString("   - \"last Friday\" means the most recent Friday before the reference date.\n")
	b.WriteString("   - A bare month and day (like \"11/05\") is in the reference year.\n")
	fmt.Fprintf(&b, "   - Without any date words use %s.\n", today)
	b.WriteString("   - Always use YYYY-MM-DD.\n")
	b.WriteString("5. amount is a positive number; kind tells expense from income.\n")
	b.WriteString("6. If the message is not about money, set isAccounting=false and return no entries.\n")
	return b.String()
}

func generationConfig(categories []string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(categories),
	}
}

func responseSchema(categories []string) *genai.Schema {
	entry := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"item":   {Type: genai.TypeString},
			"amount": {Type: genai.TypeNumber},
			"parentCategory": {
				Type:   genai.TypeString,
				Format: "enum",
				Enum:   categories,
			},
			"subCategory": {Type: genai.TypeString},
			"payer": {
				Type:        genai.TypeString,
				Description: fmt.Sprintf("Name of whoever paid. Use '%s' when it was the author.", domain.SelfPayer),
			},
			"kind": {
				Type:   genai.TypeString,
				Format: "enum",
				Enum:   []string{string(domain.KindExpense), string(domain.KindIncome)},
			},
			"date": {
				Type:        genai.TypeString,
				Description: "Transaction date in YYYY-MM-DD format. Defaults to the reference date.",
			},
		},
		Required:         []string{"item", "amount", "parentCategory", "subCategory", "payer", "kind", "date"},
		PropertyOrdering: []string{"item", "amount", "parentCategory", "subCategory", "payer", "kind", "date"},
	}

	return &genai.Schema{
		Type:        genai.TypeObject,
		Description: "Bookkeeping entries with payer identification",
		Properties: map[string]*genai.Schema{
			"isAccounting": {Type: genai.TypeBoolean},
			"entries": {
				Type:  genai.TypeArray,
				Items: entry,
			},
		},
		Required: []string{"isAccounting", "entries"},
	}
}
