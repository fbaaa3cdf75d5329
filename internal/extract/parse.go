package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"ledger-bot/internal/domain"
	"ledger-bot/internal/validator"
)

var errInvalidResult = errors.New("invalid extraction result")

// maxAmount is the exclusive upper bound of NUMERIC(12,2).
var maxAmount = decimal.New(1, 10)

// cleanModelJSON strips Markdown fences and any chatter around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

func parseResult(raw string, categories []string) (domain.AnalysisResult, error) {
	var result domain.AnalysisResult

	dec := json.NewDecoder(bytes.NewReader([]byte(cleanModelJSON(raw))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("unmarshal JSON: %w (raw response: %s)", err, raw)
	}

	if !result.IsAccounting {
		return domain.NotAccounting(), nil
	}
	if result.Entries == nil {
		result.Entries = []domain.Entry{}
	}

	for i := range result.Entries {
		if err := validateEntry(&result.Entries[i], categories); err != nil {
			return domain.AnalysisResult{}, fmt.Errorf("%w: entry %d: %v", errInvalidResult, i, err)
		}
	}
	return result, nil
}

func validateEntry(e *domain.Entry, categories []string) error {
	e.Item = strings.TrimSpace(e.Item)
	e.ParentCategory = strings.TrimSpace(e.ParentCategory)
	e.SubCategory = strings.TrimSpace(e.SubCategory)
	e.Payer = strings.TrimSpace(e.Payer)
	e.Date = strings.TrimSpace(e.Date)

	if err := validator.Struct(e); err != nil {
		return err
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", e.Amount)
	}
	if e.Amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("amount %s is too large", e.Amount)
	}
	if !slices.Contains(categories, e.ParentCategory) {
		return fmt.Errorf("category %q is not in the group vocabulary", e.ParentCategory)
	}
	return nil
}
