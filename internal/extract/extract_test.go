package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text   string
	err    error
	calls  int
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

var testCategories = []string{"Food", "Transport"}

func testRequest(text string) Request {
	return Request{
		Text:       text,
		Categories: testCategories,
		Nicknames:  []string{"Ken", "Mao"},
		Today:      time.Date(2024, 11, 15, 9, 0, 0, 0, time.UTC),
	}
}

const validJSON = `{"isAccounting": true, "entries": [
	{"item": "lunch", "amount": 120, "parentCategory": "Food", "subCategory": "meal", "payer": "self", "kind": "expense", "date": "2024-11-15"},
	{"item": "taxi", "amount": "35.5", "parentCategory": "Transport", "subCategory": "", "payer": "Mao", "kind": "expense", "date": "2024-11-14"}
]}`

func TestAnalyze_ValidResult(t *testing.T) {
	gen := &fakeGenerator{text: validJSON}
	c := NewClient(gen, "")

	result := c.Analyze(context.Background(), testRequest("lunch 120, Mao paid taxi 35.5 yesterday"))

	if !result.IsAccounting {
		t.Fatal("expected an accounting result")
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if !result.Entries[1].Amount.Equal(decimal.RequireFromString("35.5")) {
		t.Errorf("amount: expected 35.5, got %s", result.Entries[1].Amount)
	}
	if result.Entries[1].Payer != "Mao" {
		t.Errorf("payer: expected Mao, got %q", result.Entries[1].Payer)
	}
	if gen.model != DefaultModel {
		t.Errorf("model: expected %q, got %q", DefaultModel, gen.model)
	}
}

func TestAnalyze_RequestShape(t *testing.T) {
	gen := &fakeGenerator{text: `{"isAccounting": false, "entries": []}`}
	c := NewClient(gen, "gemini-test")

	c.Analyze(context.Background(), testRequest("paid 10"))

	for _, want := range []string{"2024-11-15", "Friday", "Ken, Mao", "Food, Transport", `"paid 10"`} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, gen.prompt)
		}
	}
	if gen.config == nil || gen.config.ResponseMIMEType != "application/json" {
		t.Fatalf("expected JSON response config, got %+v", gen.config)
	}
	entry := gen.config.ResponseSchema.Properties["entries"].Items
	if got := entry.Properties["parentCategory"].Enum; len(got) != 2 || got[0] != "Food" {
		t.Errorf("category enum: expected %v, got %v", testCategories, got)
	}
	if len(entry.Required) != 7 {
		t.Errorf("expected all 7 entry fields required, got %v", entry.Required)
	}
}

func TestAnalyze_Fallback(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"call error", &fakeGenerator{err: errors.New("quota exceeded")}},
		{"empty text", &fakeGenerator{text: ""}},
		{"not json", &fakeGenerator{text: "I could not find any expense"}},
		{"truncated json", &fakeGenerator{text: `{"isAccounting": true, "entries": [`}},
		{"unknown field", &fakeGenerator{text: `{"isAccounting": true, "entries": [], "note": "x"}`}},
		{"category outside vocabulary", &fakeGenerator{text: `{"isAccounting": true, "entries": [
			{"item": "rent", "amount": 500, "parentCategory": "Housing", "subCategory": "", "payer": "self", "kind": "expense", "date": "2024-11-01"}]}`}},
		{"zero amount", &fakeGenerator{text: `{"isAccounting": true, "entries": [
			{"item": "gift", "amount": 0, "parentCategory": "Food", "subCategory": "", "payer": "self", "kind": "expense", "date": "2024-11-01"}]}`}},
		{"negative amount", &fakeGenerator{text: `{"isAccounting": true, "entries": [
			{"item": "refund", "amount": -5, "parentCategory": "Food", "subCategory": "", "payer": "self", "kind": "income", "date": "2024-11-01"}]}`}},
		{"amount too large", &fakeGenerator{text: `{"isAccounting": true, "entries": [
			{"item": "yacht", "amount": 10000000000, "parentCategory": "Food", "subCategory": "", "payer": "self", "kind": "expense", "date": "2024-11-01"}]}`}},
		{"bad kind", &fakeGenerator{text: `{"isAccounting": true, "entries": [
			{"item": "lunch", "amount": 5, "parentCategory": "Food", "subCategory": "", "payer": "self", "kind": "transfer", "date": "2024-11-01"}]}`}},
		{"bad date", &fakeGenerator{text: `{"isAccounting": true, "entries": [
			{"item": "lunch", "amount": 5, "parentCategory": "Food", "subCategory": "", "payer": "self", "kind": "expense", "date": "11/05"}]}`}},
		{"blank item", &fakeGenerator{text: `{"isAccounting": true, "entries": [
			{"item": "  ", "amount": 5, "parentCategory": "Food", "subCategory": "", "payer": "self", "kind": "expense", "date": "2024-11-01"}]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewClient(tt.gen, "").Analyze(context.Background(), testRequest("lunch 5"))

			if result.IsAccounting {
				t.Error("expected isAccounting=false")
			}
			if result.Entries == nil || len(result.Entries) != 0 {
				t.Errorf("expected empty non-nil entries, got %#v", result.Entries)
			}
		})
	}
}

func TestAnalyze_NotAccountingDropsEntries(t *testing.T) {
	gen := &fakeGenerator{text: `{"isAccounting": false, "entries": [
		{"item": "lunch", "amount": 5, "parentCategory": "Food", "subCategory": "", "payer": "self", "kind": "expense", "date": "2024-11-01"}]}`}

	result := NewClient(gen, "").Analyze(context.Background(), testRequest("see you at 5"))

	if result.IsAccounting || len(result.Entries) != 0 {
		t.Errorf("expected fallback result, got %+v", result)
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"chatter", "Here you go: {\"a\":1} hope it helps", `{"a":1}`},
		{"whitespace", "\n  {\"a\":1}  \n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestAnalyze_FencedResponse(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n" + validJSON + "\n```"}

	result := NewClient(gen, "").Analyze(context.Background(), testRequest("lunch 120"))

	if !result.IsAccounting || len(result.Entries) != 2 {
		t.Errorf("expected fenced JSON to parse, got %+v", result)
	}
}
