package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// FallbackNickname stands in for a member who never set a nickname.
	FallbackNickname = "me"
	// UnnamedGroup is shown for groups without a display name.
	UnnamedGroup = "unnamed group"
	// UnknownPayer is stored when no payer could be resolved.
	UnknownPayer = "unknown"
	// SelfPayer is the extraction token for "the author paid".
	SelfPayer = "self"
)

// DefaultCategories is the starter vocabulary of every new group.
var DefaultCategories = []string{
	"Food",
	"Transport",
	"Entertainment",
	"Shopping",
	"Home",
	"Medical",
	"Education",
	"Social",
	"Finance",
}

// Kind is expense or income. Amounts are always stored positive, the sign comes from Kind.
type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// ParseKind normalizes a free-form kind to the two-valued enum.
// Anything that is not "income" counts as an expense.
func ParseKind(s string) Kind {
	if s == string(KindIncome) {
		return KindIncome
	}
	return KindExpense
}

type GroupConfig struct {
	GroupID    string    `json:"groupId"`
	Name       string    `json:"name,omitempty"`
	Categories []string  `json:"categories"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DisplayName returns the configured name or UnnamedGroup.
func (c *GroupConfig) DisplayName() string {
	if c == nil || c.Name == "" {
		return UnnamedGroup
	}
	return c.Name
}

type GroupMember struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	UserID    string    `json:"userId"`
	Nickname  string    `json:"nickname"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Transaction is a persisted ledger entry. Only PayerName may change after creation.
type Transaction struct {
	ID              string          `json:"id"`
	GroupID         string          `json:"groupId"`
	UserID          string          `json:"userId"`
	PayerName       string          `json:"payerName"`
	Amount          decimal.Decimal `json:"amount"`
	Item            string          `json:"item"`
	ParentCategory  string          `json:"parentCategory"`
	SubCategory     string          `json:"subCategory"`
	Kind            Kind            `json:"type"`
	TransactionDate time.Time       `json:"transactionDate"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Entry is an extracted, not yet saved transaction candidate.
type Entry struct {
	Item           string          `json:"item" validate:"required,notblank"`
	Amount         decimal.Decimal `json:"amount"`
	ParentCategory string          `json:"parentCategory" validate:"required,notblank"`
	SubCategory    string          `json:"subCategory"`
	Payer          string          `json:"payer"`
	Kind           string          `json:"kind" validate:"required,oneof=expense income"`
	Date           string          `json:"date" validate:"required,isodate"`
}

// AnalysisResult is what the extraction step returns for one message.
type AnalysisResult struct {
	IsAccounting bool    `json:"isAccounting"`
	Entries      []Entry `json:"entries"`
}

// NotAccounting is the deterministic fallback of a failed or irrelevant extraction.
func NotAccounting() AnalysisResult {
	return AnalysisResult{IsAccounting: false, Entries: []Entry{}}
}

type MonthlyStats struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

type MemberStat struct {
	PayerName string          `json:"payerName"`
	Total     decimal.Decimal `json:"total"`
}

// GroupActivity is the latest logical transaction date of a user in a group.
type GroupActivity struct {
	GroupID         string
	LastTransaction time.Time
}

type GroupSummary struct {
	GroupID             string     `json:"groupId"`
	GroupName           string     `json:"groupName"`
	Nickname            string     `json:"nickname"`
	LastTransactionDate *time.Time `json:"lastTransactionDate,omitempty"`
}

type Dashboard struct {
	GroupID   string        `json:"groupId"`
	GroupName string        `json:"groupName"`
	Overview  MonthlyStats  `json:"overview"`
	Members   []MemberStat  `json:"members"`
	Recent    []Transaction `json:"recent,omitempty"`
}
