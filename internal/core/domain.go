package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Food          Category = "food"
	Transport     Category = "transport"
	Shopping      Category = "shopping"
	Entertainment Category = "entertainment"
	Healthcare    Category = "healthcare"
	Utilities     Category = "utilities"
	Other         Category = "other"
)

const (
	Monthly Period = "monthly"
)

const (
	MessageText        MessageType = "text"
	MessageImage       MessageType = "image"
	MessageUnsupported MessageType = "unsupported"
)

type (
	Category    string
	Period      string
	MessageType string

	// User is a chat contact, keyed by the platform's stable sender identifier.
	User struct {
		ID         string
		Name       string
		Timezone   string
		CreatedAt  time.Time
		LastActive time.Time
	}

	ExpenseRecord struct {
		ID          int64
		UserID      string
		Amount      decimal.Decimal
		Merchant    string
		Description string
		Category    Category
		Items       []string
		Date        Date
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Budget struct {
		UserID   string
		Category Category
		Limit    decimal.Decimal
		Period   Period
	}

	// BudgetStatus is a budget joined with what was spent against it in the current period.
	BudgetStatus struct {
		Budget  Budget
		Spent   decimal.Decimal
		Percent int
	}

	CategoryTotal struct {
		Category Category
		Total    decimal.Decimal
		Count    int
	}

	InboundMessage struct {
		ID         string
		From       string
		SenderName string
		Type       MessageType
		Timestamp  time.Time
		Text       string
		MediaID    string
		MimeType   string
	}

	// ParsedExpenseGuess is what an extractor could make of free text or a receipt.
	// Empty strings and an invalid Amount mean "could not determine".
	ParsedExpenseGuess struct {
		Amount      decimal.NullDecimal
		Description string
		Category    string
		Merchant    string
		Items       []string
		Date        string
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
	ErrEmptyUser       = errors.New("empty user id")
)

// Categories is the fixed category set, in display order.
var Categories = []Category{Food, Transport, Shopping, Entertainment, Healthcare, Utilities, Other}

var categoryEmoji = map[Category]string{
	Food:          "🍔",
	Transport:     "🚗",
	Shopping:      "🛍️",
	Entertainment: "🎬",
	Healthcare:    "🏥",
	Utilities:     "💡",
	Other:         "📦",
}

// ParseCategory normalizes c and reports whether it is a member of the fixed set.
func ParseCategory(c string) (Category, bool) {
	cat := Category(strings.ToLower(strings.TrimSpace(c)))
	_, ok := categoryEmoji[cat]
	return cat, ok
}

func (c Category) Valid() bool {
	_, ok := categoryEmoji[c]
	return ok
}

func (c Category) Emoji() string {
	if e, ok := categoryEmoji[c]; ok {
		return e
	}
	return categoryEmoji[Other]
}

func (c Category) Label() string {
	s := string(c)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// CategoryNames returns the fixed set as plain strings.
func CategoryNames() []string {
	out := make([]string, len(Categories))
	for i, c := range Categories {
		out[i] = string(c)
	}
	return out
}

func (e ExpenseRecord) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrEmptyUser
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUser
	}
	if !b.Limit.IsPositive() {
		return ErrInvalidAmount
	}
	if !b.Category.Valid() {
		return ErrInvalidCategory
	}
	if b.Period == "" {
		return errors.New("empty budget period")
	}
	return nil
}

// NewBudgetStatus computes the consumed percentage, rounded half away from zero.
func NewBudgetStatus(b Budget, spent decimal.Decimal) BudgetStatus {
	pct := 0
	if b.Limit.IsPositive() {
		pct = int(spent.Div(b.Limit).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}
	return BudgetStatus{Budget: b, Spent: spent, Percent: pct}
}

// Total sums the amounts of records.
func Total(records []ExpenseRecord) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(r.Amount)
	}
	return sum
}

// Location resolves the user's timezone, falling back to UTC for unknown names.
func (u User) Location() *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Today returns the user's current calendar date.
func (u User) Today(now time.Time) Date {
	return DateOf(now.In(u.Location()))
}
