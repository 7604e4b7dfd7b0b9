// Package validate holds the pure checks that guard persistence: amounts, categories,
// dates, free text, webhook signatures and user-supplied string sanitization.
package validate

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"expensebot/internal/core"
)

const (
	MaxDescriptionLen = 500
	MaxMerchantLen    = 100
)

// MaxAmount is the exclusive upper bound for a single expense.
var MaxAmount = decimal.NewFromInt(10_000_000)

// ValidateAmount reports whether 0 < d < MaxAmount.
func ValidateAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThan(MaxAmount)
}

// ParseAmount parses a user-typed amount such as "250", "₹1,200.50" or "$ 99".
// Currency symbols, spaces and thousands separators are dropped; anything else
// that is not a plain decimal is rejected.
func ParseAmount(s string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',' || r == ' ' || r == '_':
		case strings.ContainsRune("₹$€£¥", r):
		default:
			return decimal.Zero, false
		}
	}
	str := b.String()
	if str == "" || strings.Count(str, ".") > 1 {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ValidateCategory reports case-insensitive membership in the fixed category set.
func ValidateCategory(c string) bool {
	_, ok := core.ParseCategory(c)
	return ok
}

// ValidateDate accepts an empty string, or a YYYY-MM-DD date that is no later than
// one day after now and no earlier than two years before now.
func ValidateDate(d string, now time.Time) bool {
	if strings.TrimSpace(d) == "" {
		return true
	}
	parsed, err := core.ParseDate(d)
	if err != nil {
		return false
	}
	today := core.DateOf(now)
	if parsed.After(today.AddDays(1).Time) {
		return false
	}
	earliest := core.Date{Time: today.AddDate(-2, 0, 0)}
	return !parsed.Before(earliest.Time)
}

// ValidateText accepts empty strings or strings of at most max runes.
func ValidateText(s string, max int) bool {
	return utf8.RuneCountInString(s) <= max
}

// ValidateExpenseGuess returns human-readable problems in a fixed order:
// amount, category, date, description, merchant. An empty slice means valid.
func ValidateExpenseGuess(g core.ParsedExpenseGuess, now time.Time) []string {
	var errs []string
	if !g.Amount.Valid || !ValidateAmount(g.Amount.Decimal) {
		errs = append(errs, fmt.Sprintf("Invalid amount: must be greater than 0 and less than %s", MaxAmount.StringFixed(0)))
	}
	if g.Category != "" && !ValidateCategory(g.Category) {
		errs = append(errs, fmt.Sprintf("Invalid category: must be one of %s", strings.Join(core.CategoryNames(), ", ")))
	}
	if !ValidateDate(g.Date, now) {
		errs = append(errs, "Invalid date: use YYYY-MM-DD, not in the future and within the last 2 years")
	}
	if !ValidateText(g.Description, MaxDescriptionLen) {
		errs = append(errs, fmt.Sprintf("Description too long (max %d characters)", MaxDescriptionLen))
	}
	if !ValidateText(g.Merchant, MaxMerchantLen) {
		errs = append(errs, fmt.Sprintf("Merchant name too long (max %d characters)", MaxMerchantLen))
	}
	return errs
}
