package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebot/internal/core"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func TestValidateAmount(t *testing.T) {
	cases := map[string]bool{
		"0":          false,
		"-1":         false,
		"0.01":       true,
		"250":        true,
		"9999999.99": true,
		"10000000":   false,
		"1e9":        false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidateAmount(decimal.RequireFromString(in)), in)
	}
}

func TestParseAmount(t *testing.T) {
	good := map[string]string{
		"250":       "250",
		"₹1,200.50": "1200.5",
		"$ 99":      "99",
		" 12.75 ":   "12.75",
	}
	for in, want := range good {
		d, ok := ParseAmount(in)
		require.True(t, ok, in)
		assert.True(t, d.Equal(decimal.RequireFromString(want)), "%s parsed as %s", in, d)
	}
	for _, in := range []string{"", "abc", "NaN", "Inf", "1.2.3", "12abc", "₹"} {
		_, ok := ParseAmount(in)
		assert.False(t, ok, in)
	}
}

func TestValidateCategory(t *testing.T) {
	for _, c := range core.CategoryNames() {
		assert.True(t, ValidateCategory(c))
		assert.True(t, ValidateCategory(strings.ToUpper(c)))
	}
	assert.True(t, ValidateCategory("Food"))
	assert.False(t, ValidateCategory("groceries"))
	assert.False(t, ValidateCategory(""))
}

func TestValidateDate(t *testing.T) {
	assert.True(t, ValidateDate("", now))
	assert.True(t, ValidateDate("2026-10-18", now))
	assert.True(t, ValidateDate("2026-10-19", now), "tomorrow is tolerated")
	assert.False(t, ValidateDate("2026-10-20", now))
	assert.True(t, ValidateDate("2024-10-18", now))
	assert.False(t, ValidateDate("2024-10-17", now))
	assert.True(t, ValidateDate("2026-10-01T08:00:00Z", now))
	assert.False(t, ValidateDate("18/10/2026", now))
	assert.False(t, ValidateDate("yesterday", now))
}

func TestValidateText(t *testing.T) {
	assert.True(t, ValidateText("", 5))
	assert.True(t, ValidateText("héllo", 5))
	assert.False(t, ValidateText("héllo!", 5))
}

func TestValidateExpenseGuessOrdering(t *testing.T) {
	g := core.ParsedExpenseGuess{
		Category:    "groceries",
		Date:        "not-a-date",
		Description: strings.Repeat("x", MaxDescriptionLen+1),
		Merchant:    strings.Repeat("m", MaxMerchantLen+1),
	}
	errs := ValidateExpenseGuess(g, now)
	require.Len(t, errs, 5)
	assert.Contains(t, errs[0], "Invalid amount")
	assert.Contains(t, errs[1], "Invalid category")
	assert.Contains(t, errs[2], "Invalid date")
	assert.Contains(t, errs[3], "Description")
	assert.Contains(t, errs[4], "Merchant")
}

func TestValidateExpenseGuessValid(t *testing.T) {
	g := core.ParsedExpenseGuess{
		Amount:      decimal.NewNullDecimal(decimal.NewFromInt(250)),
		Description: "lunch",
		Category:    "Food",
	}
	assert.Empty(t, ValidateExpenseGuess(g, now))

	// category is only checked when present
	g.Category = ""
	assert.Empty(t, ValidateExpenseGuess(g, now))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "script hi", Sanitize("  <script> hi\x00 ", 100))
	assert.Equal(t, "a b", Sanitize("a\nb", 100))
	assert.Equal(t, "héll", Sanitize("héllo", 4))
	assert.Equal(t, "", Sanitize("<>", 10))
}
