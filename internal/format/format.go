// Package format renders domain data into chat reply text. Nothing here does I/O.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"expensebot/internal/core"
)

const (
	MaxListItems = 10
	barSegments  = 10

	EmptyExpenseList     = "📭 No expenses recorded for this period."
	EmptyCategorySummary = "📭 No expenses in the last 30 days to break down."
	EmptyBudgetStatus    = "📭 No budgets set yet. Try: set budget food 5000"
)

// Formatter renders money with a fixed currency symbol.
type Formatter struct {
	Symbol string
}

func New(symbol string) Formatter {
	return Formatter{Symbol: symbol}
}

// Money renders d with thousands separators, dropping the fraction for whole amounts.
func (f Formatter) Money(d decimal.Decimal) string {
	v := d.Round(2).InexactFloat64()
	layout := "#,###.##"
	if d.Round(2).Equal(d.Truncate(0)) {
		layout = "#,###."
	}
	return f.Symbol + humanize.FormatFloat(layout, v)
}

func Day(d core.Date) string {
	return d.Format("02 Jan")
}

// ExpenseList renders a titled list, newest first as given, with at most
// MaxListItems lines and a footer counting the rest.
func (f Formatter) ExpenseList(title string, records []core.ExpenseRecord) string {
	if len(records) == 0 {
		return EmptyExpenseList
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *%s*\n%d expense%s, total %s\n", title, len(records), plural(len(records)), f.Money(core.Total(records)))
	for i, r := range records {
		if i == MaxListItems {
			fmt.Fprintf(&b, "\n…and %d more", len(records)-MaxListItems)
			break
		}
		b.WriteString("\n")
		b.WriteString(f.ExpenseLine(r))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ExpenseLine is the one-line rendering used in lists and confirmations.
func (f Formatter) ExpenseLine(r core.ExpenseRecord) string {
	line := fmt.Sprintf("%s %s", r.Category.Emoji(), f.Money(r.Amount))
	if r.Merchant != "" {
		line += " at " + r.Merchant
	} else if r.Description != "" {
		line += " - " + r.Description
	}
	return fmt.Sprintf("%s (%s, %s)", line, r.Category, Day(r.Date))
}

// CategorySummary renders one line per category, largest total first.
func (f Formatter) CategorySummary(totals []core.CategoryTotal) string {
	if len(totals) == 0 {
		return EmptyCategorySummary
	}
	sorted := append([]core.CategoryTotal(nil), totals...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Total.GreaterThan(sorted[j].Total)
	})
	grand := decimal.Zero
	var b strings.Builder
	b.WriteString("📂 *Spending by category (last 30 days)*\n")
	for _, t := range sorted {
		grand = grand.Add(t.Total)
		fmt.Fprintf(&b, "\n%s %s: %s (%d)", t.Category.Emoji(), t.Category.Label(), f.Money(t.Total), t.Count)
	}
	fmt.Fprintf(&b, "\n\nTotal: %s", f.Money(grand))
	return b.String()
}

// BudgetStatus renders a block per budget with a 10-segment progress bar.
func (f Formatter) BudgetStatus(statuses []core.BudgetStatus) string {
	if len(statuses) == 0 {
		return EmptyBudgetStatus
	}
	var b strings.Builder
	b.WriteString("💰 *Budget status (this month)*")
	for _, s := range statuses {
		c := s.Budget.Category
		fmt.Fprintf(&b, "\n\n%s %s: %d%%\n%s\n%s / %s", c.Emoji(), c.Label(), s.Percent, ProgressBar(s.Percent), f.Money(s.Spent), f.Money(s.Budget.Limit))
		if s.Percent >= 100 {
			b.WriteString(" ⚠️ over budget")
		}
	}
	return b.String()
}

// ProgressBar draws one '#' per full 10%, capped at ten segments.
func ProgressBar(percent int) string {
	filled := percent / 10
	if filled < 0 {
		filled = 0
	}
	if filled > barSegments {
		filled = barSegments
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barSegments-filled) + "]"
}

// ExpenseSaved confirms a stored record together with the day's running total.
func (f Formatter) ExpenseSaved(r core.ExpenseRecord, dailyTotal decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Saved %s for %s", f.Money(r.Amount), r.Category)
	if r.Merchant != "" {
		fmt.Fprintf(&b, " at %s", r.Merchant)
	}
	if r.Description != "" {
		fmt.Fprintf(&b, " (%s)", r.Description)
	}
	if len(r.Items) > 0 {
		fmt.Fprintf(&b, "\nItems: %s", strings.Join(r.Items, ", "))
	}
	fmt.Fprintf(&b, "\nToday's total: %s", f.Money(dailyTotal))
	return b.String()
}

// Errors renders an itemized validation failure.
func Errors(errs []string) string {
	var b strings.Builder
	b.WriteString("⚠️ I couldn't save that:")
	for _, e := range errs {
		b.WriteString("\n• ")
		b.WriteString(e)
	}
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
