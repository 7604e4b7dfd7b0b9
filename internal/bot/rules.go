package bot

import (
	"context"
	"regexp"
	"strings"
	"unicode"
)

type Intent string

const (
	IntentSetBudget    Intent = "set_budget"
	IntentBudgetStatus Intent = "budget_status"
	IntentUndo         Intent = "undo"
	IntentEdit         Intent = "edit"
	IntentSearch       Intent = "search"
	IntentExpense      Intent = "expense"
	IntentTimeRange    Intent = "time_range"
	IntentCategories   Intent = "categories"
	IntentInsights     Intent = "insights"
	IntentHelp         Intent = "help"
	IntentUnknown      Intent = "unknown"
	IntentReceipt      Intent = "receipt"
	IntentUnsupported  Intent = "unsupported"
)

type handlerFunc func(ctx context.Context, req *request) (string, error)

type rule struct {
	intent Intent
	match  func(text string) bool
	handle handlerFunc
}

var (
	setBudgetRe = regexp.MustCompile(`^set\s+budget\b`)
	editRe      = regexp.MustCompile(`^edit\b`)
	searchRe    = regexp.MustCompile(`^search\b`)

	expenseWords = []string{
		"spent", "paid", "bought",
		"uber", "ola", "taxi", "cab", "auto", "rickshaw", "metro", "bus", "train", "petrol", "fuel",
	}
	// Verbs that also show up in report questions ("what did I spend today")
	// only count as an expense when the message carries an amount.
	amountVerbs    = []string{"spend", "cost"}
	timeRangeWords = []string{"today", "week", "month"}
	categoryWords  = []string{"category", "categories", "breakdown"}
	insightWords   = []string{"insight", "insights", "analysis", "analyze", "tips"}
	helpWords      = []string{"hi", "hello", "hey", "help", "start", "menu"}
)

// buildRules lists the intents in precedence order. A message can match several
// patterns ("set budget" contains "budget", "bus" may follow "search"), so the first
// match wins and the order here is part of the bot's behavior.
func (d *Dispatcher) buildRules() []rule {
	return []rule{
		{IntentSetBudget, setBudgetRe.MatchString, d.handleSetBudget},
		{IntentBudgetStatus, exactly("budget", "budgets", "budget status"), d.handleBudgetStatus},
		{IntentUndo, exactly("undo", "delete", "delete last", "remove last"), d.handleUndo},
		{IntentEdit, editRe.MatchString, d.handleEdit},
		{IntentSearch, searchRe.MatchString, d.handleSearch},
		{IntentExpense, either(anyWord(expenseWords...), both(anyWord(amountVerbs...), hasNumber)), d.handleTextExpense},
		{IntentTimeRange, anyWord(timeRangeWords...), d.handleTimeRange},
		{IntentCategories, anyWord(categoryWords...), d.handleCategories},
		{IntentInsights, anyWord(insightWords...), d.handleInsights},
		{IntentHelp, anyWord(helpWords...), d.handleHelp},
	}
}

func (d *Dispatcher) classify(text string) (rule, Intent) {
	for _, r := range d.rules {
		if r.match(text) {
			return r, r.intent
		}
	}
	return rule{intent: IntentUnknown, handle: d.handleFallback}, IntentUnknown
}

// Classify reports which intent text would be routed to.
func (d *Dispatcher) Classify(text string) Intent {
	_, norm := normalizeText(text)
	_, in := d.classify(norm)
	return in
}

// normalizeText returns the trimmed text and a lower-cased, whitespace-collapsed copy.
func normalizeText(s string) (raw, norm string) {
	raw = strings.TrimSpace(s)
	norm = strings.ToLower(strings.Join(strings.Fields(raw), " "))
	return raw, norm
}

func exactly(options ...string) func(string) bool {
	return func(text string) bool {
		t := strings.TrimRightFunc(text, unicode.IsPunct)
		for _, o := range options {
			if t == o {
				return true
			}
		}
		return false
	}
}

func anyWord(words ...string) func(string) bool {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return func(text string) bool {
		for _, tok := range tokens(text) {
			if _, ok := set[tok]; ok {
				return true
			}
		}
		return false
	}
}

func hasNumber(text string) bool {
	return strings.IndexFunc(text, unicode.IsDigit) >= 0
}

func either(a, b func(string) bool) func(string) bool {
	return func(text string) bool { return a(text) || b(text) }
}

func both(a, b func(string) bool) func(string) bool {
	return func(text string) bool { return a(text) && b(text) }
}

func tokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
