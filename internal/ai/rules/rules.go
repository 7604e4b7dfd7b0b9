// Package rules is a keyword and regexp expense parser used when no model API is configured.
package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"expensebot/internal/ai"
)

var (
	amountRe = regexp.MustCompile(`(?i)(?:₹|rs\.?|inr|\$|€|£)?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	dateRes  = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`), // YYYY-MM-DD
		regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})\b`), // DD/MM/YYYY
		regexp.MustCompile(`\b(\d{2})-(\d{2})-(\d{4})\b`), // DD-MM-YYYY
	}
	merchantRe    = regexp.MustCompile(`(?i)\b(?:at|from)\s+([A-Za-z][\w'&.\- ]*)`)
	descriptionRe = regexp.MustCompile(`(?i)\b(?:on|for)\s+([A-Za-z][\w'&.\- ]*)`)
	fillerRe      = regexp.MustCompile(`(?i)\b(?:spent|spend|paid|bought|cost|rs\.?|inr|rupees|dollars|today|yesterday)\b`)
)

// keywords maps each category to words that imply it. Checked in order, first hit wins.
var keywords = []struct {
	category string
	words    []string
}{
	{"transport", []string{"uber", "ola", "taxi", "cab", "auto", "rickshaw", "metro", "bus", "train", "petrol", "fuel", "diesel", "parking", "toll", "flight"}},
	{"food", []string{"lunch", "dinner", "breakfast", "coffee", "tea", "snack", "restaurant", "cafe", "pizza", "burger", "swiggy", "zomato", "grocery", "groceries", "food", "meal"}},
	{"healthcare", []string{"doctor", "medicine", "pharmacy", "hospital", "clinic", "dentist", "medical"}},
	{"utilities", []string{"electricity", "water bill", "gas bill", "internet", "wifi", "phone bill", "recharge", "rent", "bill"}},
	{"entertainment", []string{"movie", "cinema", "netflix", "spotify", "concert", "game", "tickets"}},
	{"shopping", []string{"amazon", "flipkart", "clothes", "shoes", "shirt", "mall", "shopping", "gift"}},
}

type Parser struct {
	now func() time.Time
}

func New() *Parser {
	return &Parser{now: time.Now}
}

func (p *Parser) Name() string { return "rules" }

func (p *Parser) ExtractExpense(_ context.Context, text string, categories []string) (ai.ExpenseScan, error) {
	text = normalize(text)
	withoutDates := text
	date := ""
	for _, re := range dateRes {
		if m := re.FindStringSubmatch(text); m != nil {
			date = isoDate(re, m)
			withoutDates = strings.Replace(text, m[0], " ", 1)
			break
		}
	}
	if date == "" && strings.Contains(strings.ToLower(text), "yesterday") {
		date = p.now().AddDate(0, 0, -1).Format("2006-01-02")
	}

	m := amountRe.FindStringSubmatch(withoutDates)
	if m == nil {
		return ai.ExpenseScan{}, errors.New("no amount found")
	}
	amount := strings.ReplaceAll(m[1], ",", "")

	return ai.ExpenseScan{
		Amount:      json.Number(amount),
		Description: guessDescription(withoutDates),
		Category:    guessCategory(text, categories),
		Merchant:    guessMerchant(withoutDates),
		Date:        date,
	}, nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func isoDate(re *regexp.Regexp, m []string) string {
	if re == dateRes[0] {
		return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
	}
	return fmt.Sprintf("%s-%s-%s", m[3], m[2], m[1])
}

func guessCategory(text string, allowed []string) string {
	l := " " + strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text) + " "
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(l, " "+w+" ") || strings.Contains(l, " "+w+"s ") {
				if contains(allowed, k.category) {
					return k.category
				}
			}
		}
	}
	for _, c := range allowed {
		if c != "" && strings.Contains(l, " "+strings.ToLower(c)+" ") {
			return c
		}
	}
	return "other"
}

func guessMerchant(text string) string {
	m := merchantRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return truncate(cutAtKeyword(m[1]), 64)
}

func guessDescription(text string) string {
	if m := descriptionRe.FindStringSubmatch(text); m != nil {
		return truncate(strings.ToLower(cutAtKeyword(m[1])), 64)
	}
	rest := amountRe.ReplaceAllString(text, " ")
	rest = fillerRe.ReplaceAllString(rest, " ")
	return truncate(strings.ToLower(normalize(rest)), 64)
}

// cutAtKeyword stops a captured phrase at the next preposition.
func cutAtKeyword(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		switch strings.ToLower(w) {
		case "at", "from", "on", "for", "yesterday", "today":
			return strings.Join(words[:i], " ")
		}
	}
	return strings.Join(words, " ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
