package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensebot/internal/core"
	"expensebot/internal/format"
	"expensebot/internal/log"
	"expensebot/internal/validate"
)

const defaultTimeout = 30 * time.Second

// Adapter implements Extractor on top of optional providers. A nil vision provider or
// summarizer simply means that capability always degrades.
type Adapter struct {
	text    TextProvider
	vision  VisionProvider
	summary Summarizer
	timeout time.Duration
	fmt     format.Formatter
	logger  *log.Logger
}

type Option func(*Adapter)

func WithVision(v VisionProvider) Option { return func(a *Adapter) { a.vision = v } }

func WithSummarizer(s Summarizer) Option { return func(a *Adapter) { a.summary = s } }

func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithFormatter(f format.Formatter) Option { return func(a *Adapter) { a.fmt = f } }

func NewAdapter(text TextProvider, logger *log.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = log.Discard()
	}
	a := &Adapter{
		text:    text,
		timeout: defaultTimeout,
		fmt:     format.New(""),
		logger:  logger.WithComponent(log.ComponentAI),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) ParseTextExpense(ctx context.Context, text string) Extraction {
	if a.text == nil {
		return ExtractionFailed("no text provider configured")
	}
	if strings.TrimSpace(text) == "" {
		return ExtractionFailed("empty text")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	scan, err := a.text.ExtractExpense(ctx, text, core.CategoryNames())
	if err != nil {
		a.loggerFor(ctx).WarnContext(ctx, "text provider failed",
			log.FieldOperation, log.OpExtract, log.FieldProvider, a.text.Name(), log.FieldError, err)
		return ExtractionFailed(fmt.Sprintf("%s: %v", a.text.Name(), err))
	}
	amount, ok := positiveAmount(scan.Amount)
	if !ok {
		return ExtractionFailed(fmt.Sprintf("%s: unusable amount %q", a.text.Name(), scan.Amount))
	}
	return Extracted(core.ParsedExpenseGuess{
		Amount:      decimal.NewNullDecimal(amount),
		Description: validate.Sanitize(scan.Description, 0),
		Category:    string(a.normalizeCategory(ctx, scan.Category)),
		Merchant:    validate.Sanitize(scan.Merchant, 0),
		Date:        strings.TrimSpace(scan.Date),
	})
}

// ParseReceiptImage extracts a receipt. An amount of zero is passed through as an
// extracted guess so that validation, not extraction, reports it to the user.
func (a *Adapter) ParseReceiptImage(ctx context.Context, img []byte, mimeType string) Extraction {
	if a.vision == nil {
		return ExtractionFailed("no vision provider configured")
	}
	if len(img) == 0 {
		return ExtractionFailed("empty image")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	scan, err := a.vision.ExtractReceipt(ctx, img, mimeType, core.CategoryNames())
	if err != nil {
		a.loggerFor(ctx).WarnContext(ctx, "vision provider failed",
			log.FieldOperation, log.OpExtract, log.FieldProvider, providerName(a.vision), log.FieldError, err)
		return ExtractionFailed(fmt.Sprintf("vision: %v", err))
	}
	total, ok := receiptTotal(scan)
	if !ok {
		return ExtractionFailed("vision: no numeric amount on receipt")
	}
	items := make([]string, 0, len(scan.Items))
	for _, it := range scan.Items {
		if s := validate.Sanitize(it, 0); s != "" {
			items = append(items, s)
		}
	}
	return Extracted(core.ParsedExpenseGuess{
		Amount:      decimal.NewNullDecimal(total),
		Description: validate.Sanitize(scan.Description, 0),
		Category:    string(a.normalizeCategory(ctx, scan.Category)),
		Merchant:    validate.Sanitize(scan.Merchant, 0),
		Items:       items,
		Date:        strings.TrimSpace(scan.Date),
	})
}

// receiptTotal picks the amount actually paid: the printed total, else subtotal plus
// tax, else the largest amount seen. ok is false only when no amount parses at all.
func receiptTotal(scan ReceiptScan) (decimal.Decimal, bool) {
	if d, ok := parseNumber(scan.Total); ok && d.IsPositive() {
		return d, true
	}
	if sub, ok := parseNumber(scan.Subtotal); ok && sub.IsPositive() {
		if tax, ok := parseNumber(scan.Tax); ok && tax.IsPositive() {
			return sub.Add(tax), true
		}
	}
	found := false
	largest := decimal.Zero
	for _, n := range append([]json.Number{scan.Subtotal}, scan.Amounts...) {
		d, ok := parseNumber(n)
		if !ok {
			continue
		}
		if !found || d.GreaterThan(largest) {
			largest = d
			found = true
		}
	}
	if found {
		return largest, true
	}
	// an explicit zero total is still a number the validator should see
	if d, ok := parseNumber(scan.Total); ok {
		return d, true
	}
	return decimal.Zero, false
}

func (a *Adapter) SummarizeSpending(ctx context.Context, records []core.ExpenseRecord) string {
	if len(records) == 0 {
		return NoDataMessage
	}
	if a.summary == nil {
		return a.fallbackSummary(records)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.summary.Summarize(ctx, a.summaryPrompt(records))
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		a.loggerFor(ctx).WarnContext(ctx, "summary provider failed, using local summary",
			log.FieldProvider, providerName(a.summary), log.FieldError, err)
		return a.fallbackSummary(records)
	}
	return "💡 *Insights*\n\n" + out
}

// loggerFor prefers the request-scoped logger so failures keep the message and user ids.
func (a *Adapter) loggerFor(ctx context.Context) *log.Logger {
	return log.FromContextOr(ctx, a.logger).WithComponent(log.ComponentAI)
}

func providerName(p any) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}

func (a *Adapter) normalizeCategory(ctx context.Context, c string) core.Category {
	if strings.TrimSpace(c) == "" {
		return core.Other
	}
	cat, ok := core.ParseCategory(c)
	if !ok {
		a.loggerFor(ctx).WarnContext(ctx, "provider returned category outside the fixed set", log.FieldCategory, c)
		return core.Other
	}
	return cat
}

func (a *Adapter) summaryPrompt(records []core.ExpenseRecord) string {
	var b strings.Builder
	b.WriteString("Here are a user's expenses from the last 30 days (date, category, amount, merchant, description).\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%s, %s, %s, %s, %s\n", r.Date, r.Category, r.Amount.String(), r.Merchant, r.Description)
	}
	b.WriteString("\nGive 3 short, practical insights about their spending patterns and one saving tip. ")
	b.WriteString("Plain text, at most 80 words, no markdown headings.")
	return b.String()
}

func (a *Adapter) fallbackSummary(records []core.ExpenseRecord) string {
	byCat := map[core.Category]decimal.Decimal{}
	total := decimal.Zero
	for _, r := range records {
		byCat[r.Category] = byCat[r.Category].Add(r.Amount)
		total = total.Add(r.Amount)
	}
	cats := make([]core.Category, 0, len(byCat))
	for c := range byCat {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if byCat[cats[i]].Equal(byCat[cats[j]]) {
			return cats[i] < cats[j]
		}
		return byCat[cats[i]].GreaterThan(byCat[cats[j]])
	})
	top := cats[0]
	share := byCat[top].Div(total).Mul(decimal.NewFromInt(100)).Round(0)
	avg := total.Div(decimal.NewFromInt(30))

	var b strings.Builder
	b.WriteString("💡 *Insights*\n\n")
	fmt.Fprintf(&b, "• You spent %s across %d expenses in the last 30 days.\n", a.fmt.Money(total), len(records))
	fmt.Fprintf(&b, "• Your biggest category is %s %s at %s (%s%%).\n", top.Emoji(), top, a.fmt.Money(byCat[top]), share.String())
	fmt.Fprintf(&b, "• That is about %s per day.", a.fmt.Money(avg))
	return b.String()
}

func parseNumber(n json.Number) (decimal.Decimal, bool) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func positiveAmount(n json.Number) (decimal.Decimal, bool) {
	d, ok := parseNumber(n)
	if !ok || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}
