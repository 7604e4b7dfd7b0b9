package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"expensebot/internal/ai"
	"expensebot/internal/core"
	"expensebot/internal/format"
	"expensebot/internal/log"
	"expensebot/internal/storage"
	"expensebot/internal/validate"
)

const (
	// MinSearchLen is 3 so that two-letter terms like "search ab" are rejected
	// before touching storage. See the search decision in DESIGN.md.
	MinSearchLen    = 3
	MaxSearchResult = 20
	trailingDays    = 30
)

var (
	setBudgetArgsRe = regexp.MustCompile(`^set\s+budget\s+(\S+)\s+(.+)$`)
	editArgsRe      = regexp.MustCompile(`^edit\s+(?:last\s+)?(amount|category)\s+(.+)$`)
)

func (d *Dispatcher) handleSetBudget(ctx context.Context, req *request) (string, error) {
	m := setBudgetArgsRe.FindStringSubmatch(req.text)
	if m == nil {
		return SetBudgetUsage, nil
	}
	cat, ok := core.ParseCategory(m[1])
	if !ok {
		return invalidCategory(m[1]), nil
	}
	amount, ok := validate.ParseAmount(m[2])
	if !ok || !validate.ValidateAmount(amount) {
		return invalidAmount(m[2]), nil
	}
	b := core.Budget{UserID: req.user.ID, Category: cat, Limit: amount, Period: core.Monthly}
	if err := d.repo.SetBudget(ctx, b); err != nil {
		return "", fmt.Errorf("set budget: %w", err)
	}
	return fmt.Sprintf("✅ Monthly budget for %s %s set to %s", cat.Emoji(), cat, d.fmt.Money(amount)), nil
}

func (d *Dispatcher) handleBudgetStatus(ctx context.Context, req *request) (string, error) {
	st, err := d.repo.BudgetStatus(ctx, req.user.ID, core.ThisMonth(req.today))
	if err != nil {
		return "", fmt.Errorf("budget status: %w", err)
	}
	return d.fmt.BudgetStatus(st), nil
}

func (d *Dispatcher) handleUndo(ctx context.Context, req *request) (string, error) {
	last, err := d.repo.LastExpense(ctx, req.user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return NothingToDeleteMessage, nil
	}
	if err != nil {
		return "", fmt.Errorf("last expense: %w", err)
	}
	if err := d.repo.DeleteExpense(ctx, req.user.ID, last.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NothingToDeleteMessage, nil
		}
		return "", fmt.Errorf("delete expense: %w", err)
	}
	log.FromContext(ctx).InfoContext(ctx, "expense deleted", log.FieldOperation, log.OpDelete, log.FieldExpenseID, last.ID)
	return "🗑️ Deleted: " + d.fmt.ExpenseLine(last), nil
}

func (d *Dispatcher) handleEdit(ctx context.Context, req *request) (string, error) {
	m := editArgsRe.FindStringSubmatch(req.text)
	if m == nil {
		return EditUsage, nil
	}
	field, value := m[1], strings.TrimSpace(m[2])

	var amount decimal.Decimal
	var cat core.Category
	switch field {
	case "amount":
		a, ok := validate.ParseAmount(value)
		if !ok || !validate.ValidateAmount(a) {
			return invalidAmount(value), nil
		}
		amount = a
	case "category":
		c, ok := core.ParseCategory(value)
		if !ok {
			return invalidCategory(value), nil
		}
		cat = c
	}

	last, err := d.repo.LastExpense(ctx, req.user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return NothingToEditMessage, nil
	}
	if err != nil {
		return "", fmt.Errorf("last expense: %w", err)
	}
	if field == "amount" {
		last.Amount = amount
	} else {
		last.Category = cat
	}
	if err := d.repo.UpdateExpense(ctx, last); err != nil {
		return "", fmt.Errorf("update expense: %w", err)
	}
	log.FromContext(ctx).InfoContext(ctx, "expense updated",
		log.FieldOperation, log.OpUpdate, log.FieldExpenseID, last.ID, "field", field)
	return "✏️ Updated: " + d.fmt.ExpenseLine(last), nil
}

func (d *Dispatcher) handleSearch(ctx context.Context, req *request) (string, error) {
	term := strings.TrimSpace(strings.TrimPrefix(req.text, "search"))
	if utf8.RuneCountInString(term) < MinSearchLen {
		return SearchTooShortMessage, nil
	}
	term = validate.Sanitize(term, 100)
	found, err := d.repo.SearchExpenses(ctx, req.user.ID, term, MaxSearchResult)
	if err != nil {
		return "", fmt.Errorf("search expenses: %w", err)
	}
	if len(found) == 0 {
		return fmt.Sprintf("🔍 No expenses matching \"%s\".", term), nil
	}
	return d.fmt.ExpenseList(fmt.Sprintf("Search: %s", term), found), nil
}

func (d *Dispatcher) handleTextExpense(ctx context.Context, req *request) (string, error) {
	ex := d.ai.ParseTextExpense(ctx, req.raw)
	if !ex.OK() {
		log.FromContext(ctx).WarnContext(ctx, "text extraction failed", log.FieldOperation, log.OpExtract, "reason", ex.Reason())
		return RephraseMessage, nil
	}
	return d.saveGuess(ctx, req, ex.Guess())
}

func (d *Dispatcher) handleReceipt(ctx context.Context, req *request) (string, error) {
	if d.media == nil {
		return MediaFailedMessage, nil
	}
	img, mime, err := d.media.DownloadMedia(ctx, req.msg.MediaID)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "media download failed", log.FieldError, err)
		return MediaFailedMessage, nil
	}
	if mime == "" {
		mime = req.msg.MimeType
	}
	ex := d.ai.ParseReceiptImage(ctx, img, mime)
	if !ex.OK() {
		log.FromContext(ctx).WarnContext(ctx, "receipt extraction failed", log.FieldOperation, log.OpExtract, "reason", ex.Reason())
		return ReceiptFailedMessage, nil
	}
	g := ex.Guess()
	if g.Description == "" && req.msg.Text != "" {
		g.Description = req.msg.Text
	}
	return d.saveGuess(ctx, req, g)
}

// saveGuess validates and stores an extracted expense, then confirms it with the
// running total for the user's day.
func (d *Dispatcher) saveGuess(ctx context.Context, req *request, g core.ParsedExpenseGuess) (string, error) {
	if errs := validate.ValidateExpenseGuess(g, req.now); len(errs) > 0 {
		return format.Errors(errs), nil
	}
	cat := core.Other
	if g.Category != "" {
		cat, _ = core.ParseCategory(g.Category)
	}
	date := req.today
	if g.Date != "" {
		parsed, err := core.ParseDate(g.Date)
		if err == nil {
			date = parsed
		}
	}
	rec, err := d.repo.SaveExpense(ctx, core.ExpenseRecord{
		UserID:      req.user.ID,
		Amount:      g.Amount.Decimal,
		Merchant:    validate.Sanitize(g.Merchant, validate.MaxMerchantLen),
		Description: validate.Sanitize(g.Description, validate.MaxDescriptionLen),
		Category:    cat,
		Items:       g.Items,
		Date:        date,
	})
	if err != nil {
		return "", fmt.Errorf("save expense: %w", err)
	}
	log.FromContext(ctx).InfoContext(ctx, "expense saved", log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, rec.ID, log.FieldAmount, rec.Amount.String(), log.FieldCategory, string(rec.Category))

	if d.mirror != nil {
		if err := d.mirror.MirrorExpense(ctx, req.user, rec); err != nil {
			log.FromContext(ctx).ErrorContext(ctx, "expense mirror failed", log.FieldExpenseID, rec.ID, log.FieldError, err)
		}
	}

	todays, err := d.repo.ExpensesBetween(ctx, req.user.ID, core.Today(req.today))
	if err != nil {
		return "", fmt.Errorf("daily total: %w", err)
	}
	return d.fmt.ExpenseSaved(rec, core.Total(todays)), nil
}

func (d *Dispatcher) handleTimeRange(ctx context.Context, req *request) (string, error) {
	title, r := "Today", core.Today(req.today)
scan:
	for _, tok := range tokens(req.text) {
		switch tok {
		case "today":
			title, r = "Today", core.Today(req.today)
			break scan
		case "week":
			title, r = "This week", core.ThisWeek(req.today)
			break scan
		case "month":
			title, r = "This month", core.ThisMonth(req.today)
			break scan
		}
	}
	records, err := d.repo.ExpensesBetween(ctx, req.user.ID, r)
	if err != nil {
		return "", fmt.Errorf("list expenses: %w", err)
	}
	return d.fmt.ExpenseList(title, records), nil
}

func (d *Dispatcher) handleCategories(ctx context.Context, req *request) (string, error) {
	totals, err := d.repo.TotalsByCategory(ctx, req.user.ID, core.Trailing(req.today, trailingDays))
	if err != nil {
		return "", fmt.Errorf("category totals: %w", err)
	}
	return d.fmt.CategorySummary(totals), nil
}

func (d *Dispatcher) handleInsights(ctx context.Context, req *request) (string, error) {
	records, err := d.repo.ExpensesBetween(ctx, req.user.ID, core.Trailing(req.today, trailingDays))
	if err != nil {
		return "", fmt.Errorf("list expenses: %w", err)
	}
	if len(records) == 0 {
		return ai.NoDataMessage, nil
	}
	return d.ai.SummarizeSpending(ctx, records), nil
}

func (d *Dispatcher) handleHelp(context.Context, *request) (string, error) {
	return HelpMessage, nil
}

func (d *Dispatcher) handleFallback(context.Context, *request) (string, error) {
	return FallbackMessage, nil
}

func invalidCategory(c string) string {
	return fmt.Sprintf("❌ Invalid category \"%s\". Use one of: %s", c, strings.Join(core.CategoryNames(), ", "))
}

func invalidAmount(a string) string {
	return fmt.Sprintf("❌ Invalid amount \"%s\". Use a number greater than 0 and less than %s", a, validate.MaxAmount.StringFixed(0))
}
