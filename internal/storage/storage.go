// Package storage persists users, expenses and budgets. All user-scoped mutations are
// single statements so concurrent readers never observe a half-applied change.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensebot/internal/core"
)

var ErrNotFound = errors.New("not found")

// Repository is the persistence surface the bot depends on.
type Repository interface {
	// TouchUser creates the user on first contact, otherwise bumps last-active and
	// refreshes a non-empty display name. timezone is only used on creation.
	TouchUser(ctx context.Context, id, name, timezone string, now time.Time) (core.User, error)
	GetUser(ctx context.Context, id string) (core.User, error)

	SaveExpense(ctx context.Context, e core.ExpenseRecord) (core.ExpenseRecord, error)
	// ExpensesBetween returns the user's expenses in r, newest first.
	ExpensesBetween(ctx context.Context, userID string, r core.DateRange) ([]core.ExpenseRecord, error)
	TotalsByCategory(ctx context.Context, userID string, r core.DateRange) ([]core.CategoryTotal, error)
	// SearchExpenses matches term against description, merchant and category, newest first.
	SearchExpenses(ctx context.Context, userID, term string, limit int) ([]core.ExpenseRecord, error)
	// LastExpense returns the most recently created expense or ErrNotFound.
	LastExpense(ctx context.Context, userID string) (core.ExpenseRecord, error)
	// UpdateExpense rewrites the mutable fields of e and its updated-at timestamp.
	UpdateExpense(ctx context.Context, e core.ExpenseRecord) error
	DeleteExpense(ctx context.Context, userID string, id int64) error

	SetBudget(ctx context.Context, b core.Budget) error
	Budgets(ctx context.Context, userID string) ([]core.Budget, error)
	// BudgetStatus joins the user's budgets with what was spent in the given window.
	BudgetStatus(ctx context.Context, userID string, r core.DateRange) ([]core.BudgetStatus, error)

	Ping(ctx context.Context) error
	Close() error
}

// budgetStatuses pairs every budget with the matching category total.
func budgetStatuses(budgets []core.Budget, totals []core.CategoryTotal) []core.BudgetStatus {
	spent := make(map[core.Category]decimal.Decimal, len(totals))
	for _, t := range totals {
		spent[t.Category] = t.Total
	}
	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, core.NewBudgetStatus(b, spent[b.Category]))
	}
	return out
}

// sortTotals orders totals by descending amount, then category name.
func sortTotals(totals []core.CategoryTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].Total.Equal(totals[j].Total) {
			return totals[i].Category < totals[j].Category
		}
		return totals[i].Total.GreaterThan(totals[j].Total)
	})
}

// likePattern escapes LIKE metacharacters and wraps term for a substring match.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

func prepareExpense(e core.ExpenseRecord, now time.Time) (core.ExpenseRecord, error) {
	if err := e.Validate(); err != nil {
		return e, err
	}
	if e.Items == nil {
		e.Items = []string{}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = e.CreatedAt
	return e, nil
}
