package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"expensebot/internal/core"
)

type budgetKey struct {
	user     string
	category core.Category
	period   core.Period
}

// MemoryRepository keeps everything in process memory. Used for tests and demos.
type MemoryRepository struct {
	mu       sync.Mutex
	users    map[string]core.User
	expenses []core.ExpenseRecord
	budgets  map[budgetKey]core.Budget
	nextID   int64
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   map[string]core.User{},
		budgets: map[budgetKey]core.Budget{},
		now:     time.Now,
	}
}

func (m *MemoryRepository) Close() error { return nil }

func (m *MemoryRepository) Ping(context.Context) error { return nil }

func (m *MemoryRepository) TouchUser(_ context.Context, id, name, timezone string, now time.Time) (core.User, error) {
	if strings.TrimSpace(id) == "" {
		return core.User{}, core.ErrEmptyUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		if timezone == "" {
			timezone = "UTC"
		}
		u = core.User{ID: id, Timezone: timezone, CreatedAt: now.UTC()}
	}
	if name != "" {
		u.Name = name
	}
	u.LastActive = now.UTC()
	m.users[id] = u
	return u, nil
}

func (m *MemoryRepository) GetUser(_ context.Context, id string) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return core.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryRepository) SaveExpense(_ context.Context, e core.ExpenseRecord) (core.ExpenseRecord, error) {
	e, err := prepareExpense(e, m.now().UTC())
	if err != nil {
		return e, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	e.Items = append([]string{}, e.Items...)
	m.expenses = append(m.expenses, e)
	return e, nil
}

func (m *MemoryRepository) ExpensesBetween(_ context.Context, userID string, dr core.DateRange) ([]core.ExpenseRecord, error) {
	return m.filter(userID, func(e core.ExpenseRecord) bool { return dr.Contains(e.Date) }, 0), nil
}

func (m *MemoryRepository) TotalsByCategory(ctx context.Context, userID string, dr core.DateRange) ([]core.CategoryTotal, error) {
	records, _ := m.ExpensesBetween(ctx, userID, dr)
	byCat := map[core.Category]*core.CategoryTotal{}
	var totals []core.CategoryTotal
	var order []core.Category
	for _, e := range records {
		t, ok := byCat[e.Category]
		if !ok {
			t = &core.CategoryTotal{Category: e.Category}
			byCat[e.Category] = t
			order = append(order, e.Category)
		}
		t.Total = t.Total.Add(e.Amount)
		t.Count++
	}
	for _, c := range order {
		totals = append(totals, *byCat[c])
	}
	sortTotals(totals)
	return totals, nil
}

func (m *MemoryRepository) SearchExpenses(_ context.Context, userID, term string, limit int) ([]core.ExpenseRecord, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	match := func(e core.ExpenseRecord) bool {
		return strings.Contains(strings.ToLower(e.Description), term) ||
			strings.Contains(strings.ToLower(e.Merchant), term) ||
			strings.Contains(string(e.Category), term)
	}
	return m.filter(userID, match, limit), nil
}

func (m *MemoryRepository) LastExpense(_ context.Context, userID string) (core.ExpenseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.expenses) - 1; i >= 0; i-- {
		if m.expenses[i].UserID == userID {
			return copyExpense(m.expenses[i]), nil
		}
	}
	return core.ExpenseRecord{}, ErrNotFound
}

func (m *MemoryRepository) UpdateExpense(_ context.Context, e core.ExpenseRecord) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.expenses {
		cur := &m.expenses[i]
		if cur.ID == e.ID && cur.UserID == e.UserID {
			cur.Amount, cur.Category = e.Amount, e.Category
			cur.Merchant, cur.Description = e.Merchant, e.Description
			cur.UpdatedAt = m.now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryRepository) DeleteExpense(_ context.Context, userID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.expenses {
		if e.ID == id && e.UserID == userID {
			m.expenses = append(m.expenses[:i], m.expenses[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryRepository) SetBudget(_ context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgets[budgetKey{b.UserID, b.Category, b.Period}] = b
	return nil
}

func (m *MemoryRepository) Budgets(_ context.Context, userID string) ([]core.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Budget
	for k, b := range m.budgets {
		if k.user == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (m *MemoryRepository) BudgetStatus(ctx context.Context, userID string, dr core.DateRange) ([]core.BudgetStatus, error) {
	budgets, _ := m.Budgets(ctx, userID)
	if len(budgets) == 0 {
		return nil, nil
	}
	totals, _ := m.TotalsByCategory(ctx, userID, dr)
	return budgetStatuses(budgets, totals), nil
}

// filter returns copies of the user's matching expenses, newest first.
func (m *MemoryRepository) filter(userID string, keep func(core.ExpenseRecord) bool, limit int) []core.ExpenseRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.ExpenseRecord
	for _, e := range m.expenses {
		if e.UserID == userID && keep(e) {
			out = append(out, copyExpense(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date.Time) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date.Time)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func copyExpense(e core.ExpenseRecord) core.ExpenseRecord {
	e.Items = append([]string{}, e.Items...)
	return e
}
