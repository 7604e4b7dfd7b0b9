package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"expensebot/internal/core"
	"expensebot/internal/log"
)

const expenseColumns = `id, user_id, amount, merchant, description, category, items, expense_date, created_at, updated_at`

// SQLiteRepository stores amounts and dates as TEXT so decimals and calendar
// dates round-trip exactly. Aggregation happens in Go on decimal values.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer connection avoids SQLITE_BUSY between queue workers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) TouchUser(ctx context.Context, id, name, timezone string, now time.Time) (core.User, error) {
	if strings.TrimSpace(id) == "" {
		return core.User{}, core.ErrEmptyUser
	}
	if timezone == "" {
		timezone = "UTC"
	}
	ts := formatTime(now)
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, timezone, created_at, last_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_active = excluded.last_active,
			name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE users.name END
		RETURNING id, name, timezone, created_at, last_active`,
		id, name, timezone, ts, ts)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("touch user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, timezone, created_at, last_active FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) SaveExpense(ctx context.Context, e core.ExpenseRecord) (core.ExpenseRecord, error) {
	e, err := prepareExpense(e, r.now().UTC())
	if err != nil {
		return e, err
	}
	items, err := json.Marshal(e.Items)
	if err != nil {
		return e, fmt.Errorf("encode items: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (user_id, amount, merchant, description, category, items, expense_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Amount.String(), e.Merchant, e.Description, string(e.Category), string(items),
		e.Date.String(), formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return e, fmt.Errorf("insert expense: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return e, fmt.Errorf("insert expense id: %w", err)
	}
	r.logger.DebugContext(ctx, "expense saved", log.FieldExpenseID, e.ID, log.FieldUser, e.UserID)
	return e, nil
}

func (r *SQLiteRepository) ExpensesBetween(ctx context.Context, userID string, dr core.DateRange) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = ? AND expense_date >= ? AND expense_date <= ?
		ORDER BY expense_date DESC, id DESC`,
		userID, dr.From.String(), dr.To.String())
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	return collectExpenses(rows)
}

func (r *SQLiteRepository) TotalsByCategory(ctx context.Context, userID string, dr core.DateRange) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, amount FROM expenses
		WHERE user_id = ? AND expense_date >= ? AND expense_date <= ?`,
		userID, dr.From.String(), dr.To.String())
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	byCat := map[core.Category]*core.CategoryTotal{}
	var order []core.Category
	for rows.Next() {
		var cat, amount string
		if err := rows.Scan(&cat, &amount); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", amount, err)
		}
		c := core.Category(cat)
		t, ok := byCat[c]
		if !ok {
			t = &core.CategoryTotal{Category: c}
			byCat[c] = t
			order = append(order, c)
		}
		t.Total = t.Total.Add(d)
		t.Count++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	totals := make([]core.CategoryTotal, 0, len(order))
	for _, c := range order {
		totals = append(totals, *byCat[c])
	}
	sortTotals(totals)
	return totals, nil
}

func (r *SQLiteRepository) SearchExpenses(ctx context.Context, userID, term string, limit int) ([]core.ExpenseRecord, error) {
	pattern := likePattern(term)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = ? AND (
			lower(description) LIKE ? ESCAPE '\' OR
			lower(merchant) LIKE ? ESCAPE '\' OR
			category LIKE ? ESCAPE '\')
		ORDER BY expense_date DESC, id DESC
		LIMIT ?`,
		userID, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search expenses: %w", err)
	}
	return collectExpenses(rows)
}

func (r *SQLiteRepository) LastExpense(ctx context.Context, userID string) (core.ExpenseRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = ? ORDER BY id DESC LIMIT 1`, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, ErrNotFound
	}
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("last expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.ExpenseRecord) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.UpdatedAt = r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET amount = ?, category = ?, merchant = ?, description = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		e.Amount.String(), string(e.Category), e.Merchant, e.Description, formatTime(e.UpdatedAt), e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) SetBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, category, limit_amount, period, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, category, period) DO UPDATE SET
			limit_amount = excluded.limit_amount,
			updated_at = excluded.updated_at`,
		b.UserID, string(b.Category), b.Limit.String(), string(b.Period), formatTime(r.now().UTC()))
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Budgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, category, limit_amount, period FROM budgets
		WHERE user_id = ? ORDER BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		var cat, limit, period string
		if err := rows.Scan(&b.UserID, &cat, &limit, &period); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		if b.Limit, err = decimal.NewFromString(limit); err != nil {
			return nil, fmt.Errorf("parse budget limit %q: %w", limit, err)
		}
		b.Category, b.Period = core.Category(cat), core.Period(period)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) BudgetStatus(ctx context.Context, userID string, dr core.DateRange) ([]core.BudgetStatus, error) {
	budgets, err := r.Budgets(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(budgets) == 0 {
		return nil, nil
	}
	totals, err := r.TotalsByCategory(ctx, userID, dr)
	if err != nil {
		return nil, err
	}
	return budgetStatuses(budgets, totals), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (core.User, error) {
	var u core.User
	var created, active string
	if err := row.Scan(&u.ID, &u.Name, &u.Timezone, &created, &active); err != nil {
		return u, err
	}
	u.CreatedAt = parseTime(created)
	u.LastActive = parseTime(active)
	return u, nil
}

func scanExpense(row rowScanner) (core.ExpenseRecord, error) {
	var e core.ExpenseRecord
	var amount, cat, items, date, created, updated string
	if err := row.Scan(&e.ID, &e.UserID, &amount, &e.Merchant, &e.Description, &cat, &items, &date, &created, &updated); err != nil {
		return e, err
	}
	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return e, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return e, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	if err := json.Unmarshal([]byte(items), &e.Items); err != nil || e.Items == nil {
		e.Items = []string{}
	}
	e.Category = core.Category(cat)
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	return e, nil
}

func collectExpenses(rows *sql.Rows) ([]core.ExpenseRecord, error) {
	defer rows.Close()
	var out []core.ExpenseRecord
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
