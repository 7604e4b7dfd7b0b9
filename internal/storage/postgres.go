package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"expensebot/internal/core"
	"expensebot/internal/log"
)

const pgExpenseColumns = `id, user_id, amount::text, merchant, description, category, items, expense_date, created_at, updated_at`

// PostgresRepository keeps amounts in NUMERIC columns and reads them back as text,
// so no value ever passes through a float.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *log.Logger
	now    func() time.Time
}

func NewPostgresRepository(ctx context.Context, dsn string, logger *log.Logger) (*PostgresRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := RunPostgresMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresRepository{
		pool:   pool,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) TouchUser(ctx context.Context, id, name, timezone string, now time.Time) (core.User, error) {
	if strings.TrimSpace(id) == "" {
		return core.User{}, core.ErrEmptyUser
	}
	if timezone == "" {
		timezone = "UTC"
	}
	var u core.User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, timezone, created_at, last_active)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			last_active = EXCLUDED.last_active,
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END
		RETURNING id, name, timezone, created_at, last_active`,
		id, name, timezone, now.UTC()).Scan(&u.ID, &u.Name, &u.Timezone, &u.CreatedAt, &u.LastActive)
	if err != nil {
		return core.User{}, fmt.Errorf("touch user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	var u core.User
	err := r.pool.QueryRow(ctx, `SELECT id, name, timezone, created_at, last_active FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Timezone, &u.CreatedAt, &u.LastActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) SaveExpense(ctx context.Context, e core.ExpenseRecord) (core.ExpenseRecord, error) {
	e, err := prepareExpense(e, r.now().UTC())
	if err != nil {
		return e, err
	}
	items, err := json.Marshal(e.Items)
	if err != nil {
		return e, fmt.Errorf("encode items: %w", err)
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO expenses (user_id, amount, merchant, description, category, items, expense_date, created_at, updated_at)
		VALUES ($1, $2::numeric, $3, $4, $5, $6::jsonb, $7::date, $8, $9)
		RETURNING id`,
		e.UserID, e.Amount.String(), e.Merchant, e.Description, string(e.Category), string(items),
		e.Date.String(), e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
	if err != nil {
		return e, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) ExpensesBetween(ctx context.Context, userID string, dr core.DateRange) ([]core.ExpenseRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pgExpenseColumns+` FROM expenses
		WHERE user_id = $1 AND expense_date BETWEEN $2::date AND $3::date
		ORDER BY expense_date DESC, id DESC`,
		userID, dr.From.String(), dr.To.String())
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	return collectPgExpenses(rows)
}

func (r *PostgresRepository) TotalsByCategory(ctx context.Context, userID string, dr core.DateRange) ([]core.CategoryTotal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT category, SUM(amount)::text, COUNT(*) FROM expenses
		WHERE user_id = $1 AND expense_date BETWEEN $2::date AND $3::date
		GROUP BY category`,
		userID, dr.From.String(), dr.To.String())
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var cat, sum string
		var count int64
		if err := rows.Scan(&cat, &sum, &count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		d, err := decimal.NewFromString(sum)
		if err != nil {
			return nil, fmt.Errorf("parse total %q: %w", sum, err)
		}
		totals = append(totals, core.CategoryTotal{Category: core.Category(cat), Total: d, Count: int(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	sortTotals(totals)
	return totals, nil
}

func (r *PostgresRepository) SearchExpenses(ctx context.Context, userID, term string, limit int) ([]core.ExpenseRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pgExpenseColumns+` FROM expenses
		WHERE user_id = $1 AND (description ILIKE $2 OR merchant ILIKE $2 OR category ILIKE $2)
		ORDER BY expense_date DESC, id DESC
		LIMIT $3`,
		userID, likePattern(term), limit)
	if err != nil {
		return nil, fmt.Errorf("search expenses: %w", err)
	}
	return collectPgExpenses(rows)
}

func (r *PostgresRepository) LastExpense(ctx context.Context, userID string) (core.ExpenseRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pgExpenseColumns+` FROM expenses
		WHERE user_id = $1 ORDER BY id DESC LIMIT 1`, userID)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("last expense: %w", err)
	}
	out, err := collectPgExpenses(rows)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	if len(out) == 0 {
		return core.ExpenseRecord{}, ErrNotFound
	}
	return out[0], nil
}

func (r *PostgresRepository) UpdateExpense(ctx context.Context, e core.ExpenseRecord) error {
	if err := e.Validate(); err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE expenses SET amount = $1::numeric, category = $2, merchant = $3, description = $4, updated_at = $5
		WHERE id = $6 AND user_id = $7`,
		e.Amount.String(), string(e.Category), e.Merchant, e.Description, r.now().UTC(), e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteExpense(ctx context.Context, userID string, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SetBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO budgets (user_id, category, limit_amount, period, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5)
		ON CONFLICT (user_id, category, period) DO UPDATE SET
			limit_amount = EXCLUDED.limit_amount,
			updated_at = EXCLUDED.updated_at`,
		b.UserID, string(b.Category), b.Limit.String(), string(b.Period), r.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Budgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, category, limit_amount::text, period FROM budgets
		WHERE user_id = $1 ORDER BY category`, userID)
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

func (r *PostgresRepository) BudgetStatus(ctx context.Context, userID string, dr core.DateRange) ([]core.BudgetStatus, error) {
	budgets, err := r.Budgets(ctx, userID)
	if err != nil || len(budgets) == 0 {
		return nil, err
	}
	totals, err := r.TotalsByCategory(ctx, userID, dr)
	if err != nil {
		return nil, err
	}
	return budgetStatuses(budgets, totals), nil
}

func collectPgExpenses(rows pgx.Rows) ([]core.ExpenseRecord, error) {
	defer rows.Close()
	var out []core.ExpenseRecord
	for rows.Next() {
		var e core.ExpenseRecord
		var amount, cat string
		var items []byte
		var date time.Time
		if err := rows.Scan(&e.ID, &e.UserID, &amount, &e.Merchant, &e.Description, &cat, &items, &date, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", amount, err)
		}
		e.Amount = d
		e.Category = core.Category(cat)
		e.Date = core.DateOf(date)
		if err := json.Unmarshal(items, &e.Items); err != nil || e.Items == nil {
			e.Items = []string{}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}
