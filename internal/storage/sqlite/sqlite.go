// Package sqlite implements the persistence ports on a local SQLite
// file, the durable single-user substrate of the tracker.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/k4rnaj1k/finance-tracker/internal/core"
	"github.com/k4rnaj1k/finance-tracker/internal/storage"

	_ "modernc.org/sqlite"
)

const (
	keyIncome          = "income"
	keyIncomeCurrency  = "incomeCurrency"
	keyDefaultCurrency = "defaultCurrency"
	keyPeriodStart     = "incomeMonthStart"
	keyPrevPeriodStart = "previousIncomeMonthStart"
)

// Repository is a SQLite-backed storage.Store. A single connection
// serializes conflicting writes within a collection.
type Repository struct {
	db     *sql.DB
	closed atomic.Bool
}

var _ storage.Store = (*Repository)(nil)

// New opens (creating if needed) the database at dbPath and brings the
// schema up to date, seeding default categories, settings and the
// default exchange rate on first initialization.
func New(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Writes must queue behind one connection; SQLite has no row locks.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite store ready", "path", dbPath)
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.db.Close()
}

// guard maps lifecycle state to the shared error taxonomy before any
// statement runs.
func (r *Repository) guard() error {
	if r.db == nil || r.closed.Load() {
		return storage.ErrClosed
	}
	return nil
}

func ioErr(op string, err error) error {
	return &storage.IOError{Op: op, Err: err}
}

// --- expenses ---

const expenseColumns = "id, amount, description, category_id, date, currency"

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e        core.Expense
		amount   string
		dateNano int64
		currency string
	)
	if err := row.Scan(&e.ID, &amount, &e.Description, &e.CategoryID, &dateNano, &currency); err != nil {
		return core.Expense{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("decode amount %q: %w", amount, err)
	}
	e.Amount = d
	e.Date = time.Unix(0, dateNano).UTC()
	e.Currency = core.Currency(currency)
	return e, nil
}

func (r *Repository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses ORDER BY date DESC")
	if err != nil {
		return nil, ioErr("list expenses", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, ioErr("scan expense", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list expenses", err)
	}
	return expenses, nil
}

func (r *Repository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	if err := r.guard(); err != nil {
		return core.Expense{}, err
	}
	row := r.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, ioErr("get expense", err)
	}
	return e, nil
}

func (r *Repository) PutExpense(ctx context.Context, e core.Expense) error {
	if err := r.guard(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, amount, description, category_id, date, currency)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			description = excluded.description,
			category_id = excluded.category_id,
			date = excluded.date,
			currency = excluded.currency`,
		e.ID, e.Amount.String(), e.Description, e.CategoryID,
		e.Date.UTC().UnixNano(), string(e.Currency))
	if err != nil {
		return ioErr("put expense", err)
	}
	return nil
}

func (r *Repository) DeleteExpense(ctx context.Context, id string) error {
	if err := r.guard(); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
		return ioErr("delete expense", err)
	}
	return nil
}

func (r *Repository) ReplaceExpenses(ctx context.Context, expenses []core.Expense) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.inTx(ctx, "replace expenses", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM expenses"); err != nil {
			return err
		}
		for _, e := range expenses {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO expenses (id, amount, description, category_id, date, currency)
				VALUES (?, ?, ?, ?, ?, ?)`,
				e.ID, e.Amount.String(), e.Description, e.CategoryID,
				e.Date.UTC().UnixNano(), string(e.Currency)); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- categories ---

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, color FROM categories ORDER BY name")
	if err != nil {
		return nil, ioErr("list categories", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color); err != nil {
			return nil, ioErr("scan category", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list categories", err)
	}
	return categories, nil
}

func (r *Repository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	if err := r.guard(); err != nil {
		return core.Category{}, err
	}
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, color FROM categories WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Category{}, ioErr("get category", err)
	}
	return c, nil
}

func (r *Repository) PutCategory(ctx context.Context, c core.Category) error {
	if err := r.guard(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, color) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color`,
		c.ID, c.Name, c.Color)
	if err != nil {
		return ioErr("put category", err)
	}
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	if err := r.guard(); err != nil {
		return err
	}
	// No cascade: expenses keep their categoryId even when it dangles.
	if _, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id); err != nil {
		return ioErr("delete category", err)
	}
	return nil
}

func (r *Repository) ReplaceCategories(ctx context.Context, categories []core.Category) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.inTx(ctx, "replace categories", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM categories"); err != nil {
			return err
		}
		for _, c := range categories {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO categories (id, name, color) VALUES (?, ?, ?)",
				c.ID, c.Name, c.Color); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- exchange rates ---

func scanRate(row interface{ Scan(...any) error }) (core.ExchangeRate, error) {
	var (
		r        core.ExchangeRate
		dateNano int64
		rate     string
	)
	if err := row.Scan(&r.ID, &dateNano, &rate); err != nil {
		return core.ExchangeRate{}, err
	}
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return core.ExchangeRate{}, fmt.Errorf("decode rate %q: %w", rate, err)
	}
	r.Rate = d
	r.Date = time.Unix(0, dateNano).UTC()
	return r, nil
}

func (r *Repository) ListRates(ctx context.Context) ([]core.ExchangeRate, error) {
	if err := r.guard(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, date, rate FROM exchange_rates ORDER BY date DESC")
	if err != nil {
		return nil, ioErr("list rates", err)
	}
	defer rows.Close()

	var rates []core.ExchangeRate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, ioErr("scan rate", err)
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list rates", err)
	}
	return rates, nil
}

func (r *Repository) LatestRate(ctx context.Context) (core.ExchangeRate, error) {
	if err := r.guard(); err != nil {
		return core.ExchangeRate{}, err
	}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, date, rate FROM exchange_rates ORDER BY date DESC LIMIT 1")
	rate, err := scanRate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExchangeRate{}, storage.ErrNotFound
	}
	if err != nil {
		return core.ExchangeRate{}, ioErr("latest rate", err)
	}
	return rate, nil
}

func (r *Repository) PutRate(ctx context.Context, rate core.ExchangeRate) error {
	if err := r.guard(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (id, date, rate) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET date = excluded.date, rate = excluded.rate`,
		rate.ID, rate.Date.UTC().UnixNano(), rate.Rate.String())
	if err != nil {
		return ioErr("put rate", err)
	}
	return nil
}

func (r *Repository) DeleteRate(ctx context.Context, id string) error {
	if err := r.guard(); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM exchange_rates WHERE id = ?", id); err != nil {
		return ioErr("delete rate", err)
	}
	return nil
}

func (r *Repository) ReplaceRates(ctx context.Context, rates []core.ExchangeRate) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.inTx(ctx, "replace rates", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM exchange_rates"); err != nil {
			return err
		}
		for _, rate := range rates {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO exchange_rates (id, date, rate) VALUES (?, ?, ?)",
				rate.ID, rate.Date.UTC().UnixNano(), rate.Rate.String()); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- settings ---

func (r *Repository) Settings(ctx context.Context) (core.Settings, error) {
	if err := r.guard(); err != nil {
		return core.Settings{}, err
	}
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return core.Settings{}, ioErr("load settings", err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return core.Settings{}, ioErr("scan setting", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return core.Settings{}, ioErr("load settings", err)
	}

	s := core.DefaultSettings()
	if v, ok := values[keyIncome]; ok {
		if d, err := decimal.NewFromString(v); err == nil {
			s.Income = d
		}
	}
	if v, ok := values[keyIncomeCurrency]; ok {
		s.IncomeCurrency = core.Currency(v)
	}
	if v, ok := values[keyDefaultCurrency]; ok {
		s.DefaultCurrency = core.Currency(v)
	}
	s.IncomeMonthStart = parseStoredTime(values[keyPeriodStart])
	s.PreviousIncomeMonthStart = parseStoredTime(values[keyPrevPeriodStart])
	return s, nil
}

func (r *Repository) SaveSettings(ctx context.Context, s core.Settings) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.inTx(ctx, "save settings", func(tx *sql.Tx) error {
		set := func(key, value string) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO settings (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
			return err
		}
		unset := func(key string) error {
			_, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
			return err
		}

		if err := set(keyIncome, s.Income.String()); err != nil {
			return err
		}
		if err := set(keyIncomeCurrency, string(s.IncomeCurrency)); err != nil {
			return err
		}
		if err := set(keyDefaultCurrency, string(s.DefaultCurrency)); err != nil {
			return err
		}
		for key, t := range map[string]*time.Time{
			keyPeriodStart:     s.IncomeMonthStart,
			keyPrevPeriodStart: s.PreviousIncomeMonthStart,
		} {
			if t == nil {
				if err := unset(key); err != nil {
					return err
				}
				continue
			}
			if err := set(key, t.UTC().Format(time.RFC3339Nano)); err != nil {
				return err
			}
		}
		return nil
	})
}

func parseStoredTime(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func (r *Repository) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ioErr(op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return ioErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return ioErr(op, err)
	}
	return nil
}
