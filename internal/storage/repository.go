// Package storage is the SQL implementation of the remote data gateway.
// The same queries run on SQLite (modernc) and Postgres (lib/pq); only the
// placeholder style and the timestamp encoding differ between dialects.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"dompet/internal/core"
	"dompet/internal/targets"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

const dateLayout = "2006-01-02"

// timestampLayout is fixed width so text timestamps sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

var ErrCategoryNotFound = targets.ErrCategoryNotFound

// Repository implements targets.Backend on top of database/sql.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLiteRepository opens (creating if needed) the database file at dbPath
// and applies migrations.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open(DialectSQLite.driverName(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	return open(db, DialectSQLite, dbPath)
}

// NewPostgresRepository connects to dsn and applies migrations.
func NewPostgresRepository(dsn string) (*Repository, error) {
	db, err := sql.Open(DialectPostgres.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return open(db, DialectPostgres, dsn)
}

func open(db *sql.DB, d Dialect, dsn string) (*Repository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Repository{db: db, dialect: d, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for Postgres.
func (r *Repository) rebind(q string) string {
	if r.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *Repository) timeArg(t time.Time) any {
	if r.dialect == DialectSQLite {
		return t.UTC().Format(timestampLayout)
	}
	return t.UTC()
}

// dbTime scans timestamps stored natively (Postgres) or as text (SQLite).
type dbTime struct {
	time.Time
}

func (t *dbTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = x
		return nil
	case []byte:
		return t.parse(string(x))
	case string:
		return t.parse(x)
	default:
		return fmt.Errorf("unsupported time value %T", v)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05", dateLayout} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}

const targetColumns = "id, user_id, category, amount, month, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanTarget(s scanner) (core.IncomeTarget, error) {
	var (
		t                core.IncomeTarget
		month            string
		created, updated dbTime
	)
	if err := s.Scan(&t.ID, &t.UserID, &t.Category, &t.Amount.Minor, &month, &created, &updated); err != nil {
		return core.IncomeTarget{}, err
	}
	t.Month = core.MonthKey(month)
	t.CreatedAt = created.Time
	t.UpdatedAt = updated.Time
	return t, nil
}

// SelectTargets implements targets.Gateway.
func (r *Repository) SelectTargets(ctx context.Context, userID string) ([]core.IncomeTarget, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(
		"SELECT "+targetColumns+" FROM income_targets WHERE user_id = ? ORDER BY created_at, id"), userID)
	if err != nil {
		return nil, fmt.Errorf("select income targets: %w", err)
	}
	defer rows.Close()

	out := []core.IncomeTarget{}
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertTarget implements targets.Gateway. The row keyed by
// (user_id, category, month) keeps its id and created_at on update.
func (r *Repository) UpsertTarget(ctx context.Context, t core.IncomeTarget) (core.IncomeTarget, error) {
	if err := t.Amount.Validate(); err != nil {
		return core.IncomeTarget{}, err
	}
	now := r.timeArg(r.now())
	row := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO income_targets (id, user_id, category, amount, month, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, category, month)
		DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at
		RETURNING `+targetColumns),
		uuid.NewString(), t.UserID, t.Category, t.Amount.Minor, string(t.Month), now, now)

	saved, err := scanTarget(row)
	if err != nil {
		return core.IncomeTarget{}, fmt.Errorf("upsert income target: %w", err)
	}
	slog.DebugContext(ctx, "Income target saved",
		"component", "gateway",
		"id", saved.ID,
		"category", saved.Category,
		"month", string(saved.Month))
	return saved, nil
}

// DeleteTargets implements targets.Gateway.
func (r *Repository) DeleteTargets(ctx context.Context, userID, category string, month core.MonthKey) error {
	_, err := r.db.ExecContext(ctx, r.rebind(
		"DELETE FROM income_targets WHERE user_id = ? AND category = ? AND month = ?"),
		userID, category, string(month))
	if err != nil {
		return fmt.Errorf("delete income targets: %w", err)
	}
	return nil
}

// ListCustomCategories implements targets.CategoryGateway.
func (r *Repository) ListCustomCategories(ctx context.Context, userID string) ([]core.CustomCategory, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(
		"SELECT id, user_id, type, parent, name, created_at FROM custom_categories WHERE user_id = ? ORDER BY created_at, name"),
		userID)
	if err != nil {
		return nil, fmt.Errorf("select custom categories: %w", err)
	}
	defer rows.Close()

	var out []core.CustomCategory
	for rows.Next() {
		var (
			c       core.CustomCategory
			typ     string
			created dbTime
		)
		if err := rows.Scan(&c.ID, &c.UserID, &typ, &c.Parent, &c.Name, &created); err != nil {
			return nil, fmt.Errorf("scan custom category: %w", err)
		}
		c.Type = core.TransactionType(typ)
		c.CreatedAt = created.Time
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddCustomCategory implements targets.CategoryGateway. Adding an existing
// name is a no-op that returns the stored category.
func (r *Repository) AddCustomCategory(ctx context.Context, c core.CustomCategory) (core.CustomCategory, error) {
	if err := c.Validate(); err != nil {
		return core.CustomCategory{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	c.ID = uuid.NewString()
	c.CreatedAt = r.now().UTC()

	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO custom_categories (id, user_id, type, parent, name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, type, name) DO NOTHING`),
		c.ID, c.UserID, string(c.Type), c.Parent, c.Name, r.timeArg(c.CreatedAt))
	if err != nil {
		return core.CustomCategory{}, fmt.Errorf("insert custom category: %w", err)
	}

	var created dbTime
	err = r.db.QueryRowContext(ctx, r.rebind(
		"SELECT id, parent, created_at FROM custom_categories WHERE user_id = ? AND type = ? AND name = ?"),
		c.UserID, string(c.Type), c.Name).Scan(&c.ID, &c.Parent, &created)
	if err != nil {
		return core.CustomCategory{}, fmt.Errorf("reload custom category: %w", err)
	}
	c.CreatedAt = created.Time
	return c, nil
}

// DeleteCustomCategory implements targets.CategoryGateway. The user's income
// targets recorded under the category are deleted in the same transaction.
func (r *Repository) DeleteCustomCategory(ctx context.Context, userID string, typ core.TransactionType, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, r.rebind(
		"DELETE FROM custom_categories WHERE user_id = ? AND type = ? AND name = ?"),
		userID, string(typ), name)
	if err != nil {
		return fmt.Errorf("delete custom category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, name)
	}

	if typ == core.TypeIncome {
		if _, err := tx.ExecContext(ctx, r.rebind(
			"DELETE FROM income_targets WHERE user_id = ? AND category = ?"),
			userID, name); err != nil {
			return fmt.Errorf("delete category targets: %w", err)
		}
	}
	return tx.Commit()
}

// ListTransactions implements targets.TransactionReader.
func (r *Repository) ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, user_id, amount, category, subcategory, date, type, description
		FROM transactions
		WHERE user_id = ? AND date >= ? AND date < ?
		ORDER BY date, id`),
		userID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t    core.Transaction
			date dbTime
			typ  string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount.Minor, &t.Category, &t.Subcategory, &date, &typ, &t.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Date = date.Time
		t.Type = core.TransactionType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertTransaction records a transaction. Transactions are read-only for the
// application; this exists for imports and fixtures.
func (r *Repository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO transactions (id, user_id, amount, category, subcategory, date, type, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.UserID, t.Amount.Minor, t.Category, t.Subcategory, t.Date.Format(dateLayout), string(t.Type), t.Description)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}
