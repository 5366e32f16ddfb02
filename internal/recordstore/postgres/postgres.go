// Package postgres implements the record store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/recordstore"
)

type Store struct {
	db     *sql.DB
	logger *log.Logger
}

var _ recordstore.Store = (*Store)(nil)

// Config controls how the connection is opened.
type Config struct {
	URL            string
	ConnectRetries int
	RetryDelay     time.Duration
	Migrate        bool
}

// NormalizeURL rewrites postgresql:// to postgres:// and adds sslmode=disable
// when no sslmode is given.
func NormalizeURL(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgresql://") {
		databaseURL = "postgres://" + strings.TrimPrefix(databaseURL, "postgresql://")
	}
	if databaseURL != "" && !strings.Contains(databaseURL, "sslmode=") {
		separator := "?"
		if strings.Contains(databaseURL, "?") {
			separator = "&"
		}
		databaseURL += separator + "sslmode=disable"
	}
	return databaseURL
}

// Open connects, waiting for the database to accept connections, and
// optionally runs migrations.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default(log.ComponentRecords)
	}
	if cfg.ConnectRetries <= 0 {
		cfg.ConnectRetries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	pgcfg, err := pgx.ParseConfig(NormalizeURL(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	db := stdlib.OpenDB(*pgcfg)
	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			break
		}
		if attempt >= cfg.ConnectRetries {
			db.Close()
			return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
		}
		logger.Warn("Database not ready, retrying",
			"attempt", attempt,
			"max_attempts", cfg.ConnectRetries,
			"delay", cfg.RetryDelay,
			"error", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(cfg.RetryDelay):
		}
	}

	if cfg.Migrate {
		if err := RunMigrations(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.Info("Database connection established")
	return &Store{db: db, logger: logger}, nil
}

// NewWithDB wraps an already opened database.
func NewWithDB(db *sql.DB, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default(log.ComponentRecords)
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", recordstore.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) TransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount::text, type, COALESCE(category_id, ''), description,
		       to_char(date, 'YYYY-MM-DD'), created_at, updated_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx     core.Transaction
			amount sql.NullString
			typ    string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &amount, &typ, &tx.CategoryID, &tx.Description,
			&tx.Date, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Amount = core.AmountOf(amount.String)
		tx.Type = core.TransactionType(typ)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *Store) Categories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, user_id, type, is_active
		FROM categories
		WHERE user_id IS NULL OR user_id = $1
		ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c     core.Category
			owner sql.NullString
			typ   string
		)
		if err := rows.Scan(&c.ID, &c.Name, &owner, &typ, &c.IsActive); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if owner.Valid {
			c.UserID = &owner.String
		}
		c.Type = core.TransactionType(typ)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	// Replays of an already applied create are no-ops.
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO transactions (id, user_id, amount, type, category_id, description, date)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING created_at, updated_at`,
		tx.ID, tx.UserID, tx.Amount.Decimal().String(), string(tx.Type), tx.CategoryID, tx.Description, dateArg(tx.Date),
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	s.logger.Debug("Transaction created", log.FieldRecordID, tx.ID, log.FieldUserID, tx.UserID)
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE transactions
		SET amount = $3, type = $4, category_id = NULLIF($5, ''), description = $6, date = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING created_at, updated_at`,
		tx.ID, tx.UserID, tx.Amount.Decimal().String(), string(tx.Type), tx.CategoryID, tx.Description, dateArg(tx.Date),
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, recordstore.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	return s.deleteRow(ctx, "transactions", userID, id)
}

func (s *Store) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO budgets (id, user_id, category_id, amount, period, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::date)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING created_at, updated_at`,
		b.ID, b.UserID, b.CategoryID, amountArg(b.Amount), string(b.Period), b.StartDate, b.EndDate,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	return b, nil
}

func (s *Store) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE budgets
		SET category_id = $3, amount = $4, period = $5, start_date = $6, end_date = NULLIF($7, '')::date, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING created_at, updated_at`,
		b.ID, b.UserID, b.CategoryID, amountArg(b.Amount), string(b.Period), b.StartDate, b.EndDate,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, recordstore.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	return b, nil
}

func (s *Store) DeleteBudget(ctx context.Context, userID, id string) error {
	return s.deleteRow(ctx, "budgets", userID, id)
}

// deleteRow is only called with the fixed table names above.
func (s *Store) deleteRow(ctx context.Context, table, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n == 0 {
		return recordstore.ErrNotFound
	}
	return nil
}

func amountArg(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// dateArg trims timestamps down to the calendar date the column stores.
func dateArg(s string) string {
	if len(s) > len(core.DateLayout) {
		return s[:len(core.DateLayout)]
	}
	return s
}
