package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct {
	db  *sql.DB
	log *zap.Logger
}

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Apply PRAGMAs and run migrations.
	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db, log: log.Named("store")}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// fail logs a storage error where it happened and hands it back to the caller.
func (r *SQLiteRepo) fail(op string, sid int64, err error) error {
	r.log.Error(op+" failed", zap.Int64("subscriber_id", sid), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

// EnsureSubscriber inserts the registry row if missing, otherwise touches it.
func (r *SQLiteRepo) EnsureSubscriber(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO tg_users (tg_user_id, last_interaction_date)
		VALUES (?, ?)`,
		id, formatTime(at),
	)
	if err != nil {
		return false, r.fail("ensure subscriber", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		r.log.Info("subscriber registered", zap.Int64("subscriber_id", id))
		return true, nil
	}

	if _, err := r.db.ExecContext(ctx, `
		UPDATE tg_users SET last_interaction_date = ? WHERE tg_user_id = ?`,
		formatTime(at), id,
	); err != nil {
		return false, r.fail("touch subscriber", id, err)
	}
	return false, nil
}

// GetSubscriber returns a subscriber or ErrNotFound.
func (r *SQLiteRepo) GetSubscriber(ctx context.Context, id int64) (*domain.Subscriber, error) {
	var (
		last   string
		notify int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT last_interaction_date, notify_before_days
		FROM tg_users
		WHERE tg_user_id = ?`,
		id,
	).Scan(&last, &notify)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.fail("get subscriber", id, err)
	}
	return &domain.Subscriber{
		ID:               id,
		LastInteraction:  parseTime(last),
		NotifyBeforeDays: notify,
	}, nil
}

// ListSubscriberIDs returns all registered subscribers in ascending order.
func (r *SQLiteRepo) ListSubscriberIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tg_user_id FROM tg_users ORDER BY tg_user_id`)
	if err != nil {
		return nil, r.fail("list subscribers", 0, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, r.fail("list subscribers", 0, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("list subscribers", 0, err)
	}
	return ids, nil
}

// CountSubscribers returns the registry size.
func (r *SQLiteRepo) CountSubscribers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tg_users`).Scan(&n); err != nil {
		return 0, r.fail("count subscribers", 0, err)
	}
	return n, nil
}

// SetNotifyBeforeDays stores the subscriber's preferred look-ahead window.
func (r *SQLiteRepo) SetNotifyBeforeDays(ctx context.Context, id int64, days int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tg_users SET notify_before_days = ? WHERE tg_user_id = ?`,
		days, id,
	)
	if err != nil {
		return r.fail("set notify days", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSubscriber drops the registry row and every record of the subscriber.
func (r *SQLiteRepo) DeleteSubscriber(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.fail("delete subscriber", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM birthdays WHERE subscriber_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return r.fail("delete subscriber", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tg_users WHERE tg_user_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return r.fail("delete subscriber", id, err)
	}
	if err := tx.Commit(); err != nil {
		return r.fail("delete subscriber", id, err)
	}
	r.log.Info("subscriber deleted", zap.Int64("subscriber_id", id))
	return nil
}
