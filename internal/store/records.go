package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/manicko/mko-birth-reminder-bot/internal/domain"
)

const insertRecordSQL = `
	INSERT INTO birthdays (
		subscriber_id, company, last_name, first_name, position,
		gift_category, birth_date, notice_before_days
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func insertArgs(sid int64, rec domain.Record) []any {
	return []any{
		sid, rec.Company, rec.LastName, rec.FirstName, rec.Position,
		rec.GiftCategory, rec.BirthDate, toNullInt(rec.NoticeBeforeDays),
	}
}

// AddRecords bulk-inserts prepared records in one transaction and returns
// how many were written. Either all rows are committed or none.
func (r *SQLiteRepo) AddRecords(ctx context.Context, sid int64, recs []domain.Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, r.fail("add records", sid, err)
	}
	stmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, r.fail("add records", sid, err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, insertArgs(sid, rec)...); err != nil {
			_ = tx.Rollback()
			return 0, r.fail("add records", sid, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, r.fail("add records", sid, err)
	}
	r.log.Info("records imported", zap.Int64("subscriber_id", sid), zap.Int("rows", len(recs)))
	return len(recs), nil
}

// AddRecord validates raw field input and inserts a single record.
// A missing birth date is logged and reported as domain.ErrMissingBirthDate.
func (r *SQLiteRepo) AddRecord(ctx context.Context, sid int64, fields map[domain.Field]string) (int64, error) {
	rec, err := domain.NewRecord(fields)
	if err != nil {
		r.log.Warn("record rejected", zap.Int64("subscriber_id", sid), zap.Error(err))
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, insertRecordSQL, insertArgs(sid, rec)...)
	if err != nil {
		return 0, r.fail("add record", sid, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, r.fail("add record", sid, err)
	}
	r.log.Info("record added", zap.Int64("subscriber_id", sid), zap.Int64("record_id", id))
	return id, nil
}

// GetRecordByID returns the subscriber's record or ErrNotFound.
func (r *SQLiteRepo) GetRecordByID(ctx context.Context, sid, id int64) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM birthdays WHERE subscriber_id = ? AND id = ?`,
		sid, id,
	)
	rec, bad, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.fail("get record", sid, err)
	}
	if bad != "" {
		r.log.Warn("malformed notice offset", zap.Int64("subscriber_id", sid), zap.Int64("record_id", id), zap.String("value", bad))
	}
	return &rec, nil
}

// UpdateRecordByID validates the given fields like AddRecord does and
// writes only those columns. An empty field set is a no-op.
func (r *SQLiteRepo) UpdateRecordByID(ctx context.Context, sid, id int64, fields map[domain.Field]string) error {
	if len(fields) == 0 {
		return nil
	}
	rec, err := r.GetRecordByID(ctx, sid, id)
	if err != nil {
		return err
	}
	if err := rec.Apply(fields); err != nil {
		r.log.Warn("update rejected", zap.Int64("subscriber_id", sid), zap.Int64("record_id", id), zap.Error(err))
		return err
	}

	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+2)
	for _, f := range domain.Fields {
		if _, ok := fields[f]; !ok {
			continue
		}
		sets = append(sets, columns[f]+" = ?")
		if f == domain.FieldNoticeBeforeDays {
			args = append(args, toNullInt(rec.NoticeBeforeDays))
		} else {
			args = append(args, rec.Get(f))
		}
	}
	args = append(args, sid, id)

	if _, err := r.db.ExecContext(ctx,
		`UPDATE birthdays SET `+strings.Join(sets, ", ")+` WHERE subscriber_id = ? AND id = ?`,
		args...,
	); err != nil {
		return r.fail("update record", sid, err)
	}
	r.log.Info("record updated", zap.Int64("subscriber_id", sid), zap.Int64("record_id", id))
	return nil
}

// DeleteRecordByID removes one record. Deleting a missing id succeeds.
func (r *SQLiteRepo) DeleteRecordByID(ctx context.Context, sid, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM birthdays WHERE subscriber_id = ? AND id = ?`, sid, id)
	if err != nil {
		return r.fail("delete record", sid, err)
	}
	n, _ := res.RowsAffected()
	r.log.Info("record delete",
		zap.Int64("subscriber_id", sid), zap.Int64("record_id", id), zap.Int64("deleted", n))
	return nil
}

// CountRecords returns how many records the subscriber owns.
func (r *SQLiteRepo) CountRecords(ctx context.Context, sid int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM birthdays WHERE subscriber_id = ?`, sid).Scan(&n); err != nil {
		return 0, r.fail("count records", sid, err)
	}
	return n, nil
}

// GetAllRecords returns every record of the subscriber ordered by id.
func (r *SQLiteRepo) GetAllRecords(ctx context.Context, sid int64) ([]domain.Record, error) {
	return r.queryRecords(ctx, "get all records", sid,
		`SELECT `+recordColumns+` FROM birthdays WHERE subscriber_id = ? ORDER BY id`, sid)
}

// Flush deletes all records of the subscriber and keeps the registry row.
func (r *SQLiteRepo) Flush(ctx context.Context, sid int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM birthdays WHERE subscriber_id = ?`, sid)
	if err != nil {
		return r.fail("flush", sid, err)
	}
	n, _ := res.RowsAffected()
	r.log.Info("records flushed", zap.Int64("subscriber_id", sid), zap.Int64("deleted", n))
	return nil
}

func (r *SQLiteRepo) queryRecords(ctx context.Context, op string, sid int64, query string, args ...any) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.fail(op, sid, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		rec, bad, err := scanRecord(rows)
		if err != nil {
			return nil, r.fail(op, sid, err)
		}
		if bad != "" {
			r.log.Warn("malformed notice offset",
				zap.Int64("subscriber_id", sid), zap.Int64("record_id", rec.ID), zap.String("value", bad))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(op, sid, err)
	}
	return out, nil
}
