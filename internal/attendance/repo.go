package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"rollbook/internal/apperr"
)

// Repository persists attendance rows recorded by a user.
type Repository interface {
	// ListByDate returns owner's rows for date restricted to keys.
	ListByDate(ctx context.Context, owner string, date time.Time, keys []string) ([]Record, error)
	// ListRange returns owner's rows with from <= date <= to.
	ListRange(ctx context.Context, owner string, from, to time.Time) ([]Record, error)
	// ReplaceDay atomically removes owner's rows for date and the touched
	// students, then writes one row per entry.
	ReplaceDay(ctx context.Context, owner string, date time.Time, touched []string, entries map[string]Status) error
}

// PostgresRepository persists attendance data in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = `id, register_number, date, status, recorded_by, created_at`

// ListByDate returns the rows of one date.
func (r *PostgresRepository) ListByDate(ctx context.Context, owner string, date time.Time, keys []string) ([]Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	args := []any{Day(date), owner}
	for _, k := range keys {
		args = append(args, k)
	}
	query := `SELECT ` + recordColumns + ` FROM attendance
		WHERE date = $1 AND recorded_by = $2 AND register_number IN (` + placeholders(3, len(keys)) + `)
		ORDER BY register_number`
	return r.query(ctx, query, args...)
}

// ListRange returns the rows of an inclusive date range.
func (r *PostgresRepository) ListRange(ctx context.Context, owner string, from, to time.Time) ([]Record, error) {
	return r.query(ctx, `SELECT `+recordColumns+` FROM attendance
		WHERE recorded_by = $1 AND date >= $2 AND date <= $3
		ORDER BY date, register_number`, owner, Day(from), Day(to))
}

// ReplaceDay deletes and rewrites a day's rows in one transaction. The
// (register_number, date) unique constraint backs the upsert, so concurrent
// savers can overwrite each other but never leave duplicates.
func (r *PostgresRepository) ReplaceDay(ctx context.Context, owner string, date time.Time, touched []string, entries map[string]Status) error {
	keys, err := ReplacementKeys(touched, entries)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	day := Day(date)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if len(entries) > 0 {
		if err := checkOwned(ctx, tx, owner, sortedKeys(entries)); err != nil {
			return err
		}
	}

	args := []any{day, owner}
	for _, k := range keys {
		args = append(args, k)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM attendance
		WHERE date = $1 AND recorded_by = $2 AND register_number IN (`+placeholders(3, len(keys))+`)
	`, args...); err != nil {
		return fmt.Errorf("clear attendance for %s: %w", day.Format(DateLayout), err)
	}

	for _, k := range sortedKeys(entries) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attendance (id, register_number, date, status, recorded_by)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (register_number, date) DO UPDATE SET
				status = EXCLUDED.status,
				recorded_by = EXCLUDED.recorded_by
		`, uuid.NewString(), k, day, string(entries[k]), owner); err != nil {
			return fmt.Errorf("write attendance for %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// checkOwned fails with ErrNotFound unless owner's roster holds every key.
func checkOwned(ctx context.Context, tx *sql.Tx, owner string, keys []string) error {
	args := []any{owner}
	for _, k := range keys {
		args = append(args, k)
	}
	rows, err := tx.QueryContext(ctx, `
		SELECT register_number FROM students
		WHERE added_by = $1 AND register_number IN (`+placeholders(2, len(keys))+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("check roster: %w", err)
	}
	defer rows.Close()
	owned := make(map[string]bool, len(keys))
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return err
		}
		owned[k] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, k := range keys {
		if !owned[k] {
			return fmt.Errorf("student %s: %w", k, apperr.ErrNotFound)
		}
	}
	return nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		var status string
		if err := rows.Scan(&rec.ID, &rec.RegisterNumber, &rec.Date, &status, &rec.RecordedBy, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		if !rec.Status.Valid() {
			return nil, fmt.Errorf("attendance row %s: invalid status %q", rec.ID, status)
		}
		rec.Date = Day(rec.Date)
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ReplacementKeys validates entries and returns the sorted union of touched
// and entry keys.
func ReplacementKeys(touched []string, entries map[string]Status) ([]string, error) {
	set := make(map[string]struct{}, len(touched)+len(entries))
	for _, k := range touched {
		set[k] = struct{}{}
	}
	for k, s := range entries {
		if !s.Valid() {
			return nil, apperr.Invalid("status", fmt.Sprintf("%s: cannot store status %q", k, s))
		}
		set[k] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func sortedKeys(entries map[string]Status) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(start+i)
	}
	return strings.Join(parts, ", ")
}
