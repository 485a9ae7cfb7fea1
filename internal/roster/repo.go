package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"rollbook/internal/apperr"
)

const uniqueViolation = "23505"

const studentColumns = `register_number, roll_number, name, class, department, shift, year, added_by, created_at`

// PostgresRepository persists students in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (Student, error) {
	var s Student
	var year string
	if err := row.Scan(&s.RegisterNumber, &s.RollNumber, &s.Name, &s.Class, &s.Department, &s.Shift, &year, &s.AddedBy, &s.CreatedAt); err != nil {
		return Student{}, err
	}
	s.Year = Year(year)
	if s.RegisterNumber == "" {
		return Student{}, errors.New("student row without register number")
	}
	if !s.Year.Valid() {
		return Student{}, fmt.Errorf("student row %q: invalid year %q", s.RegisterNumber, year)
	}
	return s, nil
}

// CreateStudent inserts a new student.
func (r *PostgresRepository) CreateStudent(ctx context.Context, s Student) (Student, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.RegisterNumber, s.RollNumber, s.Name, s.Class, s.Department, s.Shift, string(s.Year), s.AddedBy, s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Student{}, fmt.Errorf("student %s (%s): %w", s.RegisterNumber, pgErr.ConstraintName, apperr.ErrConflict)
		}
		return Student{}, err
	}
	return s, nil
}

// GetStudent returns one owned student.
func (r *PostgresRepository) GetStudent(ctx context.Context, owner, registerNumber string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+studentColumns+`
		FROM students WHERE register_number = $1 AND added_by = $2
	`, registerNumber, owner)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, fmt.Errorf("student %s: %w", registerNumber, apperr.ErrNotFound)
	}
	return s, err
}

// UpdateStudent applies the non-nil changes.
func (r *PostgresRepository) UpdateStudent(ctx context.Context, owner, registerNumber string, c Changes) (Student, error) {
	var year *string
	if c.Year != nil {
		y := string(*c.Year)
		year = &y
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE students SET
			name = COALESCE($3, name),
			class = COALESCE($4, class),
			department = COALESCE($5, department),
			shift = COALESCE($6, shift),
			year = COALESCE($7, year)
		WHERE register_number = $1 AND added_by = $2
		RETURNING `+studentColumns,
		registerNumber, owner, c.Name, c.Class, c.Department, c.Shift, year)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, fmt.Errorf("student %s: %w", registerNumber, apperr.ErrNotFound)
	}
	return s, err
}

// DeleteStudent removes the student; attendance rows go with it through the
// foreign key's ON DELETE CASCADE.
func (r *PostgresRepository) DeleteStudent(ctx context.Context, owner, registerNumber string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE register_number = $1 AND added_by = $2`, registerNumber, owner)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("student %s: %w", registerNumber, apperr.ErrNotFound)
	}
	return nil
}

// ListStudents returns owner's students by class, oldest first.
func (r *PostgresRepository) ListStudents(ctx context.Context, owner string) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE added_by = $1
		ORDER BY class COLLATE "C", created_at, register_number
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}
