package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"rollbook/internal/apperr"
)

// Repository persists students. Every method is scoped to the owning user.
type Repository interface {
	CreateStudent(ctx context.Context, s Student) (Student, error)
	GetStudent(ctx context.Context, owner, registerNumber string) (Student, error)
	UpdateStudent(ctx context.Context, owner, registerNumber string, c Changes) (Student, error)
	// DeleteStudent removes the student together with its attendance rows.
	DeleteStudent(ctx context.Context, owner, registerNumber string) error
	// ListStudents orders by class, then by creation time ascending.
	ListStudents(ctx context.Context, owner string) ([]Student, error)
}

// ProfileChecker confirms that an authenticated subject has a profile row.
type ProfileChecker interface {
	HasProfile(ctx context.Context, id string) (bool, error)
}

// Service implements the roster operations.
type Service struct {
	repo     Repository
	profiles ProfileChecker
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, profiles ProfileChecker) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Add validates f and persists a new student owned by actor. Invalid input
// never reaches the repository.
func (s *Service) Add(ctx context.Context, actor string, f Fields) (Student, error) {
	f = f.trimmed()
	if err := validateFields(s.validate, f); err != nil {
		return Student{}, err
	}
	if actor == "" {
		return Student{}, apperr.ErrUnauthenticated
	}
	ok, err := s.profiles.HasProfile(ctx, actor)
	if err != nil {
		return Student{}, err
	}
	if !ok {
		return Student{}, fmt.Errorf("user %s: %w", actor, apperr.ErrProfileMissing)
	}

	shift := f.Shift
	if shift == 0 {
		shift = DefaultShift
	}
	return s.repo.CreateStudent(ctx, Student{
		RegisterNumber: f.RegisterNumber,
		RollNumber:     f.RollNumber,
		Name:           f.Name,
		Class:          f.Class,
		Department:     f.Department,
		Shift:          shift,
		Year:           Year(f.Year),
		AddedBy:        actor,
		CreatedAt:      s.now(),
	})
}

// Get returns one of actor's students.
func (s *Service) Get(ctx context.Context, actor, registerNumber string) (Student, error) {
	if actor == "" {
		return Student{}, apperr.ErrUnauthenticated
	}
	return s.repo.GetStudent(ctx, actor, strings.TrimSpace(registerNumber))
}

// Update changes the mutable attributes of a student.
func (s *Service) Update(ctx context.Context, actor, registerNumber string, c Changes) (Student, error) {
	if actor == "" {
		return Student{}, apperr.ErrUnauthenticated
	}
	c = c.trimmed()
	if err := validateChanges(s.validate, c); err != nil {
		return Student{}, err
	}
	registerNumber = strings.TrimSpace(registerNumber)
	if c.Empty() {
		return s.repo.GetStudent(ctx, actor, registerNumber)
	}
	return s.repo.UpdateStudent(ctx, actor, registerNumber, c)
}

// Delete removes a student and its attendance. It is irreversible, so the
// caller has to pass confirmed=true.
func (s *Service) Delete(ctx context.Context, actor, registerNumber string, confirmed bool) error {
	if actor == "" {
		return apperr.ErrUnauthenticated
	}
	if !confirmed {
		return fmt.Errorf("delete student %s: %w", registerNumber, apperr.ErrConfirmationRequired)
	}
	return s.repo.DeleteStudent(ctx, actor, strings.TrimSpace(registerNumber))
}

// List returns actor's roster ordered by class, then oldest-added first.
func (s *Service) List(ctx context.Context, actor string) ([]Student, error) {
	if actor == "" {
		return nil, apperr.ErrUnauthenticated
	}
	return s.repo.ListStudents(ctx, actor)
}
