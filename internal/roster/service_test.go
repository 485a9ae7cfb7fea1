package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/apperr"
)

type fakeRepo struct {
	students map[string]Student
	writes   int
}

func newFakeRepo() *fakeRepo { return &fakeRepo{students: map[string]Student{}} }

func (r *fakeRepo) CreateStudent(_ context.Context, s Student) (Student, error) {
	r.writes++
	if _, ok := r.students[s.RegisterNumber]; ok {
		return Student{}, apperr.ErrConflict
	}
	r.students[s.RegisterNumber] = s
	return s, nil
}

func (r *fakeRepo) GetStudent(_ context.Context, owner, reg string) (Student, error) {
	s, ok := r.students[reg]
	if !ok || s.AddedBy != owner {
		return Student{}, apperr.ErrNotFound
	}
	return s, nil
}

func (r *fakeRepo) UpdateStudent(ctx context.Context, owner, reg string, c Changes) (Student, error) {
	r.writes++
	s, err := r.GetStudent(ctx, owner, reg)
	if err != nil {
		return Student{}, err
	}
	s = c.Apply(s)
	r.students[reg] = s
	return s, nil
}

func (r *fakeRepo) DeleteStudent(ctx context.Context, owner, reg string) error {
	r.writes++
	if _, err := r.GetStudent(ctx, owner, reg); err != nil {
		return err
	}
	delete(r.students, reg)
	return nil
}

func (r *fakeRepo) ListStudents(_ context.Context, owner string) ([]Student, error) {
	var out []Student
	for _, s := range r.students {
		if s.AddedBy == owner {
			out = append(out, s)
		}
	}
	return out, nil
}

type profiles map[string]bool

func (p profiles) HasProfile(_ context.Context, id string) (bool, error) { return p[id], nil }

func validFields() Fields {
	return Fields{
		RegisterNumber: "REG001",
		RollNumber:     "01",
		Name:           "Asha",
		Class:          "CSE-A",
		Department:     "CSE",
		Year:           "II",
	}
}

func TestAddBlankFieldNeverWrites(t *testing.T) {
	blankers := map[string]func(*Fields){
		"register_number": func(f *Fields) { f.RegisterNumber = "  " },
		"roll_number":     func(f *Fields) { f.RollNumber = "" },
		"name":            func(f *Fields) { f.Name = "\t" },
		"class":           func(f *Fields) { f.Class = "" },
		"department":      func(f *Fields) { f.Department = " " },
		"year":            func(f *Fields) { f.Year = "" },
	}
	for field, blank := range blankers {
		t.Run(field, func(t *testing.T) {
			repo := newFakeRepo()
			svc := NewService(repo, profiles{"u1": true})
			f := validFields()
			blank(&f)

			_, err := svc.Add(context.Background(), "u1", f)
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			require.Len(t, ve.Fields, 1)
			assert.Equal(t, field, ve.Fields[0].Field)
			assert.Zero(t, repo.writes)
		})
	}
}

func TestAddRejectsBadEnumerations(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, profiles{"u1": true})

	f := validFields()
	f.Year = "V"
	_, err := svc.Add(context.Background(), "u1", f)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	f = validFields()
	f.Shift = 3
	_, err = svc.Add(context.Background(), "u1", f)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Zero(t, repo.writes)
}

func TestAddPreconditions(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, profiles{"u1": true})

	_, err := svc.Add(context.Background(), "", validFields())
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))

	_, err = svc.Add(context.Background(), "u2", validFields())
	assert.True(t, errors.Is(err, apperr.ErrProfileMissing))
	assert.Zero(t, repo.writes)
}

func TestAddDefaultsAndTrims(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, profiles{"u1": true})
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	f := validFields()
	f.Name = "  Asha  "
	s, err := svc.Add(context.Background(), "u1", f)
	require.NoError(t, err)
	assert.Equal(t, "Asha", s.Name)
	assert.Equal(t, DefaultShift, s.Shift)
	assert.Equal(t, YearII, s.Year)
	assert.Equal(t, "u1", s.AddedBy)
	assert.Equal(t, now, s.CreatedAt)

	_, err = svc.Add(context.Background(), "u1", validFields())
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestUpdate(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, profiles{"u1": true})
	_, err := svc.Add(context.Background(), "u1", validFields())
	require.NoError(t, err)

	blank := " "
	_, err = svc.Update(context.Background(), "u1", "REG001", Changes{Name: &blank})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	shift := 2
	year := YearIII
	class := " CSE-B "
	s, err := svc.Update(context.Background(), "u1", "REG001", Changes{Shift: &shift, Year: &year, Class: &class})
	require.NoError(t, err)
	assert.Equal(t, "REG001", s.RegisterNumber)
	assert.Equal(t, 2, s.Shift)
	assert.Equal(t, YearIII, s.Year)
	assert.Equal(t, "CSE-B", s.Class)

	_, err = svc.Update(context.Background(), "u2", "REG001", Changes{Shift: &shift})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	writes := repo.writes
	s, err = svc.Update(context.Background(), "u1", "REG001", Changes{})
	require.NoError(t, err)
	assert.Equal(t, "CSE-B", s.Class)
	assert.Equal(t, writes, repo.writes)
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, profiles{"u1": true})
	_, err := svc.Add(context.Background(), "u1", validFields())
	require.NoError(t, err)
	writes := repo.writes

	err = svc.Delete(context.Background(), "u1", "REG001", false)
	assert.True(t, errors.Is(err, apperr.ErrConfirmationRequired))
	assert.Equal(t, writes, repo.writes)

	require.NoError(t, svc.Delete(context.Background(), "u1", "REG001", true))
	_, err = svc.Get(context.Background(), "u1", "REG001")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
