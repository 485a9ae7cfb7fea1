// Package memstore keeps users, students and attendance in process memory.
// It backs STORE_BACKEND=memory and the tests, and mirrors the Postgres
// constraints: unique register/roll numbers, one row per (student, date) and
// cascading deletes.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rollbook/internal/apperr"
	"rollbook/internal/attendance"
	"rollbook/internal/roster"
	"rollbook/internal/users"
)

type dayKey struct {
	registerNumber string
	date           time.Time
}

// DB is the shared in-memory state.
type DB struct {
	mu         sync.RWMutex
	profiles   map[string]users.Profile
	students   map[string]roster.Student
	attendance map[dayKey]attendance.Record
}

// New creates an empty store.
func New() *DB {
	return &DB{
		profiles:   map[string]users.Profile{},
		students:   map[string]roster.Student{},
		attendance: map[dayKey]attendance.Record{},
	}
}

// Users returns the profile repository.
func (db *DB) Users() users.Repository { return userRepository{db} }

// Students returns the roster repository.
func (db *DB) Students() roster.Repository { return studentRepository{db} }

// Attendance returns the attendance repository.
func (db *DB) Attendance() attendance.Repository { return attendanceRepository{db} }

type userRepository struct{ db *DB }

func (r userRepository) GetProfile(_ context.Context, id string) (users.Profile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.profiles[id]
	if !ok {
		return users.Profile{}, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	return p, nil
}

func (r userRepository) CreateProfile(_ context.Context, p users.Profile) (users.Profile, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if existing, ok := r.db.profiles[p.ID]; ok {
		return existing, false, nil
	}
	r.db.profiles[p.ID] = p
	return p, true, nil
}

func (r userRepository) UpdateFullName(_ context.Context, id, fullName string) (users.Profile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.profiles[id]
	if !ok {
		return users.Profile{}, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	p.FullName = fullName
	p.UpdatedAt = time.Now().UTC()
	r.db.profiles[id] = p
	return p, nil
}

type studentRepository struct{ db *DB }

func (r studentRepository) CreateStudent(_ context.Context, s roster.Student) (roster.Student, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.profiles[s.AddedBy]; !ok {
		return roster.Student{}, fmt.Errorf("user %s: %w", s.AddedBy, apperr.ErrProfileMissing)
	}
	if _, ok := r.db.students[s.RegisterNumber]; ok {
		return roster.Student{}, fmt.Errorf("student %s: %w", s.RegisterNumber, apperr.ErrConflict)
	}
	for _, other := range r.db.students {
		if other.RollNumber == s.RollNumber {
			return roster.Student{}, fmt.Errorf("roll number %s: %w", s.RollNumber, apperr.ErrConflict)
		}
	}
	r.db.students[s.RegisterNumber] = s
	return s, nil
}

func (r studentRepository) owned(owner, registerNumber string) (roster.Student, error) {
	s, ok := r.db.students[registerNumber]
	if !ok || s.AddedBy != owner {
		return roster.Student{}, fmt.Errorf("student %s: %w", registerNumber, apperr.ErrNotFound)
	}
	return s, nil
}

func (r studentRepository) GetStudent(_ context.Context, owner, registerNumber string) (roster.Student, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.owned(owner, registerNumber)
}

func (r studentRepository) UpdateStudent(_ context.Context, owner, registerNumber string, c roster.Changes) (roster.Student, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, err := r.owned(owner, registerNumber)
	if err != nil {
		return roster.Student{}, err
	}
	s = c.Apply(s)
	r.db.students[registerNumber] = s
	return s, nil
}

func (r studentRepository) DeleteStudent(_ context.Context, owner, registerNumber string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, err := r.owned(owner, registerNumber); err != nil {
		return err
	}
	delete(r.db.students, registerNumber)
	for k := range r.db.attendance {
		if k.registerNumber == registerNumber {
			delete(r.db.attendance, k)
		}
	}
	return nil
}

func (r studentRepository) ListStudents(_ context.Context, owner string) ([]roster.Student, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []roster.Student
	for _, s := range r.db.students {
		if s.AddedBy == owner {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].RegisterNumber < out[j].RegisterNumber
	})
	return out, nil
}

type attendanceRepository struct{ db *DB }

func (r attendanceRepository) ListByDate(_ context.Context, owner string, date time.Time, keys []string) ([]attendance.Record, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	day := attendance.Day(date)
	var out []attendance.Record
	for _, k := range keys {
		if rec, ok := r.db.attendance[dayKey{k, day}]; ok && rec.RecordedBy == owner {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisterNumber < out[j].RegisterNumber })
	return out, nil
}

func (r attendanceRepository) ListRange(_ context.Context, owner string, from, to time.Time) ([]attendance.Record, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	from, to = attendance.Day(from), attendance.Day(to)
	var out []attendance.Record
	for _, rec := range r.db.attendance {
		if rec.RecordedBy == owner && !rec.Date.Before(from) && !rec.Date.After(to) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].RegisterNumber < out[j].RegisterNumber
	})
	return out, nil
}

func (r attendanceRepository) ReplaceDay(_ context.Context, owner string, date time.Time, touched []string, entries map[string]attendance.Status) error {
	keys, err := attendance.ReplacementKeys(touched, entries)
	if err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for k := range entries {
		if s, ok := r.db.students[k]; !ok || s.AddedBy != owner {
			return fmt.Errorf("student %s: %w", k, apperr.ErrNotFound)
		}
	}
	day := attendance.Day(date)
	for _, k := range keys {
		if rec, ok := r.db.attendance[dayKey{k, day}]; ok && rec.RecordedBy == owner {
			delete(r.db.attendance, dayKey{k, day})
		}
	}
	now := time.Now().UTC()
	for k, status := range entries {
		r.db.attendance[dayKey{k, day}] = attendance.Record{
			ID:             uuid.NewString(),
			RegisterNumber: k,
			Date:           day,
			Status:         status,
			RecordedBy:     owner,
			CreatedAt:      now,
		}
	}
	return nil
}

// CountAttendance returns the number of stored rows for a student.
func (db *DB) CountAttendance(registerNumber string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n := 0
	for k := range db.attendance {
		if k.registerNumber == registerNumber {
			n++
		}
	}
	return n
}
