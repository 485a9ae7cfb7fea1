// Package marking implements the daily marking workflow: a Sheet holds the
// roster and the committed and working attendance of one user for one date.
package marking

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"rollbook/internal/apperr"
	"rollbook/internal/attendance"
	"rollbook/internal/roster"
)

// State is the lifecycle stage of a Sheet.
type State int

const (
	StateLoading State = iota
	StateReady
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrNotDirty is returned by Save when nothing changed since the last commit.
	ErrNotDirty = errors.New("no unsaved changes")
	// ErrBusy is returned when the sheet is loading or saving.
	ErrBusy = errors.New("sheet is busy")
)

// Roster lists the students a user owns.
type Roster interface {
	List(ctx context.Context, actor string) ([]roster.Student, error)
}

// Row is one student with its working status.
type Row struct {
	Student roster.Student    `json:"student"`
	Status  attendance.Status `json:"status"`
}

// Sheet is the marking state for one (actor, date). It is owned by a single
// caller and is not safe for concurrent use. Moving to another date means
// opening a new Sheet; unsaved edits of the old one are dropped.
type Sheet struct {
	actor   string
	date    time.Time
	records attendance.Repository

	state     State
	students  []roster.Student
	index     map[string]int
	committed map[string]attendance.Status
	working   map[string]attendance.Status
}

// Open loads the roster, then the date's rows for that roster, and seeds
// both the committed snapshot and the working copy from them.
func Open(ctx context.Context, actor string, date time.Time, students Roster, records attendance.Repository) (*Sheet, error) {
	if actor == "" {
		return nil, apperr.ErrUnauthenticated
	}
	s := &Sheet{
		actor:   actor,
		date:    attendance.Day(date),
		records: records,
		state:   StateLoading,
	}

	list, err := students.List(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	s.students = list
	s.index = make(map[string]int, len(list))
	for i, st := range list {
		s.index[st.RegisterNumber] = i
	}

	rows, err := records.ListByDate(ctx, actor, s.date, roster.RegisterNumbers(list))
	if err != nil {
		return nil, fmt.Errorf("load attendance for %s: %w", s.date.Format(attendance.DateLayout), err)
	}
	s.committed = make(map[string]attendance.Status, len(rows))
	for _, r := range rows {
		if _, ok := s.index[r.RegisterNumber]; ok {
			s.committed[r.RegisterNumber] = r.Status
		}
	}
	s.working = maps.Clone(s.committed)
	s.state = StateReady
	return s, nil
}

// Date returns the sheet's calendar date.
func (s *Sheet) Date() time.Time { return s.date }

// State returns the current lifecycle stage.
func (s *Sheet) State() State { return s.state }

// Dirty reports whether the working copy differs from the committed snapshot.
func (s *Sheet) Dirty() bool {
	return !maps.Equal(s.working, s.committed)
}

// Status returns the working status of a student.
func (s *Sheet) Status(registerNumber string) attendance.Status {
	if st, ok := s.working[registerNumber]; ok {
		return st
	}
	return attendance.StatusNotMarked
}

// Toggle flips a student between present and absent; an unmarked student
// becomes present.
func (s *Sheet) Toggle(registerNumber string) error {
	next := attendance.StatusPresent
	if s.Status(registerNumber) == attendance.StatusPresent {
		next = attendance.StatusAbsent
	}
	return s.Set(registerNumber, next)
}

// Set records status for a student in the working copy. StatusNotMarked
// clears the entry.
func (s *Sheet) Set(registerNumber string, status attendance.Status) error {
	if err := s.editable(); err != nil {
		return err
	}
	if _, ok := s.index[registerNumber]; !ok {
		return fmt.Errorf("student %s: %w", registerNumber, apperr.ErrNotFound)
	}
	switch {
	case status == attendance.StatusNotMarked:
		delete(s.working, registerNumber)
	case status.Valid():
		s.working[registerNumber] = status
	default:
		return apperr.Invalid("status", fmt.Sprintf("%s: unknown status %q", registerNumber, status))
	}
	return nil
}

// Clear returns a student to unmarked.
func (s *Sheet) Clear(registerNumber string) error {
	return s.Set(registerNumber, attendance.StatusNotMarked)
}

// Replace swaps the whole working copy for entries. Nothing changes when
// any entry is invalid.
func (s *Sheet) Replace(entries map[string]attendance.Status) error {
	if err := s.editable(); err != nil {
		return err
	}
	next := make(map[string]attendance.Status, len(entries))
	for k, st := range entries {
		if _, ok := s.index[k]; !ok {
			return fmt.Errorf("student %s: %w", k, apperr.ErrNotFound)
		}
		switch {
		case st == attendance.StatusNotMarked:
		case st.Valid():
			next[k] = st
		default:
			return apperr.Invalid("status", fmt.Sprintf("%s: unknown status %q", k, st))
		}
	}
	s.working = next
	return nil
}

// MarkAll sets status on every student that passes f, i.e. the currently
// visible subset, and returns how many were changed. The status predicate is
// evaluated against the working copy before the update.
func (s *Sheet) MarkAll(f attendance.Filter, status attendance.Status) (int, error) {
	if err := s.editable(); err != nil {
		return 0, err
	}
	if !status.Valid() {
		return 0, apperr.Invalid("status", "must be one of: present absent")
	}
	var targets []string
	for _, st := range s.students {
		if f.Match(st, s.Status(st.RegisterNumber)) {
			targets = append(targets, st.RegisterNumber)
		}
	}
	for _, k := range targets {
		s.working[k] = status
	}
	return len(targets), nil
}

// Reset discards unsaved edits.
func (s *Sheet) Reset() {
	s.working = maps.Clone(s.committed)
}

// Rows returns the students passing f with their working status, in roster
// order.
func (s *Sheet) Rows(f attendance.Filter) []Row {
	var rows []Row
	for _, st := range s.students {
		status := s.Status(st.RegisterNumber)
		if f.Match(st, status) {
			rows = append(rows, Row{Student: st, Status: status})
		}
	}
	return rows
}

// Counts tallies the working statuses of the students passing f.
func (s *Sheet) Counts(f attendance.Filter) attendance.Counts {
	var c attendance.Counts
	for _, r := range s.Rows(f) {
		c.Add(r.Status)
	}
	return c
}

// Entries returns a copy of the working copy.
func (s *Sheet) Entries() map[string]attendance.Status {
	return maps.Clone(s.working)
}

// Save writes the working copy as a full replacement of the date's rows for
// every touched student: those in the committed snapshot or the working
// copy. Students cleared since the last commit lose their row. On failure
// the working copy is kept so the caller can retry.
func (s *Sheet) Save(ctx context.Context) error {
	if err := s.editable(); err != nil {
		return err
	}
	if !s.Dirty() {
		return ErrNotDirty
	}
	touched := make([]string, 0, len(s.committed)+len(s.working))
	for k := range s.committed {
		touched = append(touched, k)
	}
	for k := range s.working {
		if _, ok := s.committed[k]; !ok {
			touched = append(touched, k)
		}
	}

	s.state = StateSaving
	defer func() { s.state = StateReady }()
	if err := s.records.ReplaceDay(ctx, s.actor, s.date, touched, maps.Clone(s.working)); err != nil {
		return fmt.Errorf("save attendance for %s: %w", s.date.Format(attendance.DateLayout), err)
	}
	s.committed = maps.Clone(s.working)
	return nil
}

func (s *Sheet) editable() error {
	if s.state != StateReady {
		return fmt.Errorf("%w: %s", ErrBusy, s.state)
	}
	return nil
}
