// Package viewer builds the read-only record view of one date.
package viewer

import (
	"context"
	"fmt"
	"time"

	"rollbook/internal/apperr"
	"rollbook/internal/attendance"
	"rollbook/internal/roster"
)

// Row is a student with its derived status for the date.
type Row struct {
	Student roster.Student    `json:"student"`
	Status  attendance.Status `json:"status"`
}

// DayView is the filtered record view.
type DayView struct {
	Date   string            `json:"date"`
	Filter attendance.Filter `json:"filter"`
	Rows   []Row             `json:"rows"`
	Counts attendance.Counts `json:"counts"`
}

// Join left-joins the roster against a date's rows. Students without a row
// are not_marked, never absent.
func Join(students []roster.Student, records []attendance.Record) []Row {
	byKey := make(map[string]attendance.Status, len(records))
	for _, r := range records {
		byKey[r.RegisterNumber] = r.Status
	}
	rows := make([]Row, 0, len(students))
	for _, st := range students {
		status, ok := byKey[st.RegisterNumber]
		if !ok {
			status = attendance.StatusNotMarked
		}
		rows = append(rows, Row{Student: st, Status: status})
	}
	return rows
}

// Apply keeps the rows passing f and counts them.
func Apply(rows []Row, f attendance.Filter) ([]Row, attendance.Counts) {
	var out []Row
	var c attendance.Counts
	for _, r := range rows {
		if f.Match(r.Student, r.Status) {
			out = append(out, r)
			c.Add(r.Status)
		}
	}
	return out, c
}

// Roster lists the students a user owns.
type Roster interface {
	List(ctx context.Context, actor string) ([]roster.Student, error)
}

// Service loads day views.
type Service struct {
	students Roster
	records  attendance.Repository
}

// NewService creates a viewer.
func NewService(students Roster, records attendance.Repository) *Service {
	return &Service{students: students, records: records}
}

// Day returns actor's records for date, filtered by f.
func (s *Service) Day(ctx context.Context, actor string, date time.Time, f attendance.Filter) (DayView, error) {
	if actor == "" {
		return DayView{}, apperr.ErrUnauthenticated
	}
	date = attendance.Day(date)
	list, err := s.students.List(ctx, actor)
	if err != nil {
		return DayView{}, fmt.Errorf("load roster: %w", err)
	}
	records, err := s.records.ListByDate(ctx, actor, date, roster.RegisterNumbers(list))
	if err != nil {
		return DayView{}, fmt.Errorf("load attendance for %s: %w", date.Format(attendance.DateLayout), err)
	}
	rows, counts := Apply(Join(list, records), f)
	if rows == nil {
		rows = []Row{}
	}
	return DayView{
		Date:   date.Format(attendance.DateLayout),
		Filter: f,
		Rows:   rows,
		Counts: counts,
	}, nil
}
