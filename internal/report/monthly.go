// Package report aggregates attendance into monthly summaries and renders
// them as downloadable documents.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"rollbook/internal/apperr"
	"rollbook/internal/attendance"
	"rollbook/internal/roster"
)

// Row is one student's line in a monthly summary.
type Row struct {
	RegisterNumber string `json:"register_number"`
	Name           string `json:"name"`
	Department     string `json:"department"`
	Class          string `json:"class"`
	WorkingDays    int    `json:"working_days"`
	Present        int    `json:"present"`
	Absent         int    `json:"absent"`
	Percentage     int    `json:"percentage"`
}

// Summary is the monthly report of one user.
type Summary struct {
	Month            time.Month `json:"month"`
	Year             int        `json:"year"`
	From             time.Time  `json:"from"`
	To               time.Time  `json:"to"`
	TotalWorkingDays int        `json:"total_working_days"`
	GeneratedAt      time.Time  `json:"generated_at"`
	Rows             []Row      `json:"rows"`
}

// MonthRange returns the first and last calendar day of a month, inclusive.
func MonthRange(month, year int) (time.Time, time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, apperr.Invalid("month", "must be between 1 and 12")
	}
	if year < 1000 || year > 9999 {
		return time.Time{}, time.Time{}, apperr.Invalid("year", "must be a 4-digit year")
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	return from, to, nil
}

// Summarize computes the report. Working days are the distinct dates present
// in records, not calendar or week days; with none every percentage is 0.
func Summarize(month, year int, students []roster.Student, records []attendance.Record, now time.Time) (Summary, error) {
	from, to, err := MonthRange(month, year)
	if err != nil {
		return Summary{}, err
	}

	dates := map[time.Time]struct{}{}
	present := map[string]int{}
	absent := map[string]int{}
	for _, r := range records {
		day := attendance.Day(r.Date)
		if day.Before(from) || day.After(to) {
			continue
		}
		dates[day] = struct{}{}
		switch r.Status {
		case attendance.StatusPresent:
			present[r.RegisterNumber]++
		case attendance.StatusAbsent:
			absent[r.RegisterNumber]++
		}
	}
	total := len(dates)

	rows := make([]Row, 0, len(students))
	for _, s := range students {
		rows = append(rows, Row{
			RegisterNumber: s.RegisterNumber,
			Name:           s.Name,
			Department:     s.Department,
			Class:          s.Class,
			WorkingDays:    total,
			Present:        present[s.RegisterNumber],
			Absent:         absent[s.RegisterNumber],
			Percentage:     Percentage(present[s.RegisterNumber], total),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Class != rows[j].Class {
			return rows[i].Class < rows[j].Class
		}
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].RegisterNumber < rows[j].RegisterNumber
	})

	return Summary{
		Month:            time.Month(month),
		Year:             year,
		From:             from,
		To:               to,
		TotalWorkingDays: total,
		GeneratedAt:      now.UTC(),
		Rows:             rows,
	}, nil
}

// Percentage is round(present / workingDays * 100), or 0 without working days.
func Percentage(present, workingDays int) int {
	if workingDays == 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(workingDays) * 100))
}

// Filename is the download name without extension.
func (s Summary) Filename() string {
	return fmt.Sprintf("attendance_report_%s_%d", s.Month.String(), s.Year)
}

// Title is the heading line of rendered documents.
func (s Summary) Title() string {
	return fmt.Sprintf("Attendance Report - %s %d", s.Month.String(), s.Year)
}
