package report

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/apperr"
	"rollbook/internal/attendance"
	"rollbook/internal/roster"
)

func d(day int) time.Time { return time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC) }

func rec(reg string, day int, s attendance.Status) attendance.Record {
	return attendance.Record{RegisterNumber: reg, Date: d(day), Status: s}
}

var now = time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC)

func TestSummarizePercentages(t *testing.T) {
	students := []roster.Student{
		{RegisterNumber: "A", Name: "Anbu", Class: "X"},
		{RegisterNumber: "B", Name: "Babu", Class: "X"},
	}
	records := []attendance.Record{
		rec("A", 4, attendance.StatusPresent), rec("B", 4, attendance.StatusAbsent),
		rec("A", 5, attendance.StatusPresent), rec("B", 5, attendance.StatusPresent),
		rec("A", 6, attendance.StatusAbsent), rec("B", 6, attendance.StatusAbsent),
	}

	s, err := Summarize(3, 2024, students, records, now)
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalWorkingDays)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, Row{RegisterNumber: "A", Name: "Anbu", Class: "X", WorkingDays: 3, Present: 2, Absent: 1, Percentage: 67}, s.Rows[0])
	assert.Equal(t, Row{RegisterNumber: "B", Name: "Babu", Class: "X", WorkingDays: 3, Present: 1, Absent: 2, Percentage: 33}, s.Rows[1])
}

func TestSummarizeWithoutRows(t *testing.T) {
	students := []roster.Student{{RegisterNumber: "A"}, {RegisterNumber: "B"}}
	s, err := Summarize(3, 2024, students, nil, now)
	require.NoError(t, err)
	assert.Zero(t, s.TotalWorkingDays)
	for _, r := range s.Rows {
		assert.Zero(t, r.Percentage)
	}
}

func TestSummarizeCountsDistinctDatesAcrossStudents(t *testing.T) {
	students := []roster.Student{{RegisterNumber: "A"}, {RegisterNumber: "B"}}
	records := []attendance.Record{
		rec("A", 1, attendance.StatusPresent),
		rec("B", 2, attendance.StatusPresent),
		{RegisterNumber: "A", Date: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), Status: attendance.StatusPresent},
	}
	s, err := Summarize(3, 2024, students, records, now)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalWorkingDays)
	assert.Equal(t, 50, s.Rows[0].Percentage)
	assert.Equal(t, 0, s.Rows[0].Absent)
}

func TestSummarizeSortsByClassThenName(t *testing.T) {
	students := []roster.Student{
		{RegisterNumber: "1", Name: "Zed", Class: "B"},
		{RegisterNumber: "2", Name: "Amy", Class: "B"},
		{RegisterNumber: "3", Name: "Kay", Class: "A"},
	}
	s, err := Summarize(3, 2024, students, nil, now)
	require.NoError(t, err)
	var order []string
	for _, r := range s.Rows {
		order = append(order, r.RegisterNumber)
	}
	assert.Equal(t, []string{"3", "2", "1"}, order)
}

func TestMonthRange(t *testing.T) {
	from, to, err := MonthRange(2, 2024)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), to)

	_, to, err = MonthRange(2, 2023)
	require.NoError(t, err)
	assert.Equal(t, 28, to.Day())

	_, to, err = MonthRange(12, 2024)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), to)

	for _, bad := range [][2]int{{0, 2024}, {13, 2024}, {3, 999}, {3, 10000}} {
		_, _, err := MonthRange(bad[0], bad[1])
		assert.True(t, errors.Is(err, apperr.ErrValidation), "%v", bad)
	}
}

func TestNaming(t *testing.T) {
	s := Summary{Month: time.March, Year: 2024}
	assert.Equal(t, "attendance_report_March_2024", s.Filename())
	assert.Equal(t, "Attendance Report - March 2024", s.Title())
	assert.Equal(t, 0, Percentage(5, 0))
	assert.Equal(t, 100, Percentage(3, 3))
}
