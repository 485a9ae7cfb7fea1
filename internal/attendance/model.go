package attendance

import (
	"fmt"
	"strings"
	"time"

	"rollbook/internal/apperr"
)

// Status is the attendance state of a student on a date. Only present and
// absent are ever stored; a missing row means not marked.
type Status string

const (
	StatusPresent   Status = "present"
	StatusAbsent    Status = "absent"
	StatusNotMarked Status = "not_marked"
)

// Valid reports whether s can be persisted.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// ParseStatus accepts the persisted statuses and not_marked.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	switch s {
	case StatusPresent, StatusAbsent, StatusNotMarked:
		return s, nil
	}
	return "", apperr.Invalid("status", "must be one of: present absent not_marked")
}

// Record is one stored attendance row.
type Record struct {
	ID             string    `json:"id"`
	RegisterNumber string    `json:"register_number"`
	Date           time.Time `json:"date"`
	Status         Status    `json:"status"`
	RecordedBy     string    `json:"recorded_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(v string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, apperr.Invalid("date", fmt.Sprintf("must use the %s format", DateLayout))
	}
	return d, nil
}

// Day truncates t to its calendar date at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Counts tallies statuses.
type Counts struct {
	Present   int `json:"present"`
	Absent    int `json:"absent"`
	NotMarked int `json:"not_marked"`
	Total     int `json:"total"`
}

// Add counts one student with status s.
func (c *Counts) Add(s Status) {
	c.Total++
	switch s {
	case StatusPresent:
		c.Present++
	case StatusAbsent:
		c.Absent++
	default:
		c.NotMarked++
	}
}
