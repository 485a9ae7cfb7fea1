package attendance

import (
	"strconv"
	"strings"

	"rollbook/internal/apperr"
	"rollbook/internal/roster"
)

// Filter selects students by roster attributes and status. Zero-valued fields
// match everything; set fields are combined with AND.
type Filter struct {
	Class      string      `json:"class,omitempty"`
	Department string      `json:"department,omitempty"`
	Shift      int         `json:"shift,omitempty"`
	Year       roster.Year `json:"year,omitempty"`
	Status     Status      `json:"status,omitempty"`
}

// IsZero reports whether the filter matches every student.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Match reports whether a student with status s passes every set predicate.
func (f Filter) Match(st roster.Student, s Status) bool {
	if f.Class != "" && st.Class != f.Class {
		return false
	}
	if f.Department != "" && st.Department != f.Department {
		return false
	}
	if f.Shift != 0 && st.Shift != f.Shift {
		return false
	}
	if f.Year != "" && st.Year != f.Year {
		return false
	}
	if f.Status != "" && s != f.Status {
		return false
	}
	return true
}

// ParseFilter reads a filter from named values, typically URL query params.
func ParseFilter(get func(string) string) (Filter, error) {
	f := Filter{
		Class:      strings.TrimSpace(get("class")),
		Department: strings.TrimSpace(get("department")),
	}
	if v := strings.TrimSpace(get("shift")); v != "" {
		shift, err := strconv.Atoi(v)
		if err != nil || (shift != 1 && shift != 2) {
			return Filter{}, apperr.Invalid("shift", "must be one of: 1 2")
		}
		f.Shift = shift
	}
	if v := strings.TrimSpace(get("year")); v != "" {
		f.Year = roster.Year(v)
		if !f.Year.Valid() {
			return Filter{}, apperr.Invalid("year", "must be one of: I II III IV")
		}
	}
	if v := get("status"); strings.TrimSpace(v) != "" {
		s, err := ParseStatus(v)
		if err != nil {
			return Filter{}, err
		}
		f.Status = s
	}
	return f, nil
}

// Validate checks filters decoded from a request body.
func (f Filter) Validate() error {
	if f.Shift != 0 && f.Shift != 1 && f.Shift != 2 {
		return apperr.Invalid("shift", "must be one of: 1 2")
	}
	if f.Year != "" && !f.Year.Valid() {
		return apperr.Invalid("year", "must be one of: I II III IV")
	}
	switch f.Status {
	case "", StatusPresent, StatusAbsent, StatusNotMarked:
		return nil
	}
	return apperr.Invalid("status", "must be one of: present absent not_marked")
}
