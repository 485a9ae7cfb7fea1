package roster

import "time"

// Year is the enumerated study year of a student.
type Year string

const (
	YearI   Year = "I"
	YearII  Year = "II"
	YearIII Year = "III"
	YearIV  Year = "IV"
)

// Valid reports whether y is one of the supported years.
func (y Year) Valid() bool {
	switch y {
	case YearI, YearII, YearIII, YearIV:
		return true
	default:
		return false
	}
}

// DefaultShift is assigned when a student is added without a shift.
const DefaultShift = 1

// Student is a roster entry, identified by its register number and owned by
// exactly one user.
type Student struct {
	RegisterNumber string    `json:"register_number"`
	RollNumber     string    `json:"roll_number"`
	Name           string    `json:"name"`
	Class          string    `json:"class"`
	Department     string    `json:"department"`
	Shift          int       `json:"shift"`
	Year           Year      `json:"year"`
	AddedBy        string    `json:"added_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// Fields is the input for adding a student.
type Fields struct {
	RegisterNumber string `json:"register_number" validate:"required"`
	RollNumber     string `json:"roll_number" validate:"required"`
	Name           string `json:"name" validate:"required"`
	Class          string `json:"class" validate:"required"`
	Department     string `json:"department" validate:"required"`
	Shift          int    `json:"shift" validate:"omitempty,oneof=1 2"`
	Year           string `json:"year" validate:"required,oneof=I II III IV"`
}

// Changes holds the mutable student attributes; nil fields are left as is.
// The register number is deliberately absent.
type Changes struct {
	Name       *string `json:"name"`
	Class      *string `json:"class"`
	Department *string `json:"department"`
	Shift      *int    `json:"shift"`
	Year       *Year   `json:"year"`
}

// Empty reports whether no field is set.
func (c Changes) Empty() bool {
	return c.Name == nil && c.Class == nil && c.Department == nil && c.Shift == nil && c.Year == nil
}

// Apply returns s with the changes applied.
func (c Changes) Apply(s Student) Student {
	if c.Name != nil {
		s.Name = *c.Name
	}
	if c.Class != nil {
		s.Class = *c.Class
	}
	if c.Department != nil {
		s.Department = *c.Department
	}
	if c.Shift != nil {
		s.Shift = *c.Shift
	}
	if c.Year != nil {
		s.Year = *c.Year
	}
	return s
}
