package roster

import "sort"

// ClassGroup is one class of the roster.
type ClassGroup struct {
	Class    string    `json:"class"`
	Students []Student `json:"students"`
}

// GroupByClass groups students by class. Groups are ordered by class name
// byte-wise, matching the COLLATE "C" order of the repository listing, and
// each group keeps the oldest-added student first; names do not affect order.
func GroupByClass(students []Student) []ClassGroup {
	index := map[string]int{}
	var groups []ClassGroup
	for _, s := range students {
		i, ok := index[s.Class]
		if !ok {
			i = len(groups)
			index[s.Class] = i
			groups = append(groups, ClassGroup{Class: s.Class})
		}
		groups[i].Students = append(groups[i].Students, s)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Class < groups[j].Class })
	for _, g := range groups {
		sort.SliceStable(g.Students, func(i, j int) bool {
			return g.Students[i].CreatedAt.Before(g.Students[j].CreatedAt)
		})
	}
	return groups
}

// RegisterNumbers returns the keys of students in order.
func RegisterNumbers(students []Student) []string {
	keys := make([]string, 0, len(students))
	for _, s := range students {
		keys = append(keys, s.RegisterNumber)
	}
	return keys
}
