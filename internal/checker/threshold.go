package checker

import (
	"sort"

	"github.com/gdg-garage/garage-fit-api/internal/catalog"
)

// Compare decides whether a statistic value meets a threshold.
type Compare func(value, threshold float64) bool

func AtLeast(value, threshold float64) bool { return value >= threshold }

// Ladder returns the ids of defs met by value. Thresholds are walked in
// ascending order and the walk stops at the first unmet rung, so a user
// never passes a harder tier while failing an easier one.
func Ladder(defs []catalog.Definition, value float64, cmp Compare) []string {
	if cmp == nil {
		cmp = AtLeast
	}
	var out []string
	for _, d := range sorted(defs) {
		if !cmp(value, d.RequirementValue) {
			break
		}
		out = append(out, d.ID)
	}
	return out
}

// Unmet returns the rungs value has not reached yet, lowest first.
func Unmet(defs []catalog.Definition, value float64, cmp Compare) []catalog.Definition {
	if cmp == nil {
		cmp = AtLeast
	}
	var out []catalog.Definition
	for _, d := range sorted(defs) {
		if !cmp(value, d.RequirementValue) {
			out = append(out, d)
		}
	}
	return out
}

func sorted(defs []catalog.Definition) []catalog.Definition {
	out := make([]catalog.Definition, len(defs))
	copy(out, defs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RequirementValue < out[j].RequirementValue
	})
	return out
}
