package checker

import (
	"slices"
	"testing"

	"github.com/gdg-garage/garage-fit-api/internal/catalog"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
)

func rungs(values ...float64) []catalog.Definition {
	ids := []string{"a", "b", "c", "d", "e"}
	var out []catalog.Definition
	for i, v := range values {
		out = append(out, catalog.Definition{ID: ids[i], RequirementValue: v})
	}
	return out
}

func TestLadder(t *testing.T) {
	defs := rungs(10, 1, 5)

	tests := []struct {
		name  string
		value float64
		want  []string
	}{
		{"Below", 0, nil},
		{"Exact", 1, []string{"b"}},
		{"Between", 7, []string{"b", "c"}},
		{"All", 50, []string{"b", "c", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ladder(defs, tt.value, AtLeast); !slices.Equal(got, tt.want) {
				t.Errorf("Ladder(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}

	if defs[0].ID != "a" {
		t.Error("Ladder must not reorder its input")
	}
}

func TestLadder_CustomCompare(t *testing.T) {
	atMost := func(value, threshold float64) bool { return value <= threshold }
	got := Ladder(rungs(1, 5, 10), 3, atMost)
	if len(got) != 0 {
		t.Errorf("walk stops at the first unmet rung, got %v", got)
	}
}

func TestUnmet(t *testing.T) {
	got := Unmet(rungs(14, 3, 7), 7, AtLeast)
	if len(got) != 1 || got[0].RequirementValue != 14 {
		t.Errorf("expected only 14, got %v", got)
	}
	if got := Unmet(rungs(3, 7), 0, AtLeast); len(got) != 2 || got[0].RequirementValue != 3 {
		t.Errorf("expected both rungs lowest first, got %v", got)
	}
	if got := Unmet(rungs(3, 7), 100, AtLeast); len(got) != 0 {
		t.Errorf("expected no rung above the top, got %v", got)
	}
}

// A value that passes a higher tier passes every lower tier of the family.
func TestLadder_Monotonic(t *testing.T) {
	cat, err := catalog.Load("", logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	for _, req := range []string{catalog.ReqWorkoutsCount, catalog.ReqStreakDays, catalog.ReqTotalXP, catalog.ReqManualWorkouts} {
		defs := cat.ByRequirement(req)
		for _, d := range defs {
			got := Ladder(defs, d.RequirementValue, AtLeast)
			for _, lower := range defs {
				if lower.RequirementValue <= d.RequirementValue && !slices.Contains(got, lower.ID) {
					t.Errorf("%s: passing %s must imply %s", req, d.ID, lower.ID)
				}
			}
		}
	}
}
