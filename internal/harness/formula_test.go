package harness

import (
	"errors"
	"testing"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
)

func TestEvalFormula(t *testing.T) {
	vars := Vars{Level: 4, XP: 1200}
	tests := []struct {
		expr string
		want float64
	}{
		{"42", 42},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"xp / 2 - level", 596},
		{"-level + 10", 6},
		{"100 * (level + 1)", 500},
		{"2.5 * 2", 5},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := EvalFormula(tt.expr, vars)
			if err != nil {
				t.Fatalf("EvalFormula returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("EvalFormula(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalFormula_Rejects(t *testing.T) {
	for _, expr := range []string{
		"",
		"1 +",
		"(1 + 2",
		"1 2",
		"streak * 2",
		"os.Exit(1)",
		"level ** 2",
		"1 / 0",
		"1.2.3",
	} {
		t.Run(expr, func(t *testing.T) {
			if _, err := EvalFormula(expr, Vars{}); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected ErrValidation for %q, got %v", expr, err)
			}
		})
	}
}
