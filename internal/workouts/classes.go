package workouts

import "strings"

// Character classes and their passive XP bonuses.
const (
	ClassNone    = "none"
	ClassWarrior = "warrior"
	ClassRanger  = "ranger"
	ClassMonk    = "monk"
)

const (
	kindStrength = "strength"
	kindCardio   = "cardio"
	kindOther    = "other"
)

var exerciseKinds = map[string]string{
	"strength":      kindStrength,
	"weightlifting": kindStrength,
	"powerlifting":  kindStrength,
	"crossfit":      kindStrength,
	"calisthenics":  kindStrength,
	"bodyweight":    kindStrength,
	"running":       kindCardio,
	"cycling":       kindCardio,
	"swimming":      kindCardio,
	"rowing":        kindCardio,
	"hiking":        kindCardio,
	"walking":       kindCardio,
	"hiit":          kindCardio,
}

func exerciseKind(exercise string) string {
	if k, ok := exerciseKinds[strings.ToLower(exercise)]; ok {
		return k
	}
	return kindOther
}

// ValidClass reports whether class is a known character class.
func ValidClass(class string) bool {
	switch class {
	case ClassNone, ClassWarrior, ClassRanger, ClassMonk:
		return true
	}
	return false
}

// BaseXP is 10 per workout plus 1 per full five minutes.
func BaseXP(durationMinutes int) int {
	if durationMinutes < 0 {
		durationMinutes = 0
	}
	return 10 + durationMinutes/5
}

// ApplyClassBonus returns base XP with the class passive applied, rounded
// down.
func ApplyClassBonus(class, exercise string, base int) int {
	var pct int
	switch kind := exerciseKind(exercise); class {
	case ClassWarrior:
		if kind == kindStrength {
			pct = 10
		}
	case ClassRanger:
		if kind == kindCardio {
			pct = 10
		}
	case ClassMonk:
		pct = 5
	}
	return base + base*pct/100
}
