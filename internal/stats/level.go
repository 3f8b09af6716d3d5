package stats

import "math"

// XPForLevel is the XP needed to advance from level-1 to level.
func XPForLevel(level int) int64 {
	return int64(100 * math.Pow(float64(level), 1.5))
}

// LevelForXP maps accumulated XP to a level, starting at 1.
func LevelForXP(xp int64) int {
	level := 1
	for {
		need := XPForLevel(level + 1)
		if xp < need {
			return level
		}
		xp -= need
		level++
	}
}

// XPToReach is the total XP at which level is reached.
func XPToReach(level int) int64 {
	var total int64
	for l := 2; l <= level; l++ {
		total += XPForLevel(l)
	}
	return total
}
