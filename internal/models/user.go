package models

import (
	"gorm.io/gorm"
)

// User carries the profile counters the award engine increments.
type User struct {
	gorm.Model
	DiscordID         string `gorm:"uniqueIndex"`
	Username          string
	Email             string
	Avatar            string
	Class             string `gorm:"default:none"`
	XP                int64  `gorm:"not null;default:0"`
	Level             int    `gorm:"not null;default:1"`
	AchievementCount  int    `gorm:"not null;default:0"`
	AchievementPoints int    `gorm:"not null;default:0"`
}

// Counter columns the award engine is allowed to increment.
const (
	CounterAchievementCount  = "achievement_count"
	CounterAchievementPoints = "achievement_points"
	CounterXP                = "xp"
)

// IsCounter reports whether name is an incrementable User column.
func IsCounter(name string) bool {
	switch name {
	case CounterAchievementCount, CounterAchievementPoints, CounterXP:
		return true
	}
	return false
}
