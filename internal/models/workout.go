package models

import (
	"time"

	"gorm.io/gorm"
)

type Workout struct {
	gorm.Model
	UserID          uint      `gorm:"not null;index:idx_workout_user_time,priority:1" json:"user_id"`
	ExerciseType    string    `gorm:"not null" json:"exercise_type"`
	DurationMinutes int       `json:"duration_minutes"`
	Manual          bool      `gorm:"not null;default:false" json:"manual"`
	PhotoURL        string    `json:"photo_url,omitempty"`
	XPEarned        int       `json:"xp_earned"`
	Synthetic       bool      `gorm:"not null;default:false" json:"-"`
	CompletedAt     time.Time `gorm:"not null;index:idx_workout_user_time,priority:2" json:"completed_at"`
}

type PersonalRecord struct {
	gorm.Model
	UserID    uint    `gorm:"not null;index" json:"user_id"`
	Exercise  string  `gorm:"not null" json:"exercise"`
	Value     float64 `json:"value"`
	Synthetic bool    `gorm:"not null;default:false" json:"-"`
}
