package models

import "time"

// HarnessGrant is one thing a harness run gave a user: an unlock it
// triggered or XP it added. Cleanup takes back exactly these rows.
type HarnessGrant struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	AchievementCode string    `json:"achievement_code,omitempty"`
	XP              int64     `json:"xp,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
