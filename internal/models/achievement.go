package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Achievement is the storage row of a catalog definition. Code holds the
// human-readable catalog id, ID is the opaque storage id.
type Achievement struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Code             string         `gorm:"uniqueIndex;not null" json:"code"`
	Name             string         `json:"name"`
	Category         string         `gorm:"index" json:"category"`
	Rank             string         `json:"rank"`
	Points           int            `json:"points"`
	XPReward         int            `json:"xp_reward"`
	RequirementType  string         `json:"requirement_type"`
	RequirementValue float64        `json:"requirement_value"`
	Metadata         datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (a *Achievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// UserAchievement is an unlock. The composite unique index is the guard
// against concurrent double awards.
type UserAchievement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_user_achievement,priority:1" json:"user_id"`
	AchievementID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_achievement,priority:2" json:"achievement_id"`
	UnlockedAt    time.Time `gorm:"not null" json:"unlocked_at"`
}

// AchievementProgress tracks current against target for incremental
// achievements.
type AchievementProgress struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_user_progress,priority:1" json:"user_id"`
	AchievementID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_progress,priority:2" json:"achievement_id"`
	Current       float64   `json:"current"`
	Target        float64   `json:"target"`
	IsComplete    bool      `gorm:"not null;default:false" json:"is_complete"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (AchievementProgress) TableName() string {
	return "achievement_progress"
}
