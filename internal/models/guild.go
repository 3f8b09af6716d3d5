package models

import (
	"gorm.io/gorm"
)

type Guild struct {
	gorm.Model
	Name      string `gorm:"uniqueIndex;not null" json:"name"`
	Synthetic bool   `gorm:"not null;default:false" json:"-"`
}

type GuildMember struct {
	gorm.Model
	GuildID   uint `gorm:"not null;uniqueIndex:idx_guild_member,priority:1" json:"guild_id"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_guild_member,priority:2" json:"user_id"`
	Synthetic bool `gorm:"not null;default:false" json:"-"`
}

type GuildQuestParticipation struct {
	gorm.Model
	GuildID   uint   `gorm:"not null;uniqueIndex:idx_quest_user,priority:1" json:"guild_id"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_quest_user,priority:3" json:"user_id"`
	Quest     string `gorm:"not null;uniqueIndex:idx_quest_user,priority:2" json:"quest"`
	Synthetic bool   `gorm:"not null;default:false" json:"-"`
}
