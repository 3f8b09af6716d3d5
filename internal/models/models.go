package models

// All lists every table for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&APIKey{},
		&Achievement{},
		&UserAchievement{},
		&AchievementProgress{},
		&Workout{},
		&PersonalRecord{},
		&Guild{},
		&GuildMember{},
		&GuildQuestParticipation{},
		&HarnessGrant{},
	}
}
