package catalog

// Category groups achievements by the statistic family they observe.
type Category string

const (
	CategoryWorkout   Category = "workout"
	CategoryStreak    Category = "streak"
	CategoryRecord    Category = "record"
	CategoryXP        Category = "xp"
	CategoryLevel     Category = "level"
	CategoryGuild     Category = "guild"
	CategorySpecial   Category = "special"
	CategoryVariety   Category = "variety"
	CategoryManual    Category = "manual"
	CategoryTimeBased Category = "time_based"
	CategoryMilestone Category = "milestone"
)

// Rank is the prestige tier of an achievement.
type Rank string

const (
	RankS        Rank = "S"
	RankA        Rank = "A"
	RankB        Rank = "B"
	RankC        Rank = "C"
	RankD        Rank = "D"
	RankE        Rank = "E"
	RankUnranked Rank = "Unranked"
)

// Ordinal orders ranks by prestige, Unranked lowest. Unknown ranks return -1.
func (r Rank) Ordinal() int {
	switch r {
	case RankUnranked:
		return 0
	case RankE:
		return 1
	case RankD:
		return 2
	case RankC:
		return 3
	case RankB:
		return 4
	case RankA:
		return 5
	case RankS:
		return 6
	}
	return -1
}

type pointBand struct{ min, max int }

// Bands overlap only at E/Unranked so points stay monotonic with rank.
var rankPoints = map[Rank]pointBand{
	RankUnranked: {1, 2},
	RankE:        {1, 3},
	RankD:        {4, 6},
	RankC:        {7, 10},
	RankB:        {11, 15},
	RankA:        {16, 20},
	RankS:        {21, 25},
}

// Requirement types understood by the checkers.
const (
	ReqWorkoutsCount    = "workouts_count"
	ReqWeeklyWorkouts   = "weekly_workouts"
	ReqMonthlyWorkouts  = "monthly_workouts"
	ReqStreakDays       = "streak_days"
	ReqPersonalRecords  = "personal_records"
	ReqTotalXP          = "total_xp"
	ReqLevel            = "level"
	ReqActivityTypes    = "activity_types"
	ReqGuildMemberships = "guild_memberships"
	ReqGuildQuests      = "guild_quests"
	ReqManualWorkouts   = "manual_workouts"
)

// Definition is an immutable achievement loaded once at start.
type Definition struct {
	ID               string                 `yaml:"id" json:"id" validate:"required,achievement_id"`
	Name             string                 `yaml:"name" json:"name" validate:"required,min=3"`
	Description      string                 `yaml:"description" json:"description" validate:"required,min=10"`
	Category         Category               `yaml:"category" json:"category" validate:"required,oneof=workout streak record xp level guild special variety manual time_based milestone"`
	Rank             Rank                   `yaml:"rank" json:"rank" validate:"required,oneof=S A B C D E Unranked"`
	Points           int                    `yaml:"points" json:"points" validate:"min=1,max=25"`
	XPReward         int                    `yaml:"xp_reward" json:"xp_reward" validate:"min=10,max=500"`
	RequirementType  string                 `yaml:"requirement_type" json:"requirement_type" validate:"required,oneof=workouts_count weekly_workouts monthly_workouts streak_days personal_records total_xp level activity_types guild_memberships guild_quests manual_workouts"`
	RequirementValue float64                `yaml:"requirement_value" json:"requirement_value" validate:"gt=0"`
	Metadata         map[string]interface{} `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}
