// Package checker evaluates a user's statistics against the catalog and
// hands satisfied achievements to the award engine.
package checker

import (
	"context"

	"github.com/gdg-garage/garage-fit-api/internal/catalog"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/gdg-garage/garage-fit-api/internal/stats"
	"github.com/gdg-garage/garage-fit-api/internal/store"
	"github.com/google/uuid"
)

// RecordContext describes a personal record that was just set and may not
// be visible to the statistics provider yet.
type RecordContext struct {
	Exercise string
	Value    float64
}

// IDResolver maps catalog ids to storage ids.
type IDResolver interface {
	ToStorageID(ctx context.Context, code string) (uuid.UUID, error)
	ToStringID(ctx context.Context, id uuid.UUID) (string, error)
}

// ProgressWriter persists incremental progress rows.
type ProgressWriter interface {
	UpsertProgress(ctx context.Context, p store.Progress) error
}

// Checkers produces candidate achievement ids per category. A candidate may
// already be unlocked. Statistics failures are logged and yield no
// candidates.
type Checkers struct {
	catalog  *catalog.Catalog
	stats    stats.Provider
	ids      IDResolver
	progress ProgressWriter
	log      *logger.Logger
}

func NewCheckers(cat *catalog.Catalog, provider stats.Provider, ids IDResolver, progress ProgressWriter, log *logger.Logger) *Checkers {
	return &Checkers{
		catalog:  cat,
		stats:    provider,
		ids:      ids,
		progress: progress,
		log:      log.With("service", "AchievementCheckers"),
	}
}

func (c *Checkers) Workouts(ctx context.Context, userID uint) []string {
	counts, err := c.stats.WorkoutCounts(ctx, userID)
	if err != nil {
		c.unavailable("workout", userID, err)
		return nil
	}
	var out []string
	out = append(out, c.ladder(catalog.ReqWorkoutsCount, float64(counts.Total))...)
	out = append(out, c.ladder(catalog.ReqWeeklyWorkouts, float64(counts.Weekly))...)
	out = append(out, c.ladder(catalog.ReqMonthlyWorkouts, float64(counts.Monthly))...)
	return out
}

// Streak also records progress toward every unmet streak milestone, so a
// broken streak drops their current value back down.
func (c *Checkers) Streak(ctx context.Context, userID uint) []string {
	streak, err := c.stats.CurrentStreak(ctx, userID)
	if err != nil {
		c.unavailable("streak", userID, err)
		return nil
	}
	defs := c.catalog.ByRequirement(catalog.ReqStreakDays)
	value := float64(streak)
	for _, d := range Unmet(defs, value, AtLeast) {
		c.trackProgress(ctx, userID, d, value)
	}
	return Ladder(defs, value, AtLeast)
}

// Records counts personal records. A fresh record counts even when the
// provider has not observed it yet.
func (c *Checkers) Records(ctx context.Context, userID uint, fresh *RecordContext) []string {
	count, err := c.stats.PersonalRecordCount(ctx, userID)
	if err != nil {
		if fresh == nil {
			c.unavailable("record", userID, err)
			return nil
		}
		c.log.Warn("record count unavailable, using fresh record only", "user_id", userID, "error", err)
		count = 0
	}
	if fresh != nil && count < 1 {
		count = 1
	}
	return c.ladder(catalog.ReqPersonalRecords, float64(count))
}

// XP checks total XP and level. knownXP skips the provider read when the
// caller already holds the total. Progress rows are completed for every
// threshold at or below the total and advanced for the next one.
func (c *Checkers) XP(ctx context.Context, userID uint, knownXP *int64) []string {
	var prog stats.Progression
	if knownXP != nil {
		prog = stats.Progression{XP: *knownXP, Level: stats.LevelForXP(*knownXP)}
	} else {
		var err error
		prog, err = c.stats.Progression(ctx, userID)
		if err != nil {
			c.unavailable("xp", userID, err)
			return nil
		}
	}

	defs := c.catalog.ByRequirement(catalog.ReqTotalXP)
	xp := float64(prog.XP)
	met := Ladder(defs, xp, AtLeast)
	for _, d := range sorted(defs) {
		c.trackProgress(ctx, userID, d, xp)
		if xp < d.RequirementValue {
			break
		}
	}
	return append(met, c.ladder(catalog.ReqLevel, float64(prog.Level))...)
}

func (c *Checkers) Variety(ctx context.Context, userID uint) []string {
	n, err := c.stats.DistinctActivityTypes(ctx, userID)
	if err != nil {
		c.unavailable("variety", userID, err)
		return nil
	}
	return c.ladder(catalog.ReqActivityTypes, float64(n))
}

// Guild checks memberships and quest participations independently.
func (c *Checkers) Guild(ctx context.Context, userID uint) []string {
	var out []string
	if n, err := c.stats.GuildMemberships(ctx, userID); err != nil {
		c.unavailable("guild", userID, err)
	} else {
		out = append(out, c.ladder(catalog.ReqGuildMemberships, float64(n))...)
	}
	if n, err := c.stats.GuildQuestParticipations(ctx, userID); err != nil {
		c.unavailable("guild quest", userID, err)
	} else {
		out = append(out, c.ladder(catalog.ReqGuildQuests, float64(n))...)
	}
	return out
}

func (c *Checkers) Manual(ctx context.Context, userID uint) []string {
	counts, err := c.stats.WorkoutCounts(ctx, userID)
	if err != nil {
		c.unavailable("manual", userID, err)
		return nil
	}
	return c.ladder(catalog.ReqManualWorkouts, float64(counts.Manual))
}

func (c *Checkers) ladder(reqType string, value float64) []string {
	return Ladder(c.catalog.ByRequirement(reqType), value, AtLeast)
}

func (c *Checkers) trackProgress(ctx context.Context, userID uint, def catalog.Definition, value float64) {
	if c.progress == nil {
		return
	}
	id, err := c.ids.ToStorageID(ctx, def.ID)
	if err != nil {
		c.log.Warn("progress skipped, unknown achievement", "achievement", def.ID, "error", err)
		return
	}
	current := value
	if current > def.RequirementValue {
		current = def.RequirementValue
	}
	err = c.progress.UpsertProgress(ctx, store.Progress{
		UserID:        userID,
		AchievementID: id,
		Current:       current,
		Target:        def.RequirementValue,
		IsComplete:    value >= def.RequirementValue,
	})
	if err != nil {
		c.log.Warn("progress update failed", "achievement", def.ID, "user_id", userID, "error", err)
	}
}

func (c *Checkers) unavailable(category string, userID uint, err error) {
	c.log.Warn("statistics unavailable, no candidates", "category", category, "user_id", userID, "error", err)
}
