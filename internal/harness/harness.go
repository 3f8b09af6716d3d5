// Package harness drives the achievement engine with synthetic data to
// prove every catalog entry can be unlocked and cleanly reverted.
package harness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
	"github.com/gdg-garage/garage-fit-api/internal/catalog"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/gdg-garage/garage-fit-api/internal/models"
	"github.com/gdg-garage/garage-fit-api/internal/stats"
	"github.com/gdg-garage/garage-fit-api/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Checker interface {
	CheckAll(ctx context.Context, userID uint) ([]string, error)
}

type Revoker interface {
	Revoke(ctx context.Context, userID uint, id string) (bool, error)
}

type Unlocks interface {
	Unlocks(ctx context.Context, userID uint) ([]models.UserAchievement, error)
}

type Cache interface {
	Invalidate(ctx context.Context, userID uint)
}

type IDCache interface {
	Clear()
}

// Scenario is the synthetic state written before a check. Counts add to
// whatever the user already has.
type Scenario struct {
	// Workouts are logged now.
	Workouts int `json:"workouts,omitempty"`

	// StreakDays logs one workout on each of the last n days, today included.
	StreakDays      int   `json:"streak_days,omitempty"`
	ManualWorkouts  int   `json:"manual_workouts,omitempty"`
	ActivityTypes   int   `json:"activity_types,omitempty"`
	PersonalRecords int   `json:"personal_records,omitempty"`
	Guilds          int   `json:"guilds,omitempty"`
	GuildQuests     int   `json:"guild_quests,omitempty"`
	XP              int64 `json:"xp,omitempty"`

	// XPFormula adds XP computed from the user's current level and xp, e.g.
	// "100 * level + xp / 10".
	XPFormula string `json:"xp_formula,omitempty"`
}

type Check struct {
	AchievementID string   `json:"achievement_id"`
	Passed        bool     `json:"passed"`
	Skipped       bool     `json:"skipped,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Awarded       []string `json:"awarded,omitempty"`
	Error         string   `json:"error,omitempty"`
}

type Report struct {
	Total   int     `json:"total"`
	Passed  int     `json:"passed"`
	Failed  int     `json:"failed"`
	Skipped int     `json:"skipped"`
	Checks  []Check `json:"checks"`
}

// maxFormulaXP bounds what one formula may add.
const maxFormulaXP = 1e9

type Harness struct {
	db      *gorm.DB
	catalog *catalog.Catalog
	checker Checker
	revoker Revoker
	unlocks Unlocks
	cache   Cache
	ids     IDCache
	now     func() time.Time
	log     *logger.Logger
}

func New(db *gorm.DB, cat *catalog.Catalog, checker Checker, revoker Revoker, unlocks Unlocks, cache Cache, ids IDCache, log *logger.Logger) *Harness {
	return &Harness{
		db:      db,
		catalog: cat,
		checker: checker,
		revoker: revoker,
		unlocks: unlocks,
		cache:   cache,
		ids:     ids,
		now:     time.Now,
		log:     log.With("service", "TestHarness"),
	}
}

// WithClock replaces the time source used for synthetic timestamps.
func (h *Harness) WithClock(now func() time.Time) *Harness {
	h.now = now
	return h
}

// Simulate writes sc for userID, runs every check and returns the newly
// awarded ids. What the run adds is recorded for Cleanup.
func (h *Harness) Simulate(ctx context.Context, userID uint, sc Scenario) ([]string, error) {
	if userID == 0 {
		return nil, apperr.New(apperr.ErrValidation, "user id is required")
	}
	if sc.XP < 0 {
		return nil, apperr.New(apperr.ErrValidation, "scenario xp must not be negative")
	}
	if err := h.write(ctx, userID, sc); err != nil {
		return nil, err
	}
	h.invalidate(ctx, userID)
	awarded, err := h.checker.CheckAll(ctx, userID)
	if rerr := h.recordUnlocks(ctx, userID, awarded); rerr != nil {
		h.log.Error("harness unlocks not recorded", "user_id", userID, "awarded", awarded, "error", rerr)
		return awarded, rerr
	}
	if err != nil {
		return nil, err
	}
	h.log.Debug("scenario simulated", "user_id", userID, "awarded", awarded)
	return awarded, nil
}

func (h *Harness) recordUnlocks(ctx context.Context, userID uint, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	grants := make([]models.HarnessGrant, len(codes))
	for i, code := range codes {
		grants[i] = models.HarnessGrant{UserID: userID, AchievementCode: code}
	}
	if err := h.db.WithContext(ctx).Create(&grants).Error; err != nil {
		return apperr.Wrap(apperr.ErrTransaction, err)
	}
	return nil
}

func (h *Harness) write(ctx context.Context, userID uint, sc Scenario) error {
	now := h.now().UTC()
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id", "xp", "level").First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.ErrNotFound, "user %d not found", userID)
			}
			return apperr.Wrap(apperr.ErrDataUnavailable, err)
		}

		var rows []models.Workout
		add := func(at time.Time, manual bool) {
			kind := "harness"
			if sc.ActivityTypes > 0 {
				kind = fmt.Sprintf("harness-%d", len(rows)%sc.ActivityTypes)
			}
			rows = append(rows, models.Workout{
				UserID:       userID,
				ExerciseType: kind,
				Manual:       manual,
				Synthetic:    true,
				CompletedAt:  at,
			})
		}
		for i := 0; i < sc.StreakDays; i++ {
			add(now.AddDate(0, 0, -i), false)
		}
		for i := 0; i < sc.Workouts; i++ {
			add(now, false)
		}
		for i := 0; i < sc.ManualWorkouts; i++ {
			add(now, true)
		}
		for len(rows) < sc.ActivityTypes {
			add(now, false)
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return apperr.Wrap(apperr.ErrTransaction, err)
			}
		}

		for i := 0; i < sc.PersonalRecords; i++ {
			pr := models.PersonalRecord{UserID: userID, Exercise: fmt.Sprintf("harness-%d", i), Value: float64(i + 1), Synthetic: true}
			if err := tx.Create(&pr).Error; err != nil {
				return apperr.Wrap(apperr.ErrTransaction, err)
			}
		}

		guilds := sc.Guilds
		if sc.GuildQuests > 0 && guilds == 0 {
			guilds = 1
		}
		var firstGuild uint
		for i := 0; i < guilds; i++ {
			g := models.Guild{Name: fmt.Sprintf("harness-%d-%d", userID, i)}
			if err := tx.Where(models.Guild{Name: g.Name}).Attrs(models.Guild{Synthetic: true}).FirstOrCreate(&g).Error; err != nil {
				return apperr.Wrap(apperr.ErrTransaction, err)
			}
			if i == 0 {
				firstGuild = g.ID
			}
			m := models.GuildMember{GuildID: g.ID, UserID: userID, Synthetic: true}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
				return apperr.Wrap(apperr.ErrTransaction, err)
			}
		}
		for i := 0; i < sc.GuildQuests; i++ {
			q := models.GuildQuestParticipation{GuildID: firstGuild, UserID: userID, Quest: fmt.Sprintf("harness-quest-%d", i), Synthetic: true}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&q).Error; err != nil {
				return apperr.Wrap(apperr.ErrTransaction, err)
			}
		}

		xp := sc.XP
		if sc.XPFormula != "" {
			v, err := EvalFormula(sc.XPFormula, Vars{Level: float64(user.Level), XP: float64(user.XP)})
			if err != nil {
				return err
			}
			if math.IsNaN(v) || v < 0 || v > maxFormulaXP {
				return apperr.New(apperr.ErrValidation, "formula %q yields xp outside 0..%d", sc.XPFormula, int64(maxFormulaXP))
			}
			xp += int64(math.Ceil(v))
		}
		if xp > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", userID).
				UpdateColumn(models.CounterXP, gorm.Expr("xp + ?", xp)).Error; err != nil {
				return apperr.Wrap(apperr.ErrTransaction, err)
			}
			if _, err := store.RecalculateLevel(tx, userID); err != nil {
				return apperr.Wrap(apperr.ErrTransaction, err)
			}
			if err := tx.Create(&models.HarnessGrant{UserID: userID, XP: xp}).Error; err != nil {
				return apperr.Wrap(apperr.ErrTransaction, err)
			}
		}
		return nil
	})
}


// MinimalScenario is the smallest scenario that satisfies def on a blank
// profile. It reports false for requirement types the harness cannot drive.
func MinimalScenario(def catalog.Definition) (Scenario, bool) {
	n := int(math.Ceil(def.RequirementValue))
	switch def.RequirementType {
	case catalog.ReqWorkoutsCount, catalog.ReqWeeklyWorkouts, catalog.ReqMonthlyWorkouts:
		return Scenario{Workouts: n}, true
	case catalog.ReqStreakDays:
		return Scenario{StreakDays: n}, true
	case catalog.ReqManualWorkouts:
		return Scenario{ManualWorkouts: n}, true
	case catalog.ReqActivityTypes:
		return Scenario{ActivityTypes: n}, true
	case catalog.ReqPersonalRecords:
		return Scenario{PersonalRecords: n}, true
	case catalog.ReqGuildMemberships:
		return Scenario{Guilds: n}, true
	case catalog.ReqGuildQuests:
		return Scenario{GuildQuests: n}, true
	case catalog.ReqTotalXP:
		return Scenario{XP: int64(n)}, true
	case catalog.ReqLevel:
		return Scenario{XP: stats.XPToReach(n)}, true
	}
	return Scenario{}, false
}

// VerifyAll unlocks each catalog entry in turn on top of the user's real
// history and cleans up after each one. Entries the user already holds
// are skipped.
func (h *Harness) VerifyAll(ctx context.Context, userID uint) (Report, error) {
	if err := h.Cleanup(ctx, userID); err != nil {
		return Report{}, err
	}
	held, err := h.heldCodes(ctx, userID)
	if err != nil {
		return Report{}, err
	}
	defs := h.catalog.All()
	slices.SortFunc(defs, func(a, b catalog.Definition) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	var rep Report
	for _, def := range defs {
		var c Check
		if held[def.ID] {
			c = Check{AchievementID: def.ID, Skipped: true, Reason: "already unlocked"}
		} else {
			c = h.verify(ctx, userID, def)
		}
		switch {
		case c.Skipped:
			rep.Skipped++
		case c.Passed:
			rep.Passed++
		default:
			rep.Failed++
		}
		rep.Checks = append(rep.Checks, c)
		if err := h.Cleanup(ctx, userID); err != nil {
			return rep, err
		}
	}
	rep.Total = len(rep.Checks)
	h.log.Info("catalog verified", "user_id", userID, "passed", rep.Passed, "failed", rep.Failed, "skipped", rep.Skipped)
	return rep, nil
}

func (h *Harness) verify(ctx context.Context, userID uint, def catalog.Definition) Check {
	c := Check{AchievementID: def.ID}
	sc, ok := MinimalScenario(def)
	if !ok {
		c.Skipped = true
		c.Reason = "requirement type cannot be simulated"
		return c
	}
	awarded, err := h.Simulate(ctx, userID, sc)
	if err != nil {
		c.Error = err.Error()
		return c
	}
	c.Awarded = awarded
	c.Passed = slices.Contains(awarded, def.ID)
	if !c.Passed {
		h.log.Warn("achievement not triggered by its minimal scenario", "achievement", def.ID, "awarded", awarded)
	}
	return c
}

// Cleanup takes back what harness runs gave userID: the unlocks they
// triggered, the XP they added and their synthetic rows. Progress rows
// without an unlock are dropped; the next check rebuilds them from real
// statistics.
func (h *Harness) Cleanup(ctx context.Context, userID uint) error {
	if userID == 0 {
		return apperr.New(apperr.ErrValidation, "user id is required")
	}
	var grants []models.HarnessGrant
	if err := h.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&grants).Error; err != nil {
		return apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	var xp int64
	for _, g := range grants {
		xp += g.XP
		if g.AchievementCode == "" {
			continue
		}
		if _, err := h.revoker.Revoke(ctx, userID, g.AchievementCode); err != nil {
			h.log.Warn("revoke failed during cleanup", "user_id", userID, "achievement", g.AchievementCode, "error", err)
			if err := h.forceDelete(ctx, userID, g.AchievementCode); err != nil {
				return err
			}
		}
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.Workout{}, &models.PersonalRecord{}, &models.GuildQuestParticipation{}, &models.GuildMember{}} {
			if err := tx.Unscoped().Where("user_id = ? AND synthetic = ?", userID, true).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("synthetic = ? AND name LIKE ?", true, fmt.Sprintf("harness-%d-%%", userID)).Delete(&models.Guild{}).Error; err != nil {
			return err
		}
		err := tx.Where("user_id = ?", userID).
			Where("NOT EXISTS (SELECT 1 FROM user_achievements ua WHERE ua.user_id = achievement_progress.user_id AND ua.achievement_id = achievement_progress.achievement_id)").
			Delete(&models.AchievementProgress{}).Error
		if err != nil {
			return err
		}
		if xp > 0 {
			err := tx.Model(&models.User{}).Where("id = ?", userID).
				UpdateColumn(models.CounterXP, gorm.Expr("CASE WHEN xp > ? THEN xp - ? ELSE 0 END", xp, xp)).Error
			if err != nil {
				return err
			}
			if _, err := store.RecalculateLevel(tx, userID); err != nil {
				return err
			}
		}
		return tx.Where("user_id = ?", userID).Delete(&models.HarnessGrant{}).Error
	})
	if err != nil {
		return apperr.Wrap(apperr.ErrTransaction, err)
	}
	if h.ids != nil {
		h.ids.Clear()
	}
	h.invalidate(ctx, userID)
	return nil
}

// heldCodes lists the catalog ids userID has unlocked.
func (h *Harness) heldCodes(ctx context.Context, userID uint) (map[string]bool, error) {
	unlocks, err := h.unlocks.Unlocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(unlocks))
	if len(unlocks) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, len(unlocks))
	for i, u := range unlocks {
		ids[i] = u.AchievementID
	}
	var codes []string
	if err := h.db.WithContext(ctx).Model(&models.Achievement{}).Where("id IN ?", ids).Pluck("code", &codes).Error; err != nil {
		return nil, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	for _, c := range codes {
		out[c] = true
	}
	return out, nil
}

// forceDelete removes an unlock whose definition left the catalog.
func (h *Harness) forceDelete(ctx context.Context, userID uint, code string) error {
	sub := h.db.Model(&models.Achievement{}).Select("id").Where("code = ?", code)
	err := h.db.WithContext(ctx).Where("user_id = ? AND achievement_id IN (?)", userID, sub).Delete(&models.UserAchievement{}).Error
	if err != nil {
		return apperr.Wrap(apperr.ErrTransaction, err)
	}
	return nil
}

func (h *Harness) invalidate(ctx context.Context, userID uint) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, userID)
	}
}
