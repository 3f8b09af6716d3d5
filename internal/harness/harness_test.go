package harness

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
	"github.com/gdg-garage/garage-fit-api/internal/award"
	"github.com/gdg-garage/garage-fit-api/internal/catalog"
	"github.com/gdg-garage/garage-fit-api/internal/checker"
	"github.com/gdg-garage/garage-fit-api/internal/idmap"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/gdg-garage/garage-fit-api/internal/models"
	"github.com/gdg-garage/garage-fit-api/internal/stats"
	"github.com/gdg-garage/garage-fit-api/internal/store"
	"github.com/gdg-garage/garage-fit-api/internal/testutil"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) (*Harness, *gorm.DB, *catalog.Catalog) {
	t.Helper()
	db := testutil.DB(t)
	cat, err := catalog.Load("", logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := idmap.Sync(context.Background(), db, cat.All()); err != nil {
		t.Fatal(err)
	}
	clock := func() time.Time { return fixedNow }
	ids := idmap.New(idmap.NewGormSource(db), time.Minute, logger.Nop())
	st := store.NewGormStore(db)
	provider := stats.NewCachedProvider(stats.NewGormProvider(db).WithClock(clock), stats.NewMemoryCache(), time.Minute, logger.Nop())
	engine := award.NewEngine(st, ids, cat, nil, award.Options{}, logger.Nop())
	svc := checker.NewService(checker.NewCheckers(cat, provider, ids, st, logger.Nop()), engine, st, logger.Nop()).
		WithInvalidator(provider)

	h := New(db, cat, svc, engine, st, provider, ids, logger.Nop()).WithClock(clock)
	return h, db, cat
}

func TestSimulate(t *testing.T) {
	h, db, _ := newHarness(t)
	user := testutil.SeedUser(t, db, "harness-user")
	ctx := context.Background()

	got, err := h.Simulate(ctx, user.ID, Scenario{StreakDays: 7, PersonalRecords: 1, Guilds: 1, GuildQuests: 1})
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}
	for _, want := range []string{"first-workout", "streak-3", "streak-7", "first-record", "first-guild", "first-guild-quest"} {
		if !slices.Contains(got, want) {
			t.Errorf("expected %s in %v", want, got)
		}
	}
	if slices.Contains(got, "streak-14") {
		t.Errorf("streak-14 must not unlock at 7 days: %v", got)
	}

	again, err := h.Simulate(ctx, user.ID, Scenario{})
	if err != nil {
		t.Fatalf("empty Simulate returned error: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected nothing new, got %v", again)
	}
}

func TestSimulate_Formula(t *testing.T) {
	h, db, _ := newHarness(t)
	user := testutil.SeedUser(t, db, "formula-user")
	ctx := context.Background()

	got, err := h.Simulate(ctx, user.ID, Scenario{XPFormula: "100 * level * 10"})
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}
	if !slices.Contains(got, "xp-1000") {
		t.Errorf("expected xp-1000, got %v", got)
	}

	if _, err := h.Simulate(ctx, user.ID, Scenario{XPFormula: "level - 100"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected negative xp to be rejected, got %v", err)
	}
	if _, err := h.Simulate(ctx, user.ID, Scenario{XPFormula: "exec(1)"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected unknown identifiers to be rejected, got %v", err)
	}
	if _, err := h.Simulate(ctx, user.ID, Scenario{XPFormula: "100000000000 * 100000000000 * 100000000000"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected oversized xp to be rejected, got %v", err)
	}
	if _, err := h.Simulate(ctx, user.ID, Scenario{XP: -5}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected negative scenario xp to be rejected, got %v", err)
	}
}

func TestCleanup(t *testing.T) {
	h, db, _ := newHarness(t)
	user := testutil.SeedUser(t, db, "cleanup-user")
	ctx := context.Background()
	testutil.SeedWorkouts(t, db, user.ID, "running", false, fixedNow.AddDate(0, 0, -30))

	if _, err := h.Simulate(ctx, user.ID, Scenario{Workouts: 10, PersonalRecords: 5, Guilds: 3, XP: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := h.Cleanup(ctx, user.ID); err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}

	var u models.User
	db.First(&u, user.ID)
	if u.AchievementCount != 0 || u.AchievementPoints != 0 || u.XP != 0 || u.Level != 1 {
		t.Errorf("expected counters reset, got %+v", u)
	}
	counts := map[string]interface{}{
		"unlocks":  &models.UserAchievement{},
		"progress": &models.AchievementProgress{},
		"records":  &models.PersonalRecord{},
		"members":  &models.GuildMember{},
	}
	for name, model := range counts {
		var n int64
		db.Unscoped().Model(model).Where("user_id = ?", user.ID).Count(&n)
		if n != 0 {
			t.Errorf("expected no %s left, got %d", name, n)
		}
	}
	var guilds int64
	db.Unscoped().Model(&models.Guild{}).Count(&guilds)
	if guilds != 0 {
		t.Errorf("expected synthetic guilds removed, got %d", guilds)
	}
	var workouts int64
	db.Unscoped().Model(&models.Workout{}).Where("user_id = ?", user.ID).Count(&workouts)
	if workouts != 1 {
		t.Errorf("expected only the real workout left, got %d", workouts)
	}
}

func unlockedCodes(t *testing.T, db *gorm.DB, userID uint) []string {
	t.Helper()
	var codes []string
	err := db.Model(&models.UserAchievement{}).
		Joins("JOIN achievements ON achievements.id = user_achievements.achievement_id").
		Where("user_achievements.user_id = ?", userID).
		Order("achievements.code").
		Pluck("achievements.code", &codes).Error
	if err != nil {
		t.Fatal(err)
	}
	return codes
}

func TestCleanup_KeepsRealHistory(t *testing.T) {
	h, db, _ := newHarness(t)
	user := testutil.SeedUser(t, db, "veteran")
	ctx := context.Background()
	testutil.SeedWorkouts(t, db, user.ID, "running", false, fixedNow.Add(-time.Hour))
	db.Model(&models.User{}).Where("id = ?", user.ID).UpdateColumn("xp", 40)

	if _, err := h.checker.CheckAll(ctx, user.ID); err != nil {
		t.Fatal(err)
	}
	var before models.User
	db.First(&before, user.ID)
	held := unlockedCodes(t, db, user.ID)
	if !slices.Contains(held, "first-workout") {
		t.Fatalf("expected a real first-workout unlock, got %v", held)
	}
	if before.XP <= 40 {
		t.Fatalf("expected the unlock reward on top of 40 xp, got %d", before.XP)
	}

	awarded, err := h.Simulate(ctx, user.ID, Scenario{Workouts: 10, StreakDays: 3, XP: 500})
	if err != nil {
		t.Fatal(err)
	}
	if len(awarded) == 0 {
		t.Fatal("expected the scenario to unlock something")
	}
	if err := h.Cleanup(ctx, user.ID); err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}

	var after models.User
	db.First(&after, user.ID)
	if after.XP != before.XP || after.Level != before.Level {
		t.Errorf("expected xp %d level %d, got xp %d level %d", before.XP, before.Level, after.XP, after.Level)
	}
	if after.AchievementCount != before.AchievementCount || after.AchievementPoints != before.AchievementPoints {
		t.Errorf("expected counters %d/%d, got %d/%d", before.AchievementCount, before.AchievementPoints, after.AchievementCount, after.AchievementPoints)
	}
	if got := unlockedCodes(t, db, user.ID); !slices.Equal(got, held) {
		t.Errorf("expected real unlocks %v, got %v", held, got)
	}
	var grants int64
	db.Model(&models.HarnessGrant{}).Where("user_id = ?", user.ID).Count(&grants)
	if grants != 0 {
		t.Errorf("expected the run ledger cleared, got %d rows", grants)
	}

	// a second cleanup has nothing left to take back
	if err := h.Cleanup(ctx, user.ID); err != nil {
		t.Fatal(err)
	}
	db.First(&after, user.ID)
	if after.XP != before.XP {
		t.Errorf("repeat cleanup changed xp to %d", after.XP)
	}
}

func TestVerifyAll_SkipsHeldAchievements(t *testing.T) {
	if testing.Short() {
		t.Skip("walks the whole catalog")
	}
	h, db, _ := newHarness(t)
	user := testutil.SeedUser(t, db, "verify-veteran")
	ctx := context.Background()
	testutil.SeedWorkouts(t, db, user.ID, "running", false, fixedNow.Add(-time.Hour))
	if _, err := h.checker.CheckAll(ctx, user.ID); err != nil {
		t.Fatal(err)
	}
	var before models.User
	db.First(&before, user.ID)

	rep, err := h.VerifyAll(ctx, user.ID)
	if err != nil {
		t.Fatalf("VerifyAll returned error: %v", err)
	}
	for _, c := range rep.Checks {
		if c.AchievementID == "first-workout" && (!c.Skipped || c.Reason == "") {
			t.Errorf("expected held first-workout skipped with a reason, got %+v", c)
		}
	}
	if got := unlockedCodes(t, db, user.ID); !slices.Contains(got, "first-workout") {
		t.Errorf("real unlock lost, got %v", got)
	}
	var after models.User
	db.First(&after, user.ID)
	if after.XP != before.XP {
		t.Errorf("expected xp %d kept, got %d", before.XP, after.XP)
	}
}

func TestVerifyAll(t *testing.T) {
	if testing.Short() {
		t.Skip("walks the whole catalog")
	}
	h, db, cat := newHarness(t)
	user := testutil.SeedUser(t, db, "verify-user")

	rep, err := h.VerifyAll(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("VerifyAll returned error: %v", err)
	}
	if rep.Total != cat.Len() {
		t.Errorf("expected %d checks, got %d", cat.Len(), rep.Total)
	}
	for _, c := range rep.Checks {
		if !c.Passed {
			t.Errorf("%s not triggered: skipped=%v err=%q awarded=%v", c.AchievementID, c.Skipped, c.Error, c.Awarded)
		}
	}

	var unlocks int64
	db.Model(&models.UserAchievement{}).Where("user_id = ?", user.ID).Count(&unlocks)
	if unlocks != 0 {
		t.Errorf("VerifyAll must leave no unlocks behind, got %d", unlocks)
	}
}

func TestMinimalScenario(t *testing.T) {
	tests := []struct {
		def  catalog.Definition
		want Scenario
	}{
		{catalog.Definition{RequirementType: catalog.ReqWeeklyWorkouts, RequirementValue: 5}, Scenario{Workouts: 5}},
		{catalog.Definition{RequirementType: catalog.ReqStreakDays, RequirementValue: 30}, Scenario{StreakDays: 30}},
		{catalog.Definition{RequirementType: catalog.ReqGuildQuests, RequirementValue: 3}, Scenario{GuildQuests: 3}},
		{catalog.Definition{RequirementType: catalog.ReqLevel, RequirementValue: 5}, Scenario{XP: stats.XPToReach(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.def.RequirementType, func(t *testing.T) {
			got, ok := MinimalScenario(tt.def)
			if !ok || got != tt.want {
				t.Errorf("MinimalScenario = %+v, %v; want %+v", got, ok, tt.want)
			}
		})
	}
	if _, ok := MinimalScenario(catalog.Definition{RequirementType: "moon_phase"}); ok {
		t.Error("unknown requirement types must be reported")
	}
}
