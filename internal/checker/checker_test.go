package checker

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
	"github.com/gdg-garage/garage-fit-api/internal/award"
	"github.com/gdg-garage/garage-fit-api/internal/catalog"
	"github.com/gdg-garage/garage-fit-api/internal/idmap"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/gdg-garage/garage-fit-api/internal/models"
	"github.com/gdg-garage/garage-fit-api/internal/stats"
	"github.com/gdg-garage/garage-fit-api/internal/store"
	"github.com/gdg-garage/garage-fit-api/internal/testutil"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)

type env struct {
	db       *gorm.DB
	cat      *catalog.Catalog
	ids      *idmap.Mapper
	store    *store.GormStore
	checkers *Checkers
	service  *Service
	user     *models.User
}

func newEnv(t *testing.T, provider stats.Provider) *env {
	t.Helper()
	db := testutil.DB(t)
	cat, err := catalog.Load("", logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := idmap.Sync(context.Background(), db, cat.All()); err != nil {
		t.Fatal(err)
	}
	if provider == nil {
		provider = stats.NewGormProvider(db).WithClock(func() time.Time { return fixedNow })
	}
	e := &env{
		db:    db,
		cat:   cat,
		ids:   idmap.New(idmap.NewGormSource(db), time.Minute, logger.Nop()),
		store: store.NewGormStore(db),
		user:  testutil.SeedUser(t, db, "checker-user"),
	}
	engine := award.NewEngine(e.store, e.ids, cat, nil, award.Options{MaxAttempts: 2, Backoff: time.Millisecond}, logger.Nop())
	e.checkers = NewCheckers(cat, provider, e.ids, e.store, logger.Nop())
	e.service = NewService(e.checkers, engine, e.store, logger.Nop())
	return e
}

func (e *env) unlocked(t *testing.T, code string) bool {
	t.Helper()
	id, err := e.ids.ToStorageID(context.Background(), code)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := e.store.Exists(context.Background(), e.user.ID, id)
	if err != nil {
		t.Fatal(err)
	}
	return ok
}

func (e *env) progress(t *testing.T, code string) (models.AchievementProgress, bool) {
	t.Helper()
	id, err := e.ids.ToStorageID(context.Background(), code)
	if err != nil {
		t.Fatal(err)
	}
	var row models.AchievementProgress
	err = e.db.Where("user_id = ? AND achievement_id = ?", e.user.ID, id).First(&row).Error
	return row, err == nil
}

type downProvider struct{}

var errDown = apperr.Wrap(apperr.ErrDataUnavailable, errors.New("connection refused"))

func (downProvider) WorkoutCounts(context.Context, uint) (stats.WorkoutCounts, error) {
	return stats.WorkoutCounts{}, errDown
}
func (downProvider) CurrentStreak(context.Context, uint) (int, error) { return 0, errDown }
func (downProvider) Progression(context.Context, uint) (stats.Progression, error) {
	return stats.Progression{}, errDown
}
func (downProvider) PersonalRecordCount(context.Context, uint) (int64, error)      { return 0, errDown }
func (downProvider) DistinctActivityTypes(context.Context, uint) (int64, error)    { return 0, errDown }
func (downProvider) GuildMemberships(context.Context, uint) (int64, error)         { return 0, errDown }
func (downProvider) GuildQuestParticipations(context.Context, uint) (int64, error) { return 0, errDown }

func TestProcessCompletedWorkout_FirstWorkout(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	testutil.SeedWorkouts(t, e.db, e.user.ID, "running", false, fixedNow.Add(-time.Hour))

	got, err := e.service.ProcessCompletedWorkout(ctx, e.user.ID)
	if err != nil {
		t.Fatalf("ProcessCompletedWorkout returned error: %v", err)
	}
	if !slices.Contains(got, "first-workout") {
		t.Fatalf("expected first-workout, got %v", got)
	}

	got, err = e.service.ProcessCompletedWorkout(ctx, e.user.ID)
	if err != nil {
		t.Fatalf("second ProcessCompletedWorkout returned error: %v", err)
	}
	if slices.Contains(got, "first-workout") {
		t.Errorf("first-workout must not be awarded twice, got %v", got)
	}
}

func TestCheckStreakAchievements(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	testutil.SeedWorkouts(t, e.db, e.user.ID, "running", false, testutil.Days(fixedNow, 7)...)

	got, err := e.service.CheckStreakAchievements(ctx, e.user.ID)
	if err != nil {
		t.Fatalf("CheckStreakAchievements returned error: %v", err)
	}
	if !slices.Contains(got, "streak-7") {
		t.Errorf("expected streak-7, got %v", got)
	}
	if slices.Contains(got, "streak-14") {
		t.Errorf("streak-14 must not be awarded at 7 days, got %v", got)
	}

	row, ok := e.progress(t, "streak-14")
	if !ok {
		t.Fatal("expected progress toward streak-14")
	}
	if row.Current != 7 || row.Target != 14 || row.IsComplete {
		t.Errorf("unexpected streak-14 progress %+v", row)
	}
}

func TestCheckStreak_ResetLowersProgress(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	testutil.SeedWorkouts(t, e.db, e.user.ID, "running", false, testutil.Days(fixedNow, 10)...)

	e.checkers.Streak(ctx, e.user.ID)
	row, ok := e.progress(t, "streak-14")
	if !ok || row.Current != 10 {
		t.Fatalf("expected streak-14 at 10, got %+v", row)
	}

	// five days without a workout break the streak
	later := NewCheckers(e.cat, stats.NewGormProvider(e.db).WithClock(func() time.Time {
		return fixedNow.AddDate(0, 0, 5)
	}), e.ids, e.store, logger.Nop())
	if got := later.Streak(ctx, e.user.ID); len(got) != 0 {
		t.Errorf("expected no candidates after reset, got %v", got)
	}
	for _, code := range []string{"streak-14", "streak-30"} {
		row, ok := e.progress(t, code)
		if !ok {
			t.Fatalf("expected progress row for %s", code)
		}
		if row.Current != 0 || row.IsComplete {
			t.Errorf("expected %s reset to 0, got %+v", code, row)
		}
	}
	if row, _ := e.progress(t, "streak-7"); row.Current != 0 {
		t.Errorf("expected streak-7 reset to 0, got %+v", row)
	}
}

func TestCheckers_StatisticsUnavailable(t *testing.T) {
	e := newEnv(t, downProvider{})
	ctx := context.Background()

	checks := map[string]func() []string{
		"workouts": func() []string { return e.checkers.Workouts(ctx, e.user.ID) },
		"streak":   func() []string { return e.checkers.Streak(ctx, e.user.ID) },
		"records":  func() []string { return e.checkers.Records(ctx, e.user.ID, nil) },
		"xp":       func() []string { return e.checkers.XP(ctx, e.user.ID, nil) },
		"variety":  func() []string { return e.checkers.Variety(ctx, e.user.ID) },
		"guild":    func() []string { return e.checkers.Guild(ctx, e.user.ID) },
		"manual":   func() []string { return e.checkers.Manual(ctx, e.user.ID) },
	}
	for name, check := range checks {
		t.Run(name, func(t *testing.T) {
			if got := check(); len(got) != 0 {
				t.Errorf("expected no candidates, got %v", got)
			}
		})
	}

	got, err := e.service.CheckAll(ctx, e.user.ID)
	if err != nil {
		t.Fatalf("CheckAll returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected nothing awarded, got %v", got)
	}
}

func TestCheckers_Categories(t *testing.T) {
	t.Run("Records", func(t *testing.T) {
		e := newEnv(t, nil)
		ctx := context.Background()
		if got := e.checkers.Records(ctx, e.user.ID, nil); len(got) != 0 {
			t.Errorf("expected no record candidates, got %v", got)
		}
		got := e.checkers.Records(ctx, e.user.ID, &RecordContext{Exercise: "deadlift", Value: 180})
		if !slices.Equal(got, []string{"first-record"}) {
			t.Errorf("expected fresh record to count, got %v", got)
		}
	})

	t.Run("FreshRecordWithoutStatistics", func(t *testing.T) {
		e := newEnv(t, downProvider{})
		got := e.checkers.Records(context.Background(), e.user.ID, &RecordContext{Exercise: "bench", Value: 100})
		if !slices.Equal(got, []string{"first-record"}) {
			t.Errorf("expected first-record, got %v", got)
		}
	})

	t.Run("XP", func(t *testing.T) {
		e := newEnv(t, nil)
		xp := int64(5000)
		got := e.checkers.XP(context.Background(), e.user.ID, &xp)
		for _, want := range []string{"xp-1000", "xp-5000", "level-5"} {
			if !slices.Contains(got, want) {
				t.Errorf("expected %s in %v", want, got)
			}
		}
		if slices.Contains(got, "xp-10000") || slices.Contains(got, "level-10") {
			t.Errorf("unexpected higher tier in %v", got)
		}
		if row, ok := e.progress(t, "xp-1000"); !ok || !row.IsComplete {
			t.Errorf("expected xp-1000 progress complete, got %+v", row)
		}
		if row, ok := e.progress(t, "xp-10000"); !ok || row.IsComplete || row.Current != 5000 {
			t.Errorf("expected partial xp-10000 progress, got %+v", row)
		}
		if _, ok := e.progress(t, "xp-50000"); ok {
			t.Error("progress beyond the next threshold must not be created")
		}
	})

	t.Run("Variety", func(t *testing.T) {
		e := newEnv(t, nil)
		for _, kind := range []string{"running", "cycling", "yoga"} {
			testutil.SeedWorkouts(t, e.db, e.user.ID, kind, false, fixedNow)
		}
		got := e.checkers.Variety(context.Background(), e.user.ID)
		if !slices.Equal(got, []string{"variety-3"}) {
			t.Errorf("expected variety-3, got %v", got)
		}
	})

	t.Run("Guild", func(t *testing.T) {
		e := newEnv(t, nil)
		e.db.Create(&models.GuildMember{GuildID: 1, UserID: e.user.ID})
		e.db.Create(&models.GuildQuestParticipation{GuildID: 1, UserID: e.user.ID, Quest: "october-push"})
		got := e.checkers.Guild(context.Background(), e.user.ID)
		if !slices.Equal(got, []string{"first-guild", "first-guild-quest"}) {
			t.Errorf("expected first guild achievements, got %v", got)
		}
	})

	t.Run("Manual", func(t *testing.T) {
		e := newEnv(t, nil)
		testutil.SeedWorkouts(t, e.db, e.user.ID, "swimming", true, testutil.Days(fixedNow, 3)...)
		testutil.SeedWorkouts(t, e.db, e.user.ID, "running", false, fixedNow)
		got := e.checkers.Manual(context.Background(), e.user.ID)
		if !slices.Equal(got, []string{"first-manual-workout", "manual-3"}) {
			t.Errorf("expected manual ladder to 3, got %v", got)
		}
	})

	t.Run("WeeklyAndMonthly", func(t *testing.T) {
		e := newEnv(t, nil)
		// Wednesday: Mon, Tue, Wed count this week
		testutil.SeedWorkouts(t, e.db, e.user.ID, "running", false, testutil.Days(fixedNow, 5)...)
		got := e.checkers.Workouts(context.Background(), e.user.ID)
		if !slices.Contains(got, "weekly-3") {
			t.Errorf("expected weekly-3, got %v", got)
		}
		if slices.Contains(got, "weekly-5") {
			t.Errorf("weekend workouts must not count toward this week, got %v", got)
		}
	})
}

func TestService_ReconcilesCompletedProgress(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	id, err := e.ids.ToStorageID(ctx, "total-10")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.store.UpsertProgress(ctx, store.Progress{UserID: e.user.ID, AchievementID: id, Current: 10, Target: 10, IsComplete: true}); err != nil {
		t.Fatal(err)
	}

	got, err := e.service.CheckWorkoutAchievements(ctx, e.user.ID)
	if err != nil {
		t.Fatalf("CheckWorkoutAchievements returned error: %v", err)
	}
	if !slices.Equal(got, []string{"total-10"}) {
		t.Errorf("expected stuck progress to unlock total-10, got %v", got)
	}
	if !e.unlocked(t, "total-10") {
		t.Error("expected total-10 unlocked")
	}
	pending, _ := e.store.CompletedWithoutUnlock(ctx, e.user.ID)
	if len(pending) != 0 {
		t.Errorf("expected no pending progress, got %v", pending)
	}
}

func TestService_CheckAll(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	testutil.SeedWorkouts(t, e.db, e.user.ID, "running", false, testutil.Days(fixedNow, 3)...)
	e.db.Create(&models.PersonalRecord{UserID: e.user.ID, Exercise: "squat", Value: 120})

	got, err := e.service.CheckAll(ctx, e.user.ID)
	if err != nil {
		t.Fatalf("CheckAll returned error: %v", err)
	}
	for _, want := range []string{"first-workout", "streak-3", "weekly-3", "first-record"} {
		if !slices.Contains(got, want) {
			t.Errorf("expected %s in %v", want, got)
		}
	}
	again, _ := e.service.CheckAll(ctx, e.user.ID)
	if len(again) != 0 {
		t.Errorf("expected nothing new on repeat, got %v", again)
	}
}

func TestService_RequiresUser(t *testing.T) {
	e := newEnv(t, nil)
	if _, err := e.service.CheckAll(context.Background(), 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
