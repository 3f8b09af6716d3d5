package workouts

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

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	cat, err := catalog.Load("", logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := idmap.Sync(context.Background(), db, cat.All()); err != nil {
		t.Fatal(err)
	}
	ids := idmap.New(idmap.NewGormSource(db), time.Minute, logger.Nop())
	st := store.NewGormStore(db)
	provider := stats.NewCachedProvider(
		stats.NewGormProvider(db).WithClock(func() time.Time { return fixedNow }),
		stats.NewMemoryCache(), time.Minute, logger.Nop(),
	)
	engine := award.NewEngine(st, ids, cat, nil, award.Options{}, logger.Nop())
	checks := checker.NewService(checker.NewCheckers(cat, provider, ids, st, logger.Nop()), engine, st, logger.Nop())

	svc := NewService(db, checks, provider, logger.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc, db
}

func TestClassBonus(t *testing.T) {
	tests := []struct {
		class    string
		exercise string
		want     int
	}{
		{ClassNone, "running", 100},
		{ClassWarrior, "weightlifting", 110},
		{ClassWarrior, "running", 100},
		{ClassRanger, "Running", 110},
		{ClassRanger, "crossfit", 100},
		{ClassMonk, "yoga", 105},
	}
	for _, tt := range tests {
		t.Run(tt.class+"/"+tt.exercise, func(t *testing.T) {
			if got := ApplyClassBonus(tt.class, tt.exercise, 100); got != tt.want {
				t.Errorf("ApplyClassBonus = %d, want %d", got, tt.want)
			}
		})
	}
	if BaseXP(30) != 16 || BaseXP(4) != 10 || BaseXP(-5) != 10 {
		t.Errorf("unexpected base xp: %d %d %d", BaseXP(30), BaseXP(4), BaseXP(-5))
	}
}

func TestComplete(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "runner")
	db.Model(user).UpdateColumn("class", ClassRanger)

	res, err := svc.Complete(ctx, user.ID, Input{ExerciseType: "Running", DurationMinutes: 50, CompletedAt: fixedNow.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	// (10 + 50/5) * 1.10
	if res.Workout.XPEarned != 22 {
		t.Errorf("expected 22 xp earned, got %d", res.Workout.XPEarned)
	}
	if !slices.Contains(res.Achievements, "first-workout") {
		t.Errorf("expected first-workout, got %v", res.Achievements)
	}

	var u models.User
	db.First(&u, user.ID)
	if u.XP != 22+25 {
		t.Errorf("expected workout xp plus first-workout reward, got %d", u.XP)
	}

	res, err = svc.Complete(ctx, user.ID, Input{ExerciseType: "running", DurationMinutes: 20})
	if err != nil {
		t.Fatalf("second Complete returned error: %v", err)
	}
	if slices.Contains(res.Achievements, "first-workout") {
		t.Errorf("first-workout awarded twice: %v", res.Achievements)
	}
}

type noChecks struct{}

func (noChecks) ProcessCompletedWorkout(context.Context, uint) ([]string, error) { return nil, nil }
func (noChecks) CheckManualWorkoutAchievements(context.Context, uint) ([]string, error) {
	return nil, nil
}
func (noChecks) CheckXPAchievements(context.Context, uint, *int64) ([]string, error) { return nil, nil }
func (noChecks) CheckPersonalRecordAchievements(context.Context, uint, *checker.RecordContext) ([]string, error) {
	return nil, nil
}

func TestComplete_LevelFollowsStoredXP(t *testing.T) {
	db := testutil.DB(t)
	svc := NewService(db, noChecks{}, nil, logger.Nop())
	svc.now = func() time.Time { return fixedNow }
	user := testutil.SeedUser(t, db, "almost-two")
	db.Model(user).UpdateColumn("xp", 270)

	if _, err := svc.Complete(context.Background(), user.ID, Input{ExerciseType: "running", DurationMinutes: 20}); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	var u models.User
	db.First(&u, user.ID)
	if u.XP != 284 {
		t.Fatalf("expected xp 284, got %d", u.XP)
	}
	if u.Level != stats.LevelForXP(u.XP) || u.Level != 2 {
		t.Errorf("expected level 2 for %d xp, got %d", u.XP, u.Level)
	}
}

func TestComplete_Manual(t *testing.T) {
	svc, db := newService(t)
	user := testutil.SeedUser(t, db, "manual")

	res, err := svc.Complete(context.Background(), user.ID, Input{ExerciseType: "swimming", DurationMinutes: 30, Manual: true, PhotoURL: "https://cdn.example.com/p/1.jpg"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if !slices.Contains(res.Achievements, "first-manual-workout") {
		t.Errorf("expected first-manual-workout, got %v", res.Achievements)
	}
}

func TestComplete_Validation(t *testing.T) {
	svc, db := newService(t)
	user := testutil.SeedUser(t, db, "invalid")
	ctx := context.Background()

	tests := []struct {
		name string
		in   Input
		kind error
	}{
		{"MissingType", Input{DurationMinutes: 10}, apperr.ErrValidation},
		{"NegativeDuration", Input{ExerciseType: "running", DurationMinutes: -1}, apperr.ErrValidation},
		{"BadPhoto", Input{ExerciseType: "running", PhotoURL: "not a url"}, apperr.ErrValidation},
		{"Future", Input{ExerciseType: "running", CompletedAt: fixedNow.Add(time.Hour)}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Complete(ctx, user.ID, tt.in); !errors.Is(err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, err)
			}
		})
	}

	if _, err := svc.Complete(ctx, 999, Input{ExerciseType: "running"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
	var n int64
	db.Model(&models.Workout{}).Count(&n)
	if n != 0 {
		t.Errorf("rejected workouts must not be stored, got %d", n)
	}
}

func TestRecordPersonalRecord(t *testing.T) {
	svc, db := newService(t)
	user := testutil.SeedUser(t, db, "lifter")
	ctx := context.Background()

	pr, awarded, err := svc.RecordPersonalRecord(ctx, user.ID, "Deadlift", 180)
	if err != nil {
		t.Fatalf("RecordPersonalRecord returned error: %v", err)
	}
	if pr.Exercise != "deadlift" || pr.ID == 0 {
		t.Errorf("unexpected record %+v", pr)
	}
	if !slices.Equal(awarded, []string{"first-record"}) {
		t.Errorf("expected first-record, got %v", awarded)
	}

	if _, _, err := svc.RecordPersonalRecord(ctx, user.ID, "squat", 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if _, _, err := svc.RecordPersonalRecord(ctx, 999, "squat", 100); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
