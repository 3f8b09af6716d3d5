// Package workouts records completed workouts and personal records and runs
// the achievement checks they trigger.
package workouts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
	"github.com/gdg-garage/garage-fit-api/internal/checker"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/gdg-garage/garage-fit-api/internal/models"
	"github.com/gdg-garage/garage-fit-api/internal/store"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Checks is the part of the achievement facade workouts need.
type Checks interface {
	ProcessCompletedWorkout(ctx context.Context, userID uint) ([]string, error)
	CheckManualWorkoutAchievements(ctx context.Context, userID uint) ([]string, error)
	CheckXPAchievements(ctx context.Context, userID uint, knownXP *int64) ([]string, error)
	CheckPersonalRecordAchievements(ctx context.Context, userID uint, fresh *checker.RecordContext) ([]string, error)
}

// Invalidator drops cached statistics for a user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uint)
}

type Input struct {
	ExerciseType    string    `json:"exercise_type" validate:"required,max=64"`
	DurationMinutes int       `json:"duration_minutes,omitempty" validate:"min=0,max=1440"`
	Manual          bool      `json:"manual,omitempty" doc:"Logged by hand with a photo instead of tracked"`
	PhotoURL        string    `json:"photo_url,omitempty" validate:"omitempty,url"`
	CompletedAt     time.Time `json:"completed_at,omitempty" doc:"Defaults to now"`
}

type Result struct {
	Workout      models.Workout `json:"workout"`
	Achievements []string       `json:"achievements"`
}

type Service struct {
	db       *gorm.DB
	checks   Checks
	cache    Invalidator
	validate *validator.Validate
	now      func() time.Time
	log      *logger.Logger
}

func NewService(db *gorm.DB, checks Checks, cache Invalidator, log *logger.Logger) *Service {
	return &Service{
		db:       db,
		checks:   checks,
		cache:    cache,
		validate: validator.New(),
		now:      time.Now,
		log:      log.With("service", "WorkoutService"),
	}
}

// Complete stores a workout, grants its XP and runs the achievement checks.
func (s *Service) Complete(ctx context.Context, userID uint, in Input) (Result, error) {
	in.ExerciseType = strings.ToLower(strings.TrimSpace(in.ExerciseType))
	if err := s.validate.Struct(in); err != nil {
		return Result{}, apperr.Wrap(apperr.ErrValidation, err)
	}
	if in.CompletedAt.IsZero() {
		in.CompletedAt = s.now()
	}
	if in.CompletedAt.After(s.now().Add(time.Minute)) {
		return Result{}, apperr.New(apperr.ErrValidation, "completed_at is in the future")
	}

	var workout models.Workout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id", "class").First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.ErrNotFound, "user %d not found", userID)
			}
			return err
		}

		earned := ApplyClassBonus(user.Class, in.ExerciseType, BaseXP(in.DurationMinutes))
		workout = models.Workout{
			UserID:          userID,
			ExerciseType:    in.ExerciseType,
			DurationMinutes: in.DurationMinutes,
			Manual:          in.Manual,
			PhotoURL:        in.PhotoURL,
			XPEarned:        earned,
			CompletedAt:     in.CompletedAt.UTC(),
		}
		if err := tx.Create(&workout).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn(models.CounterXP, gorm.Expr("xp + ?", earned)).Error; err != nil {
			return err
		}
		_, err := store.RecalculateLevel(tx, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Result{}, err
		}
		return Result{}, apperr.Wrap(apperr.ErrTransaction, err)
	}
	s.log.Info("workout completed", "user_id", userID, "exercise", workout.ExerciseType, "xp", workout.XPEarned, "manual", workout.Manual)
	s.invalidate(ctx, userID)

	res := Result{Workout: workout}
	ids, err := s.checks.ProcessCompletedWorkout(ctx, userID)
	res.Achievements = s.collect(res.Achievements, ids, err)
	if workout.Manual {
		ids, err = s.checks.CheckManualWorkoutAchievements(ctx, userID)
		res.Achievements = s.collect(res.Achievements, ids, err)
	}
	// achievements awarded above grant XP too, so read the total fresh
	s.invalidate(ctx, userID)
	ids, err = s.checks.CheckXPAchievements(ctx, userID, nil)
	res.Achievements = s.collect(res.Achievements, ids, err)
	return res, nil
}

// RecordPersonalRecord stores a personal record and checks record
// achievements with it.
func (s *Service) RecordPersonalRecord(ctx context.Context, userID uint, exercise string, value float64) (models.PersonalRecord, []string, error) {
	exercise = strings.ToLower(strings.TrimSpace(exercise))
	if exercise == "" || value <= 0 {
		return models.PersonalRecord{}, nil, apperr.New(apperr.ErrValidation, "exercise and a positive value are required")
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return models.PersonalRecord{}, nil, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	if n == 0 {
		return models.PersonalRecord{}, nil, apperr.New(apperr.ErrNotFound, "user %d not found", userID)
	}

	pr := models.PersonalRecord{UserID: userID, Exercise: exercise, Value: value}
	if err := s.db.WithContext(ctx).Create(&pr).Error; err != nil {
		return models.PersonalRecord{}, nil, apperr.Wrap(apperr.ErrTransaction, err)
	}
	s.invalidate(ctx, userID)

	ids, err := s.checks.CheckPersonalRecordAchievements(ctx, userID, &checker.RecordContext{Exercise: exercise, Value: value})
	return pr, s.collect(nil, ids, err), nil
}

func (s *Service) invalidate(ctx context.Context, userID uint) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
}

func (s *Service) collect(acc []string, ids []string, err error) []string {
	if err != nil {
		s.log.Warn("achievement check failed", "error", err)
		return acc
	}
	return append(acc, ids...)
}
