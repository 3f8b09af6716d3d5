package checker

import (
	"context"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
	"github.com/gdg-garage/garage-fit-api/internal/award"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/gdg-garage/garage-fit-api/internal/checker")

type Awarder interface {
	AwardBatch(ctx context.Context, userID uint, ids []string) award.BatchResult
}

// PendingSource lists progress rows that are complete but not unlocked.
type PendingSource interface {
	CompletedWithoutUnlock(ctx context.Context, userID uint) ([]uuid.UUID, error)
}

// Invalidator drops cached statistics for a user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uint)
}

// Service is the single entry point for achievement checks. Every method
// awards what its checkers found and returns the newly unlocked ids.
type Service struct {
	checkers *Checkers
	awarder  Awarder
	pending  PendingSource
	cache    Invalidator
	log      *logger.Logger
}

func NewService(checkers *Checkers, awarder Awarder, pending PendingSource, log *logger.Logger) *Service {
	return &Service{
		checkers: checkers,
		awarder:  awarder,
		pending:  pending,
		log:      log.With("service", "AchievementService"),
	}
}

// WithInvalidator lets CheckAll refresh cached XP after awarding.
func (s *Service) WithInvalidator(inv Invalidator) *Service {
	s.cache = inv
	return s
}

// ProcessCompletedWorkout runs the workout, streak and variety checks in
// that order.
func (s *Service) ProcessCompletedWorkout(ctx context.Context, userID uint) ([]string, error) {
	return s.run(ctx, "ProcessCompletedWorkout", userID,
		s.checkers.Workouts,
		s.checkers.Streak,
		s.checkers.Variety,
	)
}

func (s *Service) CheckWorkoutAchievements(ctx context.Context, userID uint) ([]string, error) {
	return s.run(ctx, "CheckWorkoutAchievements", userID, s.checkers.Workouts)
}

func (s *Service) CheckStreakAchievements(ctx context.Context, userID uint) ([]string, error) {
	return s.run(ctx, "CheckStreakAchievements", userID, s.checkers.Streak)
}

func (s *Service) CheckPersonalRecordAchievements(ctx context.Context, userID uint, fresh *RecordContext) ([]string, error) {
	return s.run(ctx, "CheckPersonalRecordAchievements", userID, func(ctx context.Context, userID uint) []string {
		return s.checkers.Records(ctx, userID, fresh)
	})
}

func (s *Service) CheckXPAchievements(ctx context.Context, userID uint, knownXP *int64) ([]string, error) {
	return s.run(ctx, "CheckXPAchievements", userID, func(ctx context.Context, userID uint) []string {
		return s.checkers.XP(ctx, userID, knownXP)
	})
}

func (s *Service) CheckActivityVarietyAchievements(ctx context.Context, userID uint) ([]string, error) {
	return s.run(ctx, "CheckActivityVarietyAchievements", userID, s.checkers.Variety)
}

func (s *Service) CheckGuildAchievements(ctx context.Context, userID uint) ([]string, error) {
	return s.run(ctx, "CheckGuildAchievements", userID, s.checkers.Guild)
}

func (s *Service) CheckManualWorkoutAchievements(ctx context.Context, userID uint) ([]string, error) {
	return s.run(ctx, "CheckManualWorkoutAchievements", userID, s.checkers.Manual)
}

// CheckAll evaluates every category. XP runs last so rewards granted by the
// earlier categories count toward it.
func (s *Service) CheckAll(ctx context.Context, userID uint) ([]string, error) {
	awarded, err := s.run(ctx, "CheckAll", userID,
		s.checkers.Workouts,
		s.checkers.Streak,
		s.checkers.Variety,
		func(ctx context.Context, userID uint) []string { return s.checkers.Records(ctx, userID, nil) },
		s.checkers.Guild,
		s.checkers.Manual,
	)
	if err != nil {
		return nil, err
	}
	if len(awarded) > 0 && s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
	more, err := s.CheckXPAchievements(ctx, userID, nil)
	if err != nil {
		return awarded, err
	}
	return append(awarded, more...), nil
}

type checkFunc func(ctx context.Context, userID uint) []string

func (s *Service) run(ctx context.Context, op string, userID uint, checks ...checkFunc) ([]string, error) {
	ctx, span := tracer.Start(ctx, "checker."+op, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.Int("user.id", int(userID)))

	if userID == 0 {
		return nil, apperr.New(apperr.ErrValidation, "user id is required")
	}

	var candidates []string
	for _, check := range checks {
		candidates = append(candidates, check(ctx, userID)...)
	}
	candidates = append(candidates, s.reconcile(ctx, userID)...)
	candidates = dedupe(candidates)
	span.SetAttributes(attribute.Int("achievement.candidates", len(candidates)))
	if len(candidates) == 0 {
		return nil, nil
	}

	res := s.awarder.AwardBatch(ctx, userID, candidates)
	for _, f := range res.Failed {
		s.log.Error("award failed", "op", op, "user_id", userID, "achievement", f.AchievementID, "reason", f.Reason)
	}
	if len(res.Successful) > 0 {
		s.log.Info("achievements awarded", "op", op, "user_id", userID, "achievements", res.Successful)
	}
	span.SetAttributes(attribute.Int("achievement.awarded", len(res.Successful)))
	return res.Successful, nil
}

// reconcile turns complete-but-locked progress rows into candidates.
func (s *Service) reconcile(ctx context.Context, userID uint) []string {
	if s.pending == nil {
		return nil
	}
	ids, err := s.pending.CompletedWithoutUnlock(ctx, userID)
	if err != nil {
		s.log.Warn("pending progress unavailable", "user_id", userID, "error", err)
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
