// Package award turns satisfied requirements into unlocks. Each unlock and
// its rewards commit in one transaction, at most once per user and
// achievement.
package award

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gdg-garage/garage-fit-api/internal/apperr"
	"github.com/gdg-garage/garage-fit-api/internal/catalog"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/gdg-garage/garage-fit-api/internal/models"
	"github.com/gdg-garage/garage-fit-api/internal/notifier"
	"github.com/gdg-garage/garage-fit-api/internal/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/gdg-garage/garage-fit-api/internal/award")

// Resolver normalises either id form into both.
type Resolver interface {
	Normalize(ctx context.Context, raw string) (string, uuid.UUID, error)
}

type Options struct {
	MaxAttempts int
	Backoff     time.Duration
}

type Engine struct {
	store   store.Store
	ids     Resolver
	catalog *catalog.Catalog
	events  notifier.Publisher
	opts    Options
	now     func() time.Time
	log     *logger.Logger
}

func NewEngine(st store.Store, ids Resolver, cat *catalog.Catalog, events notifier.Publisher, opts Options, log *logger.Logger) *Engine {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 50 * time.Millisecond
	}
	return &Engine{
		store:   st,
		ids:     ids,
		catalog: cat,
		events:  events,
		opts:    opts,
		now:     time.Now,
		log:     log.With("service", "AwardEngine"),
	}
}

type Result struct {
	AchievementID string `json:"achievement_id"`
	NewlyAwarded  bool   `json:"newly_awarded"`
}

// AwardAchievement unlocks id for userID unless it is already unlocked.
// id may be a catalog id or a storage id.
func (e *Engine) AwardAchievement(ctx context.Context, userID uint, id string) (Result, error) {
	ctx, span := tracer.Start(ctx, "award.AwardAchievement")
	defer span.End()
	span.SetAttributes(attribute.String("achievement.raw_id", id))

	if userID == 0 {
		return Result{}, apperr.New(apperr.ErrValidation, "user id is required")
	}
	code, storageID, err := e.ids.Normalize(ctx, id)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	res, err := e.award(ctx, userID, code, storageID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Bool("achievement.newly_awarded", res.NewlyAwarded))
	return res, err
}

func (e *Engine) award(ctx context.Context, userID uint, code string, storageID uuid.UUID) (Result, error) {
	res := Result{AchievementID: code}

	exists, err := e.store.Exists(ctx, userID, storageID)
	if err != nil {
		return res, err
	}
	if exists {
		return res, nil
	}

	def, ok := e.catalog.ByID(code)
	if !ok {
		return res, apperr.New(apperr.ErrNotFound, "achievement %q not in catalog", code)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.Backoff
	b.MaxInterval = 20 * e.opts.Backoff

	var unlockedAt time.Time
	inserted, err := backoff.Retry(ctx, func() (bool, error) {
		unlockedAt = e.now().UTC()
		ok, err := e.commit(ctx, userID, storageID, def, unlockedAt)
		if err != nil && !apperr.Retryable(err) {
			return false, backoff.Permanent(err)
		}
		if err != nil {
			e.log.Warn("award commit failed, retrying", "achievement", code, "user_id", userID, "error", err)
		}
		return ok, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(e.opts.MaxAttempts)))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		if apperr.Retryable(err) && !errors.Is(err, apperr.ErrTransaction) {
			err = apperr.Wrap(apperr.ErrTransaction, err)
		}
		return res, err
	}
	if !inserted {
		return res, nil
	}

	res.NewlyAwarded = true
	e.log.Info("achievement unlocked", "achievement", code, "user_id", userID, "points", def.Points, "xp", def.XPReward)
	if e.events != nil {
		e.events.Publish(notifier.Event{
			ID:          def.ID,
			Title:       def.Name,
			Description: def.Description,
			Rank:        string(def.Rank),
			Points:      def.Points,
			XPReward:    def.XPReward,
			UserID:      userID,
			UnlockedAt:  unlockedAt,
		})
	}
	return res, nil
}

// commit applies the unlock and its rewards. A conflicting unlock rolls
// nothing back because nothing was written yet.
func (e *Engine) commit(ctx context.Context, userID uint, storageID uuid.UUID, def catalog.Definition, at time.Time) (bool, error) {
	var inserted bool
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		ok, err := tx.InsertUnlock(userID, storageID, at)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := tx.IncrementCounter(userID, models.CounterAchievementCount, 1); err != nil {
			return err
		}
		if err := tx.IncrementCounter(userID, models.CounterAchievementPoints, int64(def.Points)); err != nil {
			return err
		}
		if err := tx.IncrementCounter(userID, models.CounterXP, int64(def.XPReward)); err != nil {
			return err
		}
		if _, err := tx.RecalculateLevel(userID); err != nil {
			return err
		}
		if err := tx.UpsertProgress(store.Progress{
			UserID:        userID,
			AchievementID: storageID,
			Current:       def.RequirementValue,
			Target:        def.RequirementValue,
			IsComplete:    true,
		}); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Revoke removes an unlock and reverses its rewards. Only the test harness
// calls this.
func (e *Engine) Revoke(ctx context.Context, userID uint, id string) (bool, error) {
	code, storageID, err := e.ids.Normalize(ctx, id)
	if err != nil {
		return false, err
	}
	def, ok := e.catalog.ByID(code)
	if !ok {
		return false, apperr.New(apperr.ErrNotFound, "achievement %q not in catalog", code)
	}

	var removed bool
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		ok, err := tx.DeleteUnlock(userID, storageID)
		if err != nil {
			return err
		}
		if err := tx.DeleteProgress(userID, storageID); err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := tx.IncrementCounter(userID, models.CounterAchievementCount, -1); err != nil {
			return err
		}
		if err := tx.IncrementCounter(userID, models.CounterAchievementPoints, -int64(def.Points)); err != nil {
			return err
		}
		if err := tx.IncrementCounter(userID, models.CounterXP, -int64(def.XPReward)); err != nil {
			return err
		}
		if _, err := tx.RecalculateLevel(userID); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, apperr.Wrap(apperr.ErrTransaction, err)
	}
	if removed {
		e.log.Info("achievement revoked", "achievement", code, "user_id", userID)
	}
	return removed, nil
}
