// Package store is the persistence collaborator for unlocks, progress rows
// and profile counters.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
	"github.com/gdg-garage/garage-fit-api/internal/models"
	"github.com/gdg-garage/garage-fit-api/internal/stats"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Progress struct {
	UserID        uint
	AchievementID uuid.UUID
	Current       float64
	Target        float64
	IsComplete    bool
}

// Tx is the set of writes allowed inside one award transaction.
type Tx interface {
	// InsertUnlock reports false when the unlock already exists.
	InsertUnlock(userID uint, achievementID uuid.UUID, at time.Time) (bool, error)
	DeleteUnlock(userID uint, achievementID uuid.UUID) (bool, error)
	IncrementCounter(userID uint, counter string, amount int64) error
	RecalculateLevel(userID uint) (int, error)
	UpsertProgress(p Progress) error
	DeleteProgress(userID uint, achievementID uuid.UUID) error
}

type Store interface {
	Exists(ctx context.Context, userID uint, achievementID uuid.UUID) (bool, error)
	ExistingUnlocks(ctx context.Context, userID uint, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	Unlocks(ctx context.Context, userID uint) ([]models.UserAchievement, error)
	Progress(ctx context.Context, userID uint) ([]models.AchievementProgress, error)
	UpsertProgress(ctx context.Context, p Progress) error
	// CompletedWithoutUnlock lists progress rows marked complete that have
	// no matching unlock.
	CompletedWithoutUnlock(ctx context.Context, userID uint) ([]uuid.UUID, error)
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Exists(ctx context.Context, userID uint, achievementID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Count(&n).Error
	if err != nil {
		return false, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	return n > 0, nil
}

func (s *GormStore) ExistingUnlocks(ctx context.Context, userID uint, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.UserAchievement{}).
		Where("user_id = ? AND achievement_id IN ?", userID, ids).
		Pluck("achievement_id", &found).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func (s *GormStore) Unlocks(ctx context.Context, userID uint) ([]models.UserAchievement, error) {
	var rows []models.UserAchievement
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("unlocked_at DESC").Find(&rows).Error; err != nil {
		return nil, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	return rows, nil
}

func (s *GormStore) Progress(ctx context.Context, userID uint) ([]models.AchievementProgress, error) {
	var rows []models.AchievementProgress
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	return rows, nil
}

func (s *GormStore) UpsertProgress(ctx context.Context, p Progress) error {
	return upsertProgress(s.db.WithContext(ctx), p)
}

func (s *GormStore) CompletedWithoutUnlock(ctx context.Context, userID uint) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.AchievementProgress{}).
		Where("achievement_progress.user_id = ? AND achievement_progress.is_complete = ?", userID, true).
		Where("NOT EXISTS (SELECT 1 FROM user_achievements ua WHERE ua.user_id = achievement_progress.user_id AND ua.achievement_id = achievement_progress.achievement_id)").
		Pluck("achievement_progress.achievement_id", &ids).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	return ids, nil
}

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db})
	})
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) InsertUnlock(userID uint, achievementID uuid.UUID, at time.Time) (bool, error) {
	row := models.UserAchievement{UserID: userID, AchievementID: achievementID, UnlockedAt: at.UTC()}
	res := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (t *gormTx) DeleteUnlock(userID uint, achievementID uuid.UUID) (bool, error) {
	res := t.db.Where("user_id = ? AND achievement_id = ?", userID, achievementID).Delete(&models.UserAchievement{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (t *gormTx) IncrementCounter(userID uint, counter string, amount int64) error {
	if !models.IsCounter(counter) {
		return apperr.New(apperr.ErrValidation, "unknown counter %q", counter)
	}
	res := t.db.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn(counter, gorm.Expr(counter+" + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.ErrNotFound, "user %d not found", userID)
	}
	return nil
}

func (t *gormTx) RecalculateLevel(userID uint) (int, error) {
	return RecalculateLevel(t.db, userID)
}

// RecalculateLevel derives level from the stored xp. Call it inside the
// transaction that changed xp, after the change.
func RecalculateLevel(db *gorm.DB, userID uint) (int, error) {
	var user models.User
	if err := db.Select("id", "xp").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.New(apperr.ErrNotFound, "user %d not found", userID)
		}
		return 0, err
	}
	level := stats.LevelForXP(max(user.XP, 0))
	if err := db.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("level", level).Error; err != nil {
		return 0, err
	}
	return level, nil
}

func (t *gormTx) UpsertProgress(p Progress) error {
	return upsertProgress(t.db, p)
}

func (t *gormTx) DeleteProgress(userID uint, achievementID uuid.UUID) error {
	return t.db.Where("user_id = ? AND achievement_id = ?", userID, achievementID).Delete(&models.AchievementProgress{}).Error
}

// upsertProgress never clears a completed flag.
func upsertProgress(db *gorm.DB, p Progress) error {
	row := models.AchievementProgress{
		UserID:        p.UserID,
		AchievementID: p.AchievementID,
		Current:       p.Current,
		Target:        p.Target,
		IsComplete:    p.IsComplete,
	}
	set := clause.AssignmentColumns([]string{"current", "target", "updated_at"})
	set = append(set, clause.Assignment{
		Column: clause.Column{Name: "is_complete"},
		Value:  gorm.Expr("achievement_progress.is_complete OR excluded.is_complete"),
	})
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
		DoUpdates: set,
	}).Create(&row).Error
	if err != nil {
		return apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	return nil
}
