// Package stats answers the read-only questions the achievement checkers ask
// about a user: workout counts, streak, XP, records, variety and guilds.
package stats

import (
	"context"
	"time"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
	"github.com/gdg-garage/garage-fit-api/internal/models"
	"gorm.io/gorm"
)

type WorkoutCounts struct {
	Total   int64 `json:"total"`
	Weekly  int64 `json:"weekly"`
	Monthly int64 `json:"monthly"`
	Manual  int64 `json:"manual"`
}

type Progression struct {
	XP    int64 `json:"xp"`
	Level int   `json:"level"`
}

// Provider is the statistics collaborator. Every failure is reported as
// apperr.ErrDataUnavailable.
type Provider interface {
	WorkoutCounts(ctx context.Context, userID uint) (WorkoutCounts, error)
	CurrentStreak(ctx context.Context, userID uint) (int, error)
	Progression(ctx context.Context, userID uint) (Progression, error)
	PersonalRecordCount(ctx context.Context, userID uint) (int64, error)
	DistinctActivityTypes(ctx context.Context, userID uint) (int64, error)
	GuildMemberships(ctx context.Context, userID uint) (int64, error)
	GuildQuestParticipations(ctx context.Context, userID uint) (int64, error)
}

// streakWindow bounds how far back the streak query looks, so CurrentStreak
// never reports more than 400 days. Keep it above the largest streak_days
// threshold in the catalog.
const streakWindow = 400 * 24 * time.Hour

type GormProvider struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormProvider(db *gorm.DB) *GormProvider {
	return &GormProvider{db: db, now: time.Now}
}

// WithClock replaces the time source, used by tests and the harness.
func (p *GormProvider) WithClock(now func() time.Time) *GormProvider {
	p.now = now
	return p
}

func (p *GormProvider) WorkoutCounts(ctx context.Context, userID uint) (WorkoutCounts, error) {
	now := p.now().UTC()
	var out WorkoutCounts
	q := func() *gorm.DB {
		return p.db.WithContext(ctx).Model(&models.Workout{}).Where("user_id = ?", userID)
	}
	if err := q().Count(&out.Total).Error; err != nil {
		return WorkoutCounts{}, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	if err := q().Where("completed_at >= ?", WeekStart(now)).Count(&out.Weekly).Error; err != nil {
		return WorkoutCounts{}, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	if err := q().Where("completed_at >= ?", MonthStart(now)).Count(&out.Monthly).Error; err != nil {
		return WorkoutCounts{}, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	if err := q().Where("manual = ?", true).Count(&out.Manual).Error; err != nil {
		return WorkoutCounts{}, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	return out, nil
}

func (p *GormProvider) CurrentStreak(ctx context.Context, userID uint) (int, error) {
	now := p.now().UTC()
	var times []time.Time
	err := p.db.WithContext(ctx).Model(&models.Workout{}).
		Where("user_id = ? AND completed_at >= ?", userID, now.Add(-streakWindow)).
		Order("completed_at DESC").
		Pluck("completed_at", &times).Error
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	return ComputeStreak(times, now), nil
}

func (p *GormProvider) Progression(ctx context.Context, userID uint) (Progression, error) {
	var user models.User
	if err := p.db.WithContext(ctx).Select("id", "xp", "level").First(&user, userID).Error; err != nil {
		return Progression{}, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	return Progression{XP: user.XP, Level: user.Level}, nil
}

func (p *GormProvider) PersonalRecordCount(ctx context.Context, userID uint) (int64, error) {
	return p.count(ctx, &models.PersonalRecord{}, "user_id = ?", userID)
}

func (p *GormProvider) DistinctActivityTypes(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&models.Workout{}).
		Where("user_id = ?", userID).
		Distinct("exercise_type").
		Count(&n).Error
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	return n, nil
}

func (p *GormProvider) GuildMemberships(ctx context.Context, userID uint) (int64, error) {
	return p.count(ctx, &models.GuildMember{}, "user_id = ?", userID)
}

func (p *GormProvider) GuildQuestParticipations(ctx context.Context, userID uint) (int64, error) {
	return p.count(ctx, &models.GuildQuestParticipation{}, "user_id = ?", userID)
}

func (p *GormProvider) count(ctx context.Context, model interface{}, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := p.db.WithContext(ctx).Model(model).Where(query, args...).Count(&n).Error; err != nil {
		return 0, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	return n, nil
}

// WeekStart returns the most recent Monday 00:00 UTC at or before t.
func WeekStart(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// MonthStart returns the first day of t's month, 00:00 UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
