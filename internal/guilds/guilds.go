// Package guilds manages guild membership and quest participation.
package guilds

import (
	"context"
	"errors"
	"strings"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/gdg-garage/garage-fit-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Checks interface {
	CheckGuildAchievements(ctx context.Context, userID uint) ([]string, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, userID uint)
}

type Service struct {
	db     *gorm.DB
	checks Checks
	cache  Invalidator
	log    *logger.Logger
}

func NewService(db *gorm.DB, checks Checks, cache Invalidator, log *logger.Logger) *Service {
	return &Service{db: db, checks: checks, cache: cache, log: log.With("service", "GuildService")}
}

func (s *Service) Create(ctx context.Context, name string) (models.Guild, error) {
	name = strings.TrimSpace(name)
	if len(name) < 3 {
		return models.Guild{}, apperr.New(apperr.ErrValidation, "guild name must be at least 3 characters")
	}
	g := models.Guild{Name: name}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&g)
	if res.Error != nil {
		return models.Guild{}, apperr.Wrap(apperr.ErrTransaction, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.Guild{}, apperr.New(apperr.ErrValidation, "guild %q already exists", name)
	}
	return g, nil
}

func (s *Service) List(ctx context.Context) ([]models.Guild, error) {
	var out []models.Guild
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	return out, nil
}

// Join adds userID to the guild. Joining twice is a no-op. Returns newly
// awarded achievements.
func (s *Service) Join(ctx context.Context, userID, guildID uint) ([]string, error) {
	if err := s.requireGuild(ctx, guildID); err != nil {
		return nil, err
	}
	m := models.GuildMember{GuildID: guildID, UserID: userID}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return nil, apperr.Wrap(apperr.ErrTransaction, res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Info("guild joined", "user_id", userID, "guild_id", guildID)
	}
	return s.check(ctx, userID)
}

// JoinQuest records participation in a guild quest. Only members may join.
func (s *Service) JoinQuest(ctx context.Context, userID, guildID uint, quest string) ([]string, error) {
	quest = strings.TrimSpace(quest)
	if quest == "" {
		return nil, apperr.New(apperr.ErrValidation, "quest is required")
	}
	if err := s.requireGuild(ctx, guildID); err != nil {
		return nil, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.GuildMember{}).
		Where("guild_id = ? AND user_id = ?", guildID, userID).Count(&n).Error; err != nil {
		return nil, apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	if n == 0 {
		return nil, apperr.New(apperr.ErrValidation, "user %d is not a member of guild %d", userID, guildID)
	}

	p := models.GuildQuestParticipation{GuildID: guildID, UserID: userID, Quest: quest}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
		return nil, apperr.Wrap(apperr.ErrTransaction, err)
	}
	return s.check(ctx, userID)
}

func (s *Service) requireGuild(ctx context.Context, guildID uint) error {
	var g models.Guild
	if err := s.db.WithContext(ctx).Select("id").First(&g, guildID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.ErrNotFound, "guild %d not found", guildID)
		}
		return apperr.Wrap(apperr.ErrDataUnavailable, err)
	}
	return nil
}

func (s *Service) check(ctx context.Context, userID uint) ([]string, error) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
	return s.checks.CheckGuildAchievements(ctx, userID)
}
