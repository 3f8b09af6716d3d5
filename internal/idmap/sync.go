package idmap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gdg-garage/garage-fit-api/internal/catalog"
	"github.com/gdg-garage/garage-fit-api/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormSource struct {
	db *gorm.DB
}

func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

func (s *GormSource) LoadAll(ctx context.Context) ([]Entry, error) {
	var rows []models.Achievement
	if err := s.db.WithContext(ctx).Select("id", "code").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = Entry{Code: r.Code, ID: r.ID}
	}
	return out, nil
}

// Sync upserts one achievements row per definition. Existing rows keep their
// storage id.
func Sync(ctx context.Context, db *gorm.DB, defs []catalog.Definition) error {
	if len(defs) == 0 {
		return nil
	}
	rows := make([]models.Achievement, 0, len(defs))
	for _, d := range defs {
		var meta datatypes.JSON
		if len(d.Metadata) > 0 {
			raw, err := json.Marshal(d.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata of %s: %w", d.ID, err)
			}
			meta = datatypes.JSON(raw)
		}
		rows = append(rows, models.Achievement{
			Code:             d.ID,
			Name:             d.Name,
			Category:         string(d.Category),
			Rank:             string(d.Rank),
			Points:           d.Points,
			XPReward:         d.XPReward,
			RequirementType:  d.RequirementType,
			RequirementValue: d.RequirementValue,
			Metadata:         meta,
		})
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name",
				"category",
				"rank",
				"points",
				"xp_reward",
				"requirement_type",
				"requirement_value",
				"metadata",
				"updated_at",
			}),
		}).
		Create(&rows).Error
}
