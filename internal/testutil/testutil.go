// Package testutil opens throwaway databases and seeds fixtures for tests.
package testutil

import (
	"testing"
	"time"

	"github.com/gdg-garage/garage-fit-api/internal/database"
	"github.com/gdg-garage/garage-fit-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB returns a migrated in-memory sqlite database private to the test.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql db: %v", err)
	}
	// every connection to :memory: is a new database
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

func SeedUser(tb testing.TB, db *gorm.DB, discordID string) *models.User {
	tb.Helper()
	u := &models.User{DiscordID: discordID, Username: discordID, Level: 1, Class: "none"}
	if err := db.Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedWorkouts inserts one workout per entry in at.
func SeedWorkouts(tb testing.TB, db *gorm.DB, userID uint, exercise string, manual bool, at ...time.Time) {
	tb.Helper()
	for _, t := range at {
		w := models.Workout{UserID: userID, ExerciseType: exercise, Manual: manual, CompletedAt: t.UTC()}
		if err := db.Create(&w).Error; err != nil {
			tb.Fatalf("seed workout: %v", err)
		}
	}
}

// Days returns n timestamps at noon UTC on consecutive days ending at end.
func Days(end time.Time, n int) []time.Time {
	end = end.UTC()
	base := time.Date(end.Year(), end.Month(), end.Day(), 12, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = base.AddDate(0, 0, -i)
	}
	return out
}
