package guilds

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/gdg-garage/garage-fit-api/internal/apperr"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/gdg-garage/garage-fit-api/internal/testutil"
)

type countingChecks struct {
	calls  int
	counts func() []string
}

func (c *countingChecks) CheckGuildAchievements(context.Context, uint) ([]string, error) {
	c.calls++
	if c.counts == nil {
		return nil, nil
	}
	return c.counts(), nil
}

func TestService(t *testing.T) {
	db := testutil.DB(t)
	user := testutil.SeedUser(t, db, "guild-user")
	checks := &countingChecks{counts: func() []string { return []string{"first-guild"} }}
	svc := NewService(db, checks, nil, logger.Nop())
	ctx := context.Background()

	g, err := svc.Create(ctx, "Iron Garage")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	t.Run("DuplicateName", func(t *testing.T) {
		if _, err := svc.Create(ctx, "Iron Garage"); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("Join", func(t *testing.T) {
		got, err := svc.Join(ctx, user.ID, g.ID)
		if err != nil {
			t.Fatalf("Join returned error: %v", err)
		}
		if !slices.Equal(got, []string{"first-guild"}) {
			t.Errorf("expected checker result passed through, got %v", got)
		}
		if _, err := svc.Join(ctx, user.ID, g.ID); err != nil {
			t.Fatalf("rejoin returned error: %v", err)
		}
		var n int64
		db.Table("guild_members").Where("user_id = ?", user.ID).Count(&n)
		if n != 1 {
			t.Errorf("expected one membership, got %d", n)
		}
	})

	t.Run("UnknownGuild", func(t *testing.T) {
		if _, err := svc.Join(ctx, user.ID, 999); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("JoinQuest", func(t *testing.T) {
		before := checks.calls
		if _, err := svc.JoinQuest(ctx, user.ID, g.ID, "october-push"); err != nil {
			t.Fatalf("JoinQuest returned error: %v", err)
		}
		if checks.calls != before+1 {
			t.Error("expected guild check after joining a quest")
		}
	})

	t.Run("QuestRequiresMembership", func(t *testing.T) {
		other := testutil.SeedUser(t, db, "outsider")
		if _, err := svc.JoinQuest(ctx, other.ID, g.ID, "october-push"); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}
