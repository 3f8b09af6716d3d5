package award

import (
	"context"

	"github.com/google/uuid"
)

type Failure struct {
	AchievementID string `json:"achievement_id"`
	Reason        string `json:"reason"`
}

type BatchResult struct {
	Successful      []string  `json:"successful"`
	AlreadyUnlocked []string  `json:"already_unlocked"`
	Failed          []Failure `json:"failed"`
}

// AwardBatch awards every id independently; one failing id never blocks
// the others. Duplicate ids are awarded once.
func (e *Engine) AwardBatch(ctx context.Context, userID uint, ids []string) BatchResult {
	ctx, span := tracer.Start(ctx, "award.AwardBatch")
	defer span.End()

	var out BatchResult
	if userID == 0 {
		for _, raw := range ids {
			out.Failed = append(out.Failed, Failure{AchievementID: raw, Reason: "user id is required"})
		}
		return out
	}
	type pending struct {
		code string
		id   uuid.UUID
	}
	var todo []pending
	seen := make(map[uuid.UUID]bool, len(ids))

	for _, raw := range ids {
		code, storageID, err := e.ids.Normalize(ctx, raw)
		if err != nil {
			out.Failed = append(out.Failed, Failure{AchievementID: raw, Reason: err.Error()})
			continue
		}
		if seen[storageID] {
			continue
		}
		seen[storageID] = true
		todo = append(todo, pending{code: code, id: storageID})
	}
	if len(todo) == 0 {
		return out
	}

	storageIDs := make([]uuid.UUID, len(todo))
	for i, p := range todo {
		storageIDs[i] = p.id
	}
	existing, err := e.store.ExistingUnlocks(ctx, userID, storageIDs)
	if err != nil {
		// fall through to per-id checks
		e.log.Warn("batch pre-check failed", "user_id", userID, "error", err)
		existing = nil
	}

	for _, p := range todo {
		if existing[p.id] {
			out.AlreadyUnlocked = append(out.AlreadyUnlocked, p.code)
			continue
		}
		res, err := e.award(ctx, userID, p.code, p.id)
		switch {
		case err != nil:
			out.Failed = append(out.Failed, Failure{AchievementID: p.code, Reason: err.Error()})
		case res.NewlyAwarded:
			out.Successful = append(out.Successful, p.code)
		default:
			out.AlreadyUnlocked = append(out.AlreadyUnlocked, p.code)
		}
	}
	return out
}
