package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/gdg-garage/garage-fit-api/internal/auth"
	"github.com/gdg-garage/garage-fit-api/internal/catalog"
	"github.com/gdg-garage/garage-fit-api/internal/checker"
	"github.com/gdg-garage/garage-fit-api/internal/store"
)

type AchievementHandler struct {
	catalog     *catalog.Catalog
	store       store.Store
	ids         checker.IDResolver
	checks      *checker.Service
	authHandler *auth.AuthHandler
}

func NewAchievementHandler(cat *catalog.Catalog, st store.Store, ids checker.IDResolver, checks *checker.Service, authHandler *auth.AuthHandler) *AchievementHandler {
	return &AchievementHandler{catalog: cat, store: st, ids: ids, checks: checks, authHandler: authHandler}
}

type ListAchievementsInput struct {
	Category string `query:"category" doc:"Only achievements of this category"`
	Rank     string `query:"rank" doc:"Only achievements of this rank"`
}

type ListAchievementsOutput struct {
	Body []catalog.Definition
}

func (h *AchievementHandler) HandleList(ctx context.Context, input *ListAchievementsInput) (*ListAchievementsOutput, error) {
	defs := h.catalog.All()
	if input.Category != "" {
		defs = h.catalog.ByCategory(catalog.Category(input.Category))
	}
	out := defs[:0:0]
	for _, d := range defs {
		if input.Rank != "" && string(d.Rank) != input.Rank {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequirementType != out[j].RequirementType {
			return out[i].RequirementType < out[j].RequirementType
		}
		return out[i].RequirementValue < out[j].RequirementValue
	})
	return &ListAchievementsOutput{Body: out}, nil
}

type UnlockResponse struct {
	AchievementID string    `json:"achievement_id"`
	Name          string    `json:"name"`
	Rank          string    `json:"rank"`
	Points        int       `json:"points"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

type ProgressResponse struct {
	AchievementID string  `json:"achievement_id"`
	Current       float64 `json:"current"`
	Target        float64 `json:"target"`
	IsComplete    bool    `json:"is_complete"`
}

type MyAchievementsInput struct {
	auth.AuthInput
}

type MyAchievementsOutput struct {
	Body struct {
		Unlocked []UnlockResponse   `json:"unlocked"`
		Progress []ProgressResponse `json:"progress"`
	}
}

func (h *AchievementHandler) HandleMine(ctx context.Context, input *MyAchievementsInput) (*MyAchievementsOutput, error) {
	id, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}

	unlocks, err := h.store.Unlocks(ctx, id.UserID)
	if err != nil {
		return nil, httpError(err)
	}
	progress, err := h.store.Progress(ctx, id.UserID)
	if err != nil {
		return nil, httpError(err)
	}

	res := &MyAchievementsOutput{}
	res.Body.Unlocked = []UnlockResponse{}
	res.Body.Progress = []ProgressResponse{}
	for _, u := range unlocks {
		code, err := h.ids.ToStringID(ctx, u.AchievementID)
		if err != nil {
			continue
		}
		def, _ := h.catalog.ByID(code)
		res.Body.Unlocked = append(res.Body.Unlocked, UnlockResponse{
			AchievementID: code,
			Name:          def.Name,
			Rank:          string(def.Rank),
			Points:        def.Points,
			UnlockedAt:    u.UnlockedAt,
		})
	}
	for _, p := range progress {
		code, err := h.ids.ToStringID(ctx, p.AchievementID)
		if err != nil {
			continue
		}
		res.Body.Progress = append(res.Body.Progress, ProgressResponse{
			AchievementID: code,
			Current:       p.Current,
			Target:        p.Target,
			IsComplete:    p.IsComplete,
		})
	}
	return res, nil
}

type CheckAchievementsInput struct {
	auth.AuthInput
}

type AwardedOutput struct {
	Body struct {
		Awarded []string `json:"awarded"`
	}
}

func awarded(ids []string) *AwardedOutput {
	res := &AwardedOutput{}
	res.Body.Awarded = ids
	if res.Body.Awarded == nil {
		res.Body.Awarded = []string{}
	}
	return res
}

func (h *AchievementHandler) HandleCheck(ctx context.Context, input *CheckAchievementsInput) (*AwardedOutput, error) {
	id, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	ids, err := h.checks.CheckAll(ctx, id.UserID)
	if err != nil {
		return nil, httpError(err)
	}
	return awarded(ids), nil
}
