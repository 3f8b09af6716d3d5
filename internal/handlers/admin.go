package handlers

import (
	"context"

	"github.com/gdg-garage/garage-fit-api/internal/auth"
	"github.com/gdg-garage/garage-fit-api/internal/award"
	"github.com/gdg-garage/garage-fit-api/internal/harness"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
)

// IDCache is the id mapping cache admins may flush after editing
// definitions.
type IDCache interface {
	Clear()
}

type AdminHandler struct {
	engine      *award.Engine
	harness     *harness.Harness
	ids         IDCache
	authHandler *auth.AuthHandler
	log         *logger.Logger
}

func NewAdminHandler(engine *award.Engine, h *harness.Harness, ids IDCache, authHandler *auth.AuthHandler, log *logger.Logger) *AdminHandler {
	return &AdminHandler{engine: engine, harness: h, ids: ids, authHandler: authHandler, log: log.With("service", "Admin")}
}

type AdminAwardInput struct {
	auth.AuthInput
	Body struct {
		UserID         uint     `json:"user_id" minimum:"1"`
		AchievementIDs []string `json:"achievement_ids" minItems:"1" doc:"Catalog ids or storage ids"`
	}
}

type AdminAwardOutput struct {
	Body award.BatchResult
}

func (h *AdminHandler) HandleAward(ctx context.Context, input *AdminAwardInput) (*AdminAwardOutput, error) {
	admin, err := h.authHandler.RequireAdmin(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	res := h.engine.AwardBatch(ctx, input.Body.UserID, input.Body.AchievementIDs)
	h.log.Info("manual award", "admin_id", admin.UserID, "user_id", input.Body.UserID, "successful", res.Successful, "failed", len(res.Failed))
	if res.Successful == nil {
		res.Successful = []string{}
	}
	if res.AlreadyUnlocked == nil {
		res.AlreadyUnlocked = []string{}
	}
	if res.Failed == nil {
		res.Failed = []award.Failure{}
	}
	return &AdminAwardOutput{Body: res}, nil
}

type SimulateInput struct {
	auth.AuthInput
	Body struct {
		UserID   uint             `json:"user_id" minimum:"1"`
		Scenario harness.Scenario `json:"scenario"`
	}
}

func (h *AdminHandler) HandleSimulate(ctx context.Context, input *SimulateInput) (*AwardedOutput, error) {
	if _, err := h.authHandler.RequireAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	ids, err := h.harness.Simulate(ctx, input.Body.UserID, input.Body.Scenario)
	if err != nil {
		return nil, httpError(err)
	}
	return awarded(ids), nil
}

type HarnessUserInput struct {
	auth.AuthInput
	Body struct {
		UserID uint `json:"user_id" minimum:"1"`
	}
}

type VerifyOutput struct {
	Body harness.Report
}

func (h *AdminHandler) HandleVerify(ctx context.Context, input *HarnessUserInput) (*VerifyOutput, error) {
	if _, err := h.authHandler.RequireAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	rep, err := h.harness.VerifyAll(ctx, input.Body.UserID)
	if err != nil {
		return nil, httpError(err)
	}
	return &VerifyOutput{Body: rep}, nil
}

func (h *AdminHandler) HandleCleanup(ctx context.Context, input *HarnessUserInput) (*struct{}, error) {
	if _, err := h.authHandler.RequireAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	if err := h.harness.Cleanup(ctx, input.Body.UserID); err != nil {
		return nil, httpError(err)
	}
	return nil, nil
}

type AdminInput struct {
	auth.AuthInput
}

func (h *AdminHandler) HandleClearIDMap(ctx context.Context, input *AdminInput) (*struct{}, error) {
	if _, err := h.authHandler.RequireAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	h.ids.Clear()
	return nil, nil
}
