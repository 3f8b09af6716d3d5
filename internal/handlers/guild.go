package handlers

import (
	"context"

	"github.com/gdg-garage/garage-fit-api/internal/auth"
	"github.com/gdg-garage/garage-fit-api/internal/guilds"
)

type GuildHandler struct {
	guilds      *guilds.Service
	authHandler *auth.AuthHandler
}

func NewGuildHandler(svc *guilds.Service, authHandler *auth.AuthHandler) *GuildHandler {
	return &GuildHandler{guilds: svc, authHandler: authHandler}
}

type CreateGuildInput struct {
	auth.AuthInput
	Body struct {
		Name string `json:"name" required:"true" minLength:"3"`
	}
}

type GuildResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type GuildOutput struct {
	Body GuildResponse
}

func (h *GuildHandler) HandleCreate(ctx context.Context, input *CreateGuildInput) (*GuildOutput, error) {
	if _, err := h.authHandler.Authorize(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	g, err := h.guilds.Create(ctx, input.Body.Name)
	if err != nil {
		return nil, httpError(err)
	}
	return &GuildOutput{Body: GuildResponse{ID: g.ID, Name: g.Name}}, nil
}

type ListGuildsOutput struct {
	Body []GuildResponse
}

func (h *GuildHandler) HandleList(ctx context.Context, _ *struct{}) (*ListGuildsOutput, error) {
	list, err := h.guilds.List(ctx)
	if err != nil {
		return nil, httpError(err)
	}
	out := []GuildResponse{}
	for _, g := range list {
		if g.Synthetic {
			continue
		}
		out = append(out, GuildResponse{ID: g.ID, Name: g.Name})
	}
	return &ListGuildsOutput{Body: out}, nil
}

type JoinGuildInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

func (h *GuildHandler) HandleJoin(ctx context.Context, input *JoinGuildInput) (*AwardedOutput, error) {
	id, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	ids, err := h.guilds.Join(ctx, id.UserID, input.ID)
	if err != nil {
		return nil, httpError(err)
	}
	return awarded(ids), nil
}

type JoinQuestInput struct {
	auth.AuthInput
	ID    uint   `path:"id"`
	Quest string `path:"quest"`
}

func (h *GuildHandler) HandleJoinQuest(ctx context.Context, input *JoinQuestInput) (*AwardedOutput, error) {
	id, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	ids, err := h.guilds.JoinQuest(ctx, id.UserID, input.ID, input.Quest)
	if err != nil {
		return nil, httpError(err)
	}
	return awarded(ids), nil
}
