package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/garage-fit-api/internal/auth"
	"github.com/gdg-garage/garage-fit-api/internal/models"
	"github.com/gdg-garage/garage-fit-api/internal/workouts"
	"gorm.io/gorm"
)

type WorkoutHandler struct {
	db          *gorm.DB
	workouts    *workouts.Service
	authHandler *auth.AuthHandler
}

func NewWorkoutHandler(db *gorm.DB, svc *workouts.Service, authHandler *auth.AuthHandler) *WorkoutHandler {
	return &WorkoutHandler{db: db, workouts: svc, authHandler: authHandler}
}

type CompleteWorkoutInput struct {
	auth.AuthInput
	Body workouts.Input
}

type WorkoutResponse struct {
	ID              uint      `json:"id"`
	ExerciseType    string    `json:"exercise_type"`
	DurationMinutes int       `json:"duration_minutes"`
	Manual          bool      `json:"manual"`
	XPEarned        int       `json:"xp_earned"`
	CompletedAt     time.Time `json:"completed_at"`
}

type CompleteWorkoutOutput struct {
	Body struct {
		Workout      WorkoutResponse `json:"workout"`
		Achievements []string        `json:"achievements"`
	}
}

func (h *WorkoutHandler) HandleComplete(ctx context.Context, input *CompleteWorkoutInput) (*CompleteWorkoutOutput, error) {
	id, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	res, err := h.workouts.Complete(ctx, id.UserID, input.Body)
	if err != nil {
		return nil, httpError(err)
	}
	out := &CompleteWorkoutOutput{}
	out.Body.Workout = WorkoutResponse{
		ID:              res.Workout.ID,
		ExerciseType:    res.Workout.ExerciseType,
		DurationMinutes: res.Workout.DurationMinutes,
		Manual:          res.Workout.Manual,
		XPEarned:        res.Workout.XPEarned,
		CompletedAt:     res.Workout.CompletedAt,
	}
	out.Body.Achievements = res.Achievements
	if out.Body.Achievements == nil {
		out.Body.Achievements = []string{}
	}
	return out, nil
}

type RecordInput struct {
	auth.AuthInput
	Body struct {
		Exercise string  `json:"exercise" required:"true" doc:"Exercise the record was set in"`
		Value    float64 `json:"value" required:"true" doc:"Weight, time or reps of the record"`
	}
}

type RecordResponse struct {
	ID       uint    `json:"id"`
	Exercise string  `json:"exercise"`
	Value    float64 `json:"value"`
}

type RecordOutput struct {
	Body struct {
		Record       RecordResponse `json:"record"`
		Achievements []string       `json:"achievements"`
	}
}

func (h *WorkoutHandler) HandleRecord(ctx context.Context, input *RecordInput) (*RecordOutput, error) {
	id, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	pr, ids, err := h.workouts.RecordPersonalRecord(ctx, id.UserID, input.Body.Exercise, input.Body.Value)
	if err != nil {
		return nil, httpError(err)
	}
	res := &RecordOutput{}
	res.Body.Record = RecordResponse{ID: pr.ID, Exercise: pr.Exercise, Value: pr.Value}
	res.Body.Achievements = ids
	if res.Body.Achievements == nil {
		res.Body.Achievements = []string{}
	}
	return res, nil
}

type SetClassInput struct {
	auth.AuthInput
	Body struct {
		Class string `json:"class" enum:"none,warrior,ranger,monk" doc:"Character class granting a passive XP bonus"`
	}
}

type SetClassOutput struct {
	Body auth.Profile
}

func (h *WorkoutHandler) HandleSetClass(ctx context.Context, input *SetClassInput) (*SetClassOutput, error) {
	id, err := h.authHandler.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	if !workouts.ValidClass(input.Body.Class) {
		return nil, huma.Error422UnprocessableEntity("Unknown class")
	}
	res := h.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id.UserID).Update("class", input.Body.Class)
	if res.Error != nil {
		return nil, huma.Error500InternalServerError("Failed to update class")
	}
	if res.RowsAffected == 0 {
		return nil, huma.Error404NotFound("User not found")
	}
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, id.UserID).Error; err != nil {
		return nil, huma.Error404NotFound("User not found")
	}
	return &SetClassOutput{Body: auth.ProfileOf(user)}, nil
}
