package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/gdg-garage/garage-fit-api/internal/auth"
	"github.com/gdg-garage/garage-fit-api/internal/notifier"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Auth         *auth.AuthHandler
	Achievements *AchievementHandler
	Workouts     *WorkoutHandler
	Guilds       *GuildHandler
	Admin        *AdminHandler
	APIKeys      *APIKeyHandler
	Hub          *notifier.Hub
}

var (
	userSecurity  = []map[string][]string{{"cookieAuth": {}}, {"bearerAuth": {}}, {"apiKeyAuth": {}}}
	adminSecurity = []map[string][]string{{"apiKeyAuth": {}}}
)

func secured(security []map[string][]string) func(o *huma.Operation) {
	return func(o *huma.Operation) {
		o.Security = security
	}
}

func RegisterRoutes(r *chi.Mux, h Handlers) huma.API {
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	config := huma.DefaultConfig("Garage Fit API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
		"apiKeyAuth": {
			Type: "apiKey",
			In:   "header",
			Name: "X-API-KEY",
		},
	}
	api := humachi.New(r, config)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	huma.Get(api, "/auth/discord/login", h.Auth.HandleLogin)
	huma.Get(api, "/auth/discord/callback", h.Auth.HandleCallback)
	huma.Get(api, "/achievements", h.Achievements.HandleList)
	huma.Get(api, "/guilds", h.Guilds.HandleList)

	// Popup stream
	r.With(h.Auth.AuthMiddleware).Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFrom(r.Context())
		h.Hub.Serve(w, r, id.UserID)
	})

	// User routes
	huma.Get(api, "/me", h.Auth.HandleMe, secured(userSecurity))
	huma.Put(api, "/me/class", h.Workouts.HandleSetClass, secured(userSecurity))
	huma.Get(api, "/me/achievements", h.Achievements.HandleMine, secured(userSecurity))
	huma.Post(api, "/me/achievements/check", h.Achievements.HandleCheck, secured(userSecurity))
	huma.Post(api, "/workouts", h.Workouts.HandleComplete, secured(userSecurity))
	huma.Post(api, "/records", h.Workouts.HandleRecord, secured(userSecurity))
	huma.Post(api, "/guilds", h.Guilds.HandleCreate, secured(userSecurity))
	huma.Post(api, "/guilds/{id}/join", h.Guilds.HandleJoin, secured(userSecurity))
	huma.Post(api, "/guilds/{id}/quests/{quest}/join", h.Guilds.HandleJoinQuest, secured(userSecurity))
	huma.Get(api, "/api-keys", h.APIKeys.HandleList, secured(userSecurity))
	huma.Post(api, "/api-keys", h.APIKeys.HandleCreate, secured(userSecurity))
	huma.Delete(api, "/api-keys/{id}", h.APIKeys.HandleDelete, secured(userSecurity))

	// Admin routes
	huma.Post(api, "/admin/achievements/award", h.Admin.HandleAward, secured(adminSecurity))
	huma.Post(api, "/admin/harness/simulate", h.Admin.HandleSimulate, secured(adminSecurity))
	huma.Post(api, "/admin/harness/verify", h.Admin.HandleVerify, secured(adminSecurity))
	huma.Post(api, "/admin/harness/cleanup", h.Admin.HandleCleanup, secured(adminSecurity))
	huma.Post(api, "/admin/idmap/clear", h.Admin.HandleClearIDMap, secured(adminSecurity))

	return api
}
