package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/garage-fit-api/internal/config"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/gdg-garage/garage-fit-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const (
	DiscordAuthorizeEndpoint = "https://discord.com/api/oauth2/authorize"
	DiscordTokenEndpoint     = "https://discord.com/api/oauth2/token"
	DiscordUserAPI           = "https://discord.com/api/users/@me"
)

const (
	CookieName    = "auth_token"
	TokenDuration = 24 * time.Hour
	stateDuration = 10 * time.Minute
)

// AuthInput carries every credential huma handlers accept.
type AuthInput struct {
	Cookie        string `header:"Cookie"`
	Authorization string `header:"Authorization"`
	APIKey        string `header:"X-API-KEY"`
}

// Identity is the authenticated caller.
type Identity struct {
	UserID uint
	Admin  bool
}

type AuthHandler struct {
	oauthConfig *oauth2.Config
	db          *gorm.DB
	cfg         *config.Config
	userAPI     string
	now         func() time.Time
	log         *logger.Logger
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  DiscordAuthorizeEndpoint,
				TokenURL: DiscordTokenEndpoint,
			},
		},
		db:      db,
		cfg:     cfg,
		userAPI: DiscordUserAPI,
		now:     time.Now,
		log:     log.With("service", "Auth"),
	}
}

type RedirectOutput struct {
	Status    int
	Location  string `header:"Location"`
	SetCookie string `header:"Set-Cookie"`
}

func (h *AuthHandler) HandleLogin(ctx context.Context, _ *struct{}) (*RedirectOutput, error) {
	state, err := h.sign(jwt.MapClaims{
		"nonce": uuid.NewString(),
		"exp":   h.now().Add(stateDuration).Unix(),
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to create login state")
	}
	return &RedirectOutput{
		Status:   http.StatusTemporaryRedirect,
		Location: h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline),
	}, nil
}

type CallbackInput struct {
	Code  string `query:"code"`
	State string `query:"state"`
}

type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

func (h *AuthHandler) HandleCallback(ctx context.Context, input *CallbackInput) (*RedirectOutput, error) {
	if input.Code == "" {
		return nil, huma.Error400BadRequest("Code not found")
	}
	if _, err := h.parse(input.State); err != nil {
		return nil, huma.Error400BadRequest("Invalid login state")
	}

	token, err := h.oauthConfig.Exchange(ctx, input.Code)
	if err != nil {
		h.log.Warn("discord token exchange failed", "error", err)
		return nil, huma.Error502BadGateway("Failed to exchange token")
	}
	du, err := h.fetchDiscordUser(ctx, h.oauthConfig.Client(ctx, token))
	if err != nil {
		h.log.Warn("discord user lookup failed", "error", err)
		return nil, huma.Error502BadGateway("Failed to get user info")
	}

	user, err := h.UpsertUser(ctx, du.ID, du.Username, du.Email, du.Avatar)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to save user")
	}
	jwtToken, err := h.GenerateToken(user.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to generate token")
	}
	h.log.Info("user logged in", "user_id", user.ID, "username", user.Username)

	return &RedirectOutput{
		Status:    http.StatusTemporaryRedirect,
		Location:  h.cfg.FrontendURL,
		SetCookie: h.cookie(jwtToken).String(),
	}, nil
}

func (h *AuthHandler) fetchDiscordUser(ctx context.Context, client *http.Client) (discordUser, error) {
	var du discordUser
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.userAPI, nil)
	if err != nil {
		return du, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return du, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return du, fmt.Errorf("discord returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&du); err != nil {
		return du, err
	}
	if du.ID == "" {
		return du, errors.New("discord user without id")
	}
	return du, nil
}

// UpsertUser creates the user for a Discord account or refreshes its
// profile fields.
func (h *AuthHandler) UpsertUser(ctx context.Context, discordID, username, email, avatar string) (models.User, error) {
	var user models.User
	if err := h.db.WithContext(ctx).FirstOrInit(&user, models.User{DiscordID: discordID}).Error; err != nil {
		return user, err
	}
	user.Username = username
	user.Email = email
	user.Avatar = avatar
	if user.ID == 0 {
		user.Level = 1
		user.Class = "none"
	}
	if err := h.db.WithContext(ctx).Save(&user).Error; err != nil {
		return user, err
	}
	return user, nil
}

func (h *AuthHandler) GenerateToken(userID uint) (string, error) {
	return h.sign(jwt.MapClaims{
		"user_id": userID,
		"exp":     h.now().Add(TokenDuration).Unix(),
	})
}

// ParseToken returns the user id and expiry of a session token.
func (h *AuthHandler) ParseToken(tokenString string) (uint, time.Time, error) {
	claims, err := h.parse(tokenString)
	if err != nil {
		return 0, time.Time{}, err
	}
	userIDFloat, ok := claims["user_id"].(float64)
	if !ok || userIDFloat <= 0 {
		return 0, time.Time{}, errors.New("invalid token claims")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, time.Time{}, errors.New("token without expiry")
	}
	return uint(userIDFloat), exp.Time, nil
}

func (h *AuthHandler) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

func (h *AuthHandler) parse(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, errors.New("empty token")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(h.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (h *AuthHandler) cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  h.now().Add(TokenDuration),
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
}

// Authorize resolves the caller from the request context, an API key, a
// bearer token or the session cookie, in that order.
func (h *AuthHandler) Authorize(ctx context.Context, in AuthInput) (Identity, error) {
	if id, ok := IdentityFrom(ctx); ok {
		return id, nil
	}
	if in.APIKey != "" {
		id, err := h.authorizeAPIKey(ctx, in.APIKey)
		if err != nil {
			return Identity{}, huma.Error401Unauthorized(err.Error())
		}
		return id, nil
	}
	token := bearer(in.Authorization)
	if token == "" {
		token = cookieValue(in.Cookie)
	}
	if token == "" {
		return Identity{}, huma.Error401Unauthorized("Unauthorized: No token found")
	}
	userID, _, err := h.ParseToken(token)
	if err != nil {
		return Identity{}, huma.Error401Unauthorized("Unauthorized: Invalid token")
	}
	return Identity{UserID: userID}, nil
}

// RequireAdmin is Authorize restricted to admin API keys.
func (h *AuthHandler) RequireAdmin(ctx context.Context, in AuthInput) (Identity, error) {
	id, err := h.Authorize(ctx, in)
	if err != nil {
		return id, err
	}
	if !id.Admin {
		return id, huma.Error403Forbidden("Access denied: admin API key required")
	}
	return id, nil
}

func (h *AuthHandler) authorizeAPIKey(ctx context.Context, key string) (Identity, error) {
	var keyModel models.APIKey
	if err := h.db.WithContext(ctx).Where("key = ?", key).First(&keyModel).Error; err != nil {
		return Identity{}, errors.New("Unauthorized: Invalid API Key")
	}
	now := h.now()
	if keyModel.ExpiresAt != nil && now.After(*keyModel.ExpiresAt) {
		return Identity{}, errors.New("Unauthorized: API Key expired")
	}
	h.db.WithContext(ctx).Model(&keyModel).Update("last_used_at", now)
	return Identity{UserID: keyModel.UserID, Admin: keyModel.Admin}, nil
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func cookieValue(raw string) string {
	if raw == "" {
		return ""
	}
	r := http.Request{Header: http.Header{"Cookie": {raw}}}
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

type MeInput struct {
	AuthInput
}

type Profile struct {
	ID                uint   `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	Avatar            string `json:"avatar"`
	Class             string `json:"class"`
	XP                int64  `json:"xp"`
	Level             int    `json:"level"`
	AchievementCount  int    `json:"achievement_count"`
	AchievementPoints int    `json:"achievement_points"`
}

type MeOutput struct {
	Body Profile
}

func (h *AuthHandler) HandleMe(ctx context.Context, input *MeInput) (*MeOutput, error) {
	id, err := h.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, id.UserID).Error; err != nil {
		return nil, huma.Error404NotFound("User not found")
	}
	return &MeOutput{Body: ProfileOf(user)}, nil
}

func ProfileOf(u models.User) Profile {
	return Profile{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Avatar:            u.Avatar,
		Class:             u.Class,
		XP:                u.XP,
		Level:             u.Level,
		AchievementCount:  u.AchievementCount,
		AchievementPoints: u.AchievementPoints,
	}
}
