package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                          string        `mapstructure:"PORT"`
	LogMode                       string        `mapstructure:"LOG_MODE"`
	DatabaseDriver                string        `mapstructure:"DATABASE_DRIVER"`
	DatabasePath                  string        `mapstructure:"DATABASE_PATH"`
	DatabaseDSN                   string        `mapstructure:"DATABASE_DSN"`
	CatalogPath                   string        `mapstructure:"CATALOG_PATH"`
	IDMapTTL                      time.Duration `mapstructure:"IDMAP_TTL"`
	StatsCacheTTL                 time.Duration `mapstructure:"STATS_CACHE_TTL"`
	RedisAddr                     string        `mapstructure:"REDIS_ADDR"`
	AwardMaxAttempts              int           `mapstructure:"AWARD_MAX_ATTEMPTS"`
	AwardRetryBackoff             time.Duration `mapstructure:"AWARD_RETRY_BACKOFF"`
	DiscordClientID               string        `mapstructure:"DISCORD_CLIENT_ID"`
	DiscordClientSecret           string        `mapstructure:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURL            string        `mapstructure:"DISCORD_REDIRECT_URL"`
	DiscordBotToken               string        `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordNotificationsChannelID string        `mapstructure:"DISCORD_NOTIFICATIONS_CHANNEL_ID"`
	JWTSecret                     string        `mapstructure:"JWT_SECRET"`
	FrontendURL                   string        `mapstructure:"FRONTEND_URL"`
	OTelEnabled                   bool          `mapstructure:"OTEL_ENABLED"`
	OTelServiceName               string        `mapstructure:"OTEL_SERVICE_NAME"`
	OTelEndpoint                  string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSampleRatio               float64       `mapstructure:"OTEL_SAMPLER_RATIO"`
}

func LoadConfig() *Config {
	// .env is optional, real environment wins
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded .env file")
	}

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_MODE", "dev")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_PATH", "garage-fit.db")
	viper.SetDefault("IDMAP_TTL", 5*time.Minute)
	viper.SetDefault("STATS_CACHE_TTL", 30*time.Second)
	viper.SetDefault("AWARD_MAX_ATTEMPTS", 3)
	viper.SetDefault("AWARD_RETRY_BACKOFF", 50*time.Millisecond)
	viper.SetDefault("DISCORD_REDIRECT_URL", "http://127.0.0.1:8080/auth/discord/callback")
	viper.SetDefault("FRONTEND_URL", "http://127.0.0.1:4000/")
	viper.SetDefault("OTEL_SERVICE_NAME", "garage-fit-api")
	viper.SetDefault("OTEL_SAMPLER_RATIO", 1.0)

	viper.BindEnv("DATABASE_DSN")
	viper.BindEnv("CATALOG_PATH")
	viper.BindEnv("REDIS_ADDR")
	viper.BindEnv("DISCORD_CLIENT_ID")
	viper.BindEnv("DISCORD_CLIENT_SECRET")
	viper.BindEnv("DISCORD_BOT_TOKEN")
	viper.BindEnv("DISCORD_NOTIFICATIONS_CHANNEL_ID")
	viper.BindEnv("JWT_SECRET")
	viper.BindEnv("OTEL_ENABLED")
	viper.BindEnv("OTEL_EXPORTER_OTLP_ENDPOINT")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	if config.AwardMaxAttempts < 1 {
		config.AwardMaxAttempts = 1
	}
	if config.OTelSampleRatio < 0 || config.OTelSampleRatio > 1 {
		config.OTelSampleRatio = 1
	}

	return &config
}
