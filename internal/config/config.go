package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Addr string `mapstructure:"addr" validate:"required"`
		Env  string `mapstructure:"env" validate:"oneof=development production test"`
	} `mapstructure:"app"`

	Log struct {
		Level string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	} `mapstructure:"log"`

	Database struct {
		Driver string `mapstructure:"driver" validate:"oneof=sqlite3 postgres"`
		DSN    string `mapstructure:"dsn" validate:"required"`
	} `mapstructure:"database"`

	Auth struct {
		JWTSecret string        `mapstructure:"jwt_secret" validate:"required"`
		TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
	} `mapstructure:"auth"`

	Blob struct {
		Backend string `mapstructure:"backend" validate:"oneof=disk jetstream"`
		Dir     string `mapstructure:"dir" validate:"required_if=Backend disk"`
		BaseURL string `mapstructure:"base_url"`
		NatsURL string `mapstructure:"nats_url" validate:"required_if=Backend jetstream"`
		Bucket  string `mapstructure:"bucket" validate:"required_if=Backend jetstream"`
	} `mapstructure:"blob"`

	WS struct {
		SendBuffer         int  `mapstructure:"send_buffer" validate:"gt=0"`
		PermissiveRoomJoin bool `mapstructure:"permissive_room_join"`
	} `mapstructure:"ws"`

	Receipts struct {
		ConflateDelivery bool `mapstructure:"conflate_delivery"`
	} `mapstructure:"receipts"`

	Upload struct {
		MaxBytes int64 `mapstructure:"max_bytes" validate:"gt=0"`
	} `mapstructure:"upload"`
}

const devSecret = "dev-secret-change-me"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.addr", ":8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "chat.db")
	v.SetDefault("auth.jwt_secret", devSecret)
	v.SetDefault("auth.token_ttl", 15*time.Minute)
	v.SetDefault("blob.backend", "disk")
	v.SetDefault("blob.dir", "uploads")
	v.SetDefault("blob.base_url", "")
	v.SetDefault("blob.nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("blob.bucket", "chat-attachments")
	v.SetDefault("ws.send_buffer", 256)
	v.SetDefault("ws.permissive_room_join", false)
	v.SetDefault("receipts.conflate_delivery", true)
	v.SetDefault("upload.max_bytes", 10<<20)
}

// Load reads application.yaml from the given directories (the working
// directory when none are given), then lets CHATROOM_* environment
// variables override it. A .env file, if present, is loaded into the
// environment first.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("config: no .env file loaded")
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("CHATROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("config: no application.yaml, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.App.Env == "production" && cfg.Auth.JWTSecret == devSecret {
		return nil, errors.New("invalid config: auth.jwt_secret must be set in production")
	}

	log.Info().Str("env", cfg.App.Env).Str("db", cfg.Database.Driver).Str("blob", cfg.Blob.Backend).Msg("configuration loaded...")
	return &cfg, nil
}
