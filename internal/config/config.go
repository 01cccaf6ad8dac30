package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	DB         `yaml:"db"`
	HTTPServer `yaml:"http_server"`
	Auth       `yaml:"auth"`
	Navigation `yaml:"navigation"`
	Revocation `yaml:"revocation"`
}

// DB selects the persistence backend. An empty DbURL runs the service on
// seeded in-memory collections.
type DB struct {
	DbURL string `yaml:"db_url" env:"DB_URL"`
}

type HTTPServer struct {
	Address      string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"10s"`
}

type Auth struct {
	JWTSecret          string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	TokenTTL           time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"168h"`
	BcryptCost         int           `yaml:"bcrypt_cost" env-default:"10"`
	CookieName         string        `yaml:"cookie_name" env-default:"token"`
	LoginRatePerMinute int           `yaml:"login_rate_per_minute" env-default:"10"`
	IDAttempts         int           `yaml:"id_attempts" env-default:"5"`
}

type Navigation struct {
	WalkingSpeedKmh     float64       `yaml:"walking_speed_kmh" env-default:"5"`
	DeviationThresholdM float64       `yaml:"deviation_threshold_m" env-default:"50"`
	StopPenalty         time.Duration `yaml:"stop_penalty" env-default:"120s"`
	MinutesPerExhibit   int           `yaml:"minutes_per_exhibit" env-default:"10"`
	PersonalizedLimit   int           `yaml:"personalized_limit" env-default:"5"`
}

// Revocation keeps revoked tokens in BadgerDB when BadgerPath is set,
// otherwise in process memory.
type Revocation struct {
	BadgerPath string `yaml:"badger_path" env:"REVOCATION_BADGER_PATH"`
}

func MustLoadConfig(configPath string) *Config {
	if _, err := os.Stat(configPath); err != nil {
		panic("config file not found")
	}

	config, err := loadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	return config
}

func loadConfig(path string) (*Config, error) {
	var config Config

	if err := cleanenv.ReadConfig(path, &config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// MockMode reports whether the in-memory storage should be used.
func (c *Config) MockMode() bool {
	return c.DbURL == ""
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt_cost must be within %d..%d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.TokenTTL <= 0 {
		return errors.New("token_ttl must be positive")
	}
	if c.WalkingSpeedKmh <= 0 {
		return errors.New("walking_speed_kmh must be positive")
	}
	if c.DeviationThresholdM <= 0 {
		return errors.New("deviation_threshold_m must be positive")
	}
	if c.StopPenalty < 0 {
		return errors.New("stop_penalty must not be negative")
	}
	if c.MinutesPerExhibit <= 0 {
		return errors.New("minutes_per_exhibit must be positive")
	}
	if c.PersonalizedLimit <= 0 {
		return errors.New("personalized_limit must be positive")
	}
	if c.IDAttempts <= 0 {
		return errors.New("id_attempts must be positive")
	}
	if c.LoginRatePerMinute <= 0 {
		return errors.New("login_rate_per_minute must be positive")
	}

	return nil
}
