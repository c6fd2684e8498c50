package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL  string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`

	// JobAPIKey is the pre-shared credential for the batch recompute and
	// scheduled-trigger endpoints. Not tied to any user session.
	JobAPIKey string `mapstructure:"JOB_API_KEY"`

	// RecomputeDaysAhead is the default forecasting horizon, in days, used
	// when a recompute request does not carry an explicit days_ahead.
	RecomputeDaysAhead int `mapstructure:"RECOMPUTE_DAYS_AHEAD"`

	// RecomputeStudyStatuses is the default status filter for the batch sweep.
	RecomputeStudyStatuses []string `mapstructure:"RECOMPUTE_STUDY_STATUSES"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RECOMPUTE_DAYS_AHEAD", 60)
	v.SetDefault("RECOMPUTE_STUDY_STATUSES", "enrolling,active")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("JOB_API_KEY")
	v.BindEnv("RECOMPUTE_DAYS_AHEAD")
	v.BindEnv("RECOMPUTE_STUDY_STATUSES")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	if cfg.RecomputeStudyStatuses == nil {
		if statuses := v.GetString("RECOMPUTE_STUDY_STATUSES"); statuses != "" {
			cfg.RecomputeStudyStatuses = strings.Split(statuses, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RecomputeDaysAhead <= 0 {
		cfg.RecomputeDaysAhead = 60
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, all requests get coordinator access.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// mode AUTH_ISSUER must be set so that real JWT authentication is enforced,
// and JOB_API_KEY must be set so the batch endpoints are not open.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_ISSUER must be set when ENV=%q; refusing to start without authentication", c.Env)
		}
		if c.JobAPIKey == "" {
			return fmt.Errorf("JOB_API_KEY is required when ENV=%q", c.Env)
		}
	}
	if c.RecomputeDaysAhead <= 0 {
		return fmt.Errorf("RECOMPUTE_DAYS_AHEAD must be positive, got %d", c.RecomputeDaysAhead)
	}
	return nil
}
