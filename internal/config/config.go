package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the ProteinDock server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Engine   EngineConfig
	RCSB     RCSBConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// EngineConfig describes the external docking engine process and the
// filesystem layout for per-job working directories.
type EngineConfig struct {
	// Python interpreter and wrapper script that drive AutoDock Vina.
	Python string
	Script string

	// WorkRoot is the parent of per-job working directories, each named by
	// job id and exclusive to that job.
	WorkRoot string

	// JobTimeout is the wall-clock limit for a single run; the engine
	// process is killed and the job failed when it elapses.
	JobTimeout time.Duration

	// ViewerTTL controls viewer artifact expiry, and SweepInterval how often
	// expired artifacts are reaped.
	ViewerTTL     time.Duration
	SweepInterval time.Duration
}

type RCSBConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PROTEINDOCK_PORT", 8080),
			Env:  envString("PROTEINDOCK_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Engine: EngineConfig{
			Python:        envString("DOCKING_ENGINE_PYTHON", "python3"),
			Script:        envString("DOCKING_ENGINE_SCRIPT", "engine/vina_docking.py"),
			WorkRoot:      envString("DOCKING_WORK_ROOT", os.TempDir()),
			JobTimeout:    envDuration("DOCKING_JOB_TIMEOUT", 30*time.Minute),
			ViewerTTL:     envDuration("DOCKING_VIEWER_TTL", 30*time.Minute),
			SweepInterval: envDuration("DOCKING_SWEEP_INTERVAL", 10*time.Minute),
		},
		RCSB: RCSBConfig{
			BaseURL: envString("RCSB_BASE_URL", "https://files.rcsb.org"),
			Timeout: envDuration("RCSB_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Engine.Python == "" {
		return fmt.Errorf("DOCKING_ENGINE_PYTHON must not be empty")
	}
	if c.Engine.Script == "" {
		return fmt.Errorf("DOCKING_ENGINE_SCRIPT must not be empty")
	}
	if c.Engine.JobTimeout <= 0 {
		return fmt.Errorf("DOCKING_JOB_TIMEOUT must be positive, got %s", c.Engine.JobTimeout)
	}
	if c.Engine.ViewerTTL <= 0 {
		return fmt.Errorf("DOCKING_VIEWER_TTL must be positive, got %s", c.Engine.ViewerTTL)
	}
	if c.Engine.SweepInterval <= 0 {
		return fmt.Errorf("DOCKING_SWEEP_INTERVAL must be positive, got %s", c.Engine.SweepInterval)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
