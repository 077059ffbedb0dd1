package core

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type SessionConfig struct {
	// TTL is the fixed session time-to-live; it slides forward on every
	// successful upload.
	TTLSeconds int `yaml:"ttlSeconds"`
	// Store selects the backing store: "memory" or "redis".
	Store        string `yaml:"store"`
	RedisAddress string `yaml:"redisAddress"`
	// Discipline selects the consumption discipline: "pull" (poll + clear)
	// or "push" (watch feed, image retained until overwritten).
	Discipline string `yaml:"discipline"`
	// SweepIntervalSeconds drives the background expiry sweeper.
	SweepIntervalSeconds int `yaml:"sweepIntervalSeconds"`
	// PollIntervalSeconds is handed to polling clients.
	PollIntervalSeconds int `yaml:"pollIntervalSeconds"`
	// MaxEncodedUploadBytes caps the encoded image payload; the store
	// imposes a ceiling around 1MB for encoded-text payloads.
	MaxEncodedUploadBytes int `yaml:"maxEncodedUploadBytes"`
}

type ArchiveConfig struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type PredictConfig struct {
	BackendURL     string `yaml:"backendUrl"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type ServiceConfig struct {
	Port int `yaml:"port"`
	// PublicBaseURL is the externally reachable address embedded into the
	// QR-encoded mobile URL.
	PublicBaseURL string        `yaml:"publicBaseUrl"`
	Session       SessionConfig `yaml:"session"`
	Archive       ArchiveConfig `yaml:"archive"`
	Predict       PredictConfig `yaml:"predict"`
}

// LoadConfig loads configuration from the specified YAML file and applies
// defaults and environment overrides.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	applyDefaults(&config)

	// BACKEND_URL override: localhost when co-located with the backend,
	// public address elsewhere.
	if backendURL := os.Getenv("BACKEND_URL"); backendURL != "" {
		config.Predict.BackendURL = backendURL
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func applyDefaults(config *ServiceConfig) {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.PublicBaseURL == "" {
		config.PublicBaseURL = fmt.Sprintf("http://localhost:%d", config.Port)
	}
	if config.Session.TTLSeconds == 0 {
		config.Session.TTLSeconds = 300
	}
	if config.Session.Store == "" {
		config.Session.Store = "memory"
	}
	if config.Session.Discipline == "" {
		config.Session.Discipline = "pull"
	}
	if config.Session.SweepIntervalSeconds == 0 {
		config.Session.SweepIntervalSeconds = 60
	}
	if config.Session.PollIntervalSeconds == 0 {
		config.Session.PollIntervalSeconds = 2
	}
	if config.Session.MaxEncodedUploadBytes == 0 {
		config.Session.MaxEncodedUploadBytes = 1 << 20
	}
	if config.Predict.TimeoutSeconds == 0 {
		config.Predict.TimeoutSeconds = 180
	}
}

func validate(config *ServiceConfig) error {
	switch config.Session.Store {
	case "memory":
	case "redis":
		if config.Session.RedisAddress == "" {
			return fmt.Errorf("session store is redis but no redisAddress is set")
		}
	default:
		return fmt.Errorf("unknown session store: %s", config.Session.Store)
	}

	switch config.Session.Discipline {
	case "pull", "push":
	default:
		return fmt.Errorf("unknown consumption discipline: %s", config.Session.Discipline)
	}

	if config.Archive.Type != "" && config.Archive.ConnectionString == "" {
		return fmt.Errorf("archive type %s requires a connectionString", config.Archive.Type)
	}
	return nil
}

func (c *ServiceConfig) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLSeconds) * time.Second
}

func (c *ServiceConfig) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepIntervalSeconds) * time.Second
}

func (c *ServiceConfig) PollInterval() time.Duration {
	return time.Duration(c.Session.PollIntervalSeconds) * time.Second
}

func (c *ServiceConfig) PredictTimeout() time.Duration {
	return time.Duration(c.Predict.TimeoutSeconds) * time.Second
}
