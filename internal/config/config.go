package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config aggregates the client's configuration.
type Config struct {
	API       APIConfig
	Audio     AudioConfig
	Trial     TrialConfig
	StatePath string
	DevServer DevServerConfig
}

// APIConfig describes how to reach the backend REST API.
type APIConfig struct {
	BaseURL string
}

// AudioConfig describes capture defaults for the recording pipeline.
type AudioConfig struct {
	SampleRate int
	Channels   int
}

// TrialConfig gates unauthenticated sends.
type TrialConfig struct {
	Limit int
}

// DevServerConfig controls the embedded development backend.
type DevServerConfig struct {
	Enabled bool
	Addr    string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	api, err := loadAPIConfig()
	if err != nil {
		return nil, err
	}

	audio, err := loadAudioConfig()
	if err != nil {
		return nil, err
	}

	trial, err := loadTrialConfig()
	if err != nil {
		return nil, err
	}

	dev, err := loadDevServerConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		API:       api,
		Audio:     audio,
		Trial:     trial,
		StatePath: getEnvOrDefault("AGRIGPT_STATE_PATH", "agrigpt.db"),
		DevServer: dev,
	}, nil
}

func loadAPIConfig() (APIConfig, error) {
	base := getEnvOrDefault("AGRIGPT_API_BASE_URL", "http://localhost:8080")
	if strings.Contains(base, " ") {
		return APIConfig{}, fmt.Errorf("invalid AGRIGPT_API_BASE_URL value: %q", base)
	}
	return APIConfig{BaseURL: strings.TrimRight(base, "/")}, nil
}

func loadAudioConfig() (AudioConfig, error) {
	sampleRate := 48000
	if override, err := parseOptionalIntEnv("AGRIGPT_SAMPLE_RATE"); err != nil {
		return AudioConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return AudioConfig{}, fmt.Errorf("AGRIGPT_SAMPLE_RATE must be positive, got %d", *override)
		}
		sampleRate = *override
	}

	channels := 1
	if override, err := parseOptionalIntEnv("AGRIGPT_CHANNELS"); err != nil {
		return AudioConfig{}, err
	} else if override != nil {
		if *override < 1 || *override > 2 {
			return AudioConfig{}, fmt.Errorf("AGRIGPT_CHANNELS must be 1 or 2, got %d", *override)
		}
		channels = *override
	}

	return AudioConfig{SampleRate: sampleRate, Channels: channels}, nil
}

func loadTrialConfig() (TrialConfig, error) {
	limit := 10
	if override, err := parseOptionalIntEnv("AGRIGPT_TRIAL_LIMIT"); err != nil {
		return TrialConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return TrialConfig{}, fmt.Errorf("AGRIGPT_TRIAL_LIMIT must not be negative, got %d", *override)
		}
		limit = *override
	}
	return TrialConfig{Limit: limit}, nil
}

func loadDevServerConfig() (DevServerConfig, error) {
	enabled, err := parseBoolEnv("AGRIGPT_DEV_SERVER", false)
	if err != nil {
		return DevServerConfig{}, err
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return DevServerConfig{Enabled: enabled, Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return DevServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return DevServerConfig{Enabled: enabled, Addr: ":" + port}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
