// Package config loads client settings from an optional YAML file with
// environment-variable overrides (WG_* keys).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the client needs to reach and pace a game server.
type Config struct {
	// BaseURL is the HTTP API root, e.g. "https://game.example.com".
	BaseURL string `yaml:"base_url"`
	// LobbyHubPath and GameHubPath are the push-channel endpoints relative
	// to HubBaseURL.
	HubBaseURL   string `yaml:"hub_base_url"`
	LobbyHubPath string `yaml:"lobby_hub_path"`
	GameHubPath  string `yaml:"game_hub_path"`

	// Round image locations, keyed by game id on the server side.
	AlteredImageURL   string `yaml:"altered_image_url"`
	UnalteredImageURL string `yaml:"unaltered_image_url"`

	// Session pacing.
	CountdownSeconds   int           `yaml:"countdown_seconds"`
	RoundEndSeconds    int           `yaml:"round_end_seconds"`
	AlterationInterval time.Duration `yaml:"alteration_interval"`
	CredentialWait     time.Duration `yaml:"credential_wait"`

	// IconRange is the number of selectable player icons.
	IconRange int `yaml:"icon_range"`

	// StorePath is where the preference file lives.
	StorePath string `yaml:"store_path"`
}

// Default returns the settings used when no file or env override is given.
func Default() Config {
	return Config{
		BaseURL:            "http://localhost:5000",
		HubBaseURL:         "ws://localhost:5000",
		LobbyHubPath:       "/lobby",
		GameHubPath:        "/game",
		AlteredImageURL:    "https://web-guesser.s3.ca-central-1.amazonaws.com/altered-round-images",
		UnalteredImageURL:  "https://web-guesser.s3.ca-central-1.amazonaws.com/round-images",
		CountdownSeconds:   3,
		RoundEndSeconds:    10,
		AlterationInterval: time.Second,
		CredentialWait:     10 * time.Second,
		IconRange:          20,
		StorePath:          ".webguesser/prefs.json",
	}
}

// Load reads the YAML file at path over the defaults, then applies env
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.BaseURL = getEnv("WG_BASE_URL", c.BaseURL)
	c.HubBaseURL = getEnv("WG_HUB_BASE_URL", c.HubBaseURL)
	c.LobbyHubPath = getEnv("WG_LOBBY_HUB_PATH", c.LobbyHubPath)
	c.GameHubPath = getEnv("WG_GAME_HUB_PATH", c.GameHubPath)
	c.AlteredImageURL = getEnv("WG_ALTERED_IMAGE_URL", c.AlteredImageURL)
	c.UnalteredImageURL = getEnv("WG_UNALTERED_IMAGE_URL", c.UnalteredImageURL)
	c.CountdownSeconds = getEnvAsInt("WG_COUNTDOWN_SECONDS", c.CountdownSeconds)
	c.RoundEndSeconds = getEnvAsInt("WG_ROUND_END_SECONDS", c.RoundEndSeconds)
	c.IconRange = getEnvAsInt("WG_ICON_RANGE", c.IconRange)
	c.StorePath = getEnv("WG_STORE_PATH", c.StorePath)
}

// LobbyHubURL returns the full lobby push-channel endpoint.
func (c Config) LobbyHubURL() string {
	return c.HubBaseURL + c.LobbyHubPath
}

// GameHubURL returns the full game push-channel endpoint.
func (c Config) GameHubURL() string {
	return c.HubBaseURL + c.GameHubPath
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
