package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file-based configuration (config.yaml). Environment
// variables cover secrets and per-deployment settings; the file covers
// game tuning.
type Config struct {
	Game struct {
		AnswerWindowSeconds int `yaml:"answer_window_seconds"`
	} `yaml:"game"`
	OpenAI struct {
		Model string `yaml:"model"`
	} `yaml:"openai"`
	Server struct {
		JoinBaseURL string `yaml:"join_base_url"`
	} `yaml:"server"`
	Scheduler struct {
		PollIntervalMS int `yaml:"poll_interval_ms"`
		NumWorkers     int `yaml:"num_workers"`
	} `yaml:"scheduler"`
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

func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// Defaults only; the file is optional.
		return &config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

func (c *Config) answerWindow() time.Duration {
	if c.Game.AnswerWindowSeconds <= 0 {
		return 0 // room.NewApp falls back to its default
	}
	return time.Duration(c.Game.AnswerWindowSeconds) * time.Second
}
