package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/focusnest/go/internal/session"
	"gopkg.in/yaml.v3"
)

// Config is the YAML deployment configuration. Zero values fall back to the
// session defaults.
type Config struct {
	Session struct {
		WaitingTTL        time.Duration `yaml:"waiting_ttl"`
		CompleteTolerance time.Duration `yaml:"complete_tolerance"`
		AllowedDurations  []int         `yaml:"allowed_durations"`
		DeepLinkScheme    string        `yaml:"deep_link_scheme"`
	} `yaml:"session"`
	Scheduler struct {
		Workers       int           `yaml:"workers"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"scheduler"`
}

// Policy merges the configured session rules over the defaults.
func (c *Config) Policy() session.Policy {
	policy := session.DefaultPolicy()
	if c.Session.WaitingTTL > 0 {
		policy.WaitingTTL = c.Session.WaitingTTL
	}
	if c.Session.CompleteTolerance > 0 {
		policy.CompleteTolerance = c.Session.CompleteTolerance
	}
	if c.Session.AllowedDurations != nil {
		policy.AllowedDurations = c.Session.AllowedDurations
	}
	if c.Session.DeepLinkScheme != "" {
		policy.DeepLinkScheme = c.Session.DeepLinkScheme
	}
	return policy
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

// loadConfig reads the YAML file at path. A missing file yields the defaults.
func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
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
