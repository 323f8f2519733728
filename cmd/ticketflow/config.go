package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all ticketflow configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath          string            `json:"db_path"`
	LogLevel        string            `json:"log_level"`
	PoolSize        int               `json:"pool_size"`
	HTTPTimeout     string            `json:"http_timeout"`
	MaxResponseBody int64             `json:"max_response_body"`
	MaxWait         string            `json:"max_wait"`
	RedisURL        string            `json:"redis_url,omitempty"`
	SMTPAddr        string            `json:"smtp_addr,omitempty"`
	SMTPFrom        string            `json:"smtp_from,omitempty"`
	SMTPUsername    string            `json:"smtp_username,omitempty"`
	SMTPPassword    string            `json:"smtp_password,omitempty"`
	TeamsWebhooks   map[string]string `json:"teams_webhooks,omitempty"`
}

func defaultConfig() Config {
	return Config{
		DBPath:          filepath.Join(ticketflowDir(), "ticketflow.db"),
		LogLevel:        "info",
		PoolSize:        10,
		HTTPTimeout:     "30s",
		MaxResponseBody: 10 * 1024 * 1024,
		MaxWait:         "0s",
	}
}

func ticketflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ticketflow"
	}
	return filepath.Join(home, ".ticketflow")
}

func settingsPath() string {
	return filepath.Join(ticketflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("TICKETFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TICKETFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TICKETFLOW_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("TICKETFLOW_HTTP_TIMEOUT"); v != "" {
		cfg.HTTPTimeout = v
	}
	if v := os.Getenv("TICKETFLOW_MAX_RESPONSE_BODY"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxResponseBody = n
		}
	}
	if v := os.Getenv("TICKETFLOW_MAX_WAIT"); v != "" {
		cfg.MaxWait = v
	}
	if v := os.Getenv("TICKETFLOW_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("TICKETFLOW_SMTP_ADDR"); v != "" {
		cfg.SMTPAddr = v
	}
	if v := os.Getenv("TICKETFLOW_SMTP_FROM"); v != "" {
		cfg.SMTPFrom = v
	}
	if v := os.Getenv("TICKETFLOW_SMTP_USERNAME"); v != "" {
		cfg.SMTPUsername = v
	}
	if v := os.Getenv("TICKETFLOW_SMTP_PASSWORD"); v != "" {
		cfg.SMTPPassword = v
	}
	if v := os.Getenv("TICKETFLOW_TEAMS_WEBHOOKS"); v != "" {
		cfg.TeamsWebhooks = parseWebhooks(v)
	}

	return cfg
}

// parseWebhooks reads "channel=url,channel=url".
func parseWebhooks(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		channel, url, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || channel == "" || url == "" {
			continue
		}
		out[strings.TrimSpace(channel)] = strings.TrimSpace(url)
	}
	return out
}

// duration parses a config duration; invalid or empty values yield def.
func duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d < 0 {
		return def
	}
	return d
}
