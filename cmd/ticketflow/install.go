package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

func runInstall(args []string) {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	dbPath := fs.String("db-path", "", "database path (default: ~/.ticketflow/ticketflow.db)")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	poolSize := fs.Int("pool-size", 10, "max concurrent instances")
	httpTimeout := fs.String("http-timeout", "30s", "timeout for outbound calls")
	maxWait := fs.String("max-wait", "0s", "longest wait an action may request (0 = no cap)")
	redisURL := fs.String("redis-url", "", "redis URL for the live-update channel (default: in-process)")
	smtpAddr := fs.String("smtp-addr", "", "SMTP relay host:port")
	smtpFrom := fs.String("smtp-from", "", "sender address for outgoing mail")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dir := ticketflowDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create %s: %v\n", dir, err)
		os.Exit(1)
	}

	cfg := defaultConfig()
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}
	cfg.LogLevel = *logLevel
	cfg.PoolSize = *poolSize
	cfg.HTTPTimeout = *httpTimeout
	cfg.MaxWait = *maxWait
	cfg.RedisURL = *redisURL
	cfg.SMTPAddr = *smtpAddr
	cfg.SMTPFrom = *smtpFrom
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	} else {
		cfg.DBPath = filepath.Join(dir, "ticketflow.db")
	}

	// settings.json may hold SMTP credentials.
	data, _ := json.MarshalIndent(cfg, "", "  ")
	path := settingsPath()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot write %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("Config written to %s\n", path)
}
