package config

import (
	"log/slog"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; every one that exists is loaded.
var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads KEY=VALUE pairs from .env files into the process
// environment. Variables already set are never overwritten.
func loadEnvFiles() {
	for _, path := range envFiles {
		if err := godotenv.Load(path); err == nil {
			slog.Debug("Loaded environment variables", slog.String("path", path))
		}
	}
}
