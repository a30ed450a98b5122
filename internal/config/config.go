package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Env holds the credential and logging settings read from the process
// environment. A .env file in the working directory is loaded first;
// real environment variables win over it.
type Env struct {
	APIKeyID       string
	PrivateKeyPath string
	Demo           bool
	LogLevel       string
}

func Load() *Env {
	_ = godotenv.Load()

	return &Env{
		APIKeyID:       envStr("KALSHI_API_KEY_ID", ""),
		PrivateKeyPath: envStr("KALSHI_PRIVATE_KEY_PATH", ""),
		Demo:           envStr("KALSHI_DEMO", "false") == "true",
		LogLevel:       envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
