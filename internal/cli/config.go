package cli

import (
	"os"
	"time"
)

// Config holds CLI configuration
type Config struct {
	ServerAddr string
	AdminURL   string
	AdminToken string
	Timeout    time.Duration
	Output     string
	Verbose    bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerAddr: getEnvOrDefault("CHESS_SERVER", "localhost:9000"),
		AdminURL:   getEnvOrDefault("CHESS_ADMIN_URL", "http://localhost:9090"),
		AdminToken: os.Getenv("CHESS_ADMIN_TOKEN"),
		Timeout:    10 * time.Second,
		Output:     "text",
		Verbose:    false,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
