package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// First check our loaded Env map
	if val, ok := Env[key]; ok {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func SetupEnvFile() {
	// Look for .env file in project root
	envFiles := []string{
		".env",          // Current directory
		"../../.env",    // From cmd/startunnel to project root
		"../../../.env", // Fallback for deeper nesting
	}

	for _, envFile := range envFiles {
		m, err := godotenv.Read(envFile)
		if err == nil {
			Env = m
			return
		}
	}

	// No .env file is fine when everything comes from the OS environment.
	Env = map[string]string{}
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}

// RequireEnv returns the value of key or an error when it is unset.
// Missing required configuration is a startup-fatal condition.
func RequireEnv(key string) (string, error) {
	val := GetEnv(key, "")
	if strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return val, nil
}

// GetAdminIDs parses the comma separated ADMIN_IDS list into Telegram user ids.
func GetAdminIDs() ([]int64, error) {
	raw, err := RequireEnv("ADMIN_IDS")
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_IDS contains a non-numeric id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("ADMIN_IDS is set but contains no ids")
	}
	return ids, nil
}

// GetEnvInt reads an integer setting with a fallback default.
func GetEnvInt(key string, def int) int {
	val := GetEnv(key, "")
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
