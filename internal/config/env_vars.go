package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	appNameVar    = "APP_NAME"
	envVar        = "ENV"
	logLevelVar   = "LOG_LEVEL"
	apiBaseURLVar = "API_BASE_URL"
)

type EnvVars struct{ values }

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.get(appNameVar, "Setoran Dosen")
}

func (e EnvVars) GetEnv() string {
	return e.get(envVar, "DEV")
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.get(logLevelVar, "info"))
}

// GetAPIBaseURL returns the base URL of the setoran resource API
func (e EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(e.get(apiBaseURLVar, "https://api.tif.uin-suska.ac.id/setoran-dev/v1"), "/")
}

// values holds settings loaded from a config file. Environment variables always win.
type values map[string]string

func (v values) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := v[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (v values) duration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(v.get(key, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func (v values) int(key string, defaultValue int) int {
	i, err := strconv.Atoi(v.get(key, ""))
	if err != nil || i <= 0 {
		return defaultValue
	}
	return i
}

func (v values) bool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(v.get(key, ""))
	if err != nil {
		return defaultValue
	}
	return b
}

func GetEnv(envVar, defaultValue string) string {
	return values(nil).get(envVar, defaultValue)
}
