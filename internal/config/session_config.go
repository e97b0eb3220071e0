package config

import (
	"strings"
	"time"
)

type SessionConfig interface {
	GetInactivityThreshold() time.Duration
	GetActivityCheckInterval() time.Duration
	GetGraceMode() string
}

type Session struct{ values }

var _ SessionConfig = Session{}

func (s Session) GetInactivityThreshold() time.Duration {
	return s.duration("INACTIVITY_THRESHOLD", 10*time.Minute)
}

func (s Session) GetActivityCheckInterval() time.Duration {
	return s.duration("ACTIVITY_CHECK_INTERVAL", 30*time.Second)
}

// GetGraceMode returns "refresh" or "keepalive"
func (s Session) GetGraceMode() string {
	return strings.ToLower(s.get("INACTIVITY_GRACE_MODE", "refresh"))
}
