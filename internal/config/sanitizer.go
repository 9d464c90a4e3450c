package config

import (
	"encoding/json"
	"net/url"
	"strings"
)

// ConfigSanitizer redacts sensitive fields from a Config before it's logged.
type ConfigSanitizer interface {
	Sanitize(cfg *Config) *Config
}

// DefaultConfigSanitizer implements ConfigSanitizer.
type DefaultConfigSanitizer struct {
	redactionValue string
}

// NewDefaultConfigSanitizer creates a DefaultConfigSanitizer.
func NewDefaultConfigSanitizer() ConfigSanitizer {
	return &DefaultConfigSanitizer{redactionValue: "***REDACTED***"}
}

// NewConfigSanitizer creates a ConfigSanitizer with a custom redaction value.
func NewConfigSanitizer(redactionValue string) ConfigSanitizer {
	return &DefaultConfigSanitizer{redactionValue: redactionValue}
}

// Sanitize redacts the session primary-store and database URI credentials
// and the Redis password from cfg,
// returning a deep copy so the original is never mutated.
func (s *DefaultConfigSanitizer) Sanitize(cfg *Config) *Config {
	sanitized := s.deepCopy(cfg)

	sanitized.Session.PrimaryStoreURI = s.sanitizeURL(sanitized.Session.PrimaryStoreURI)
	sanitized.Database.URI = s.sanitizeURL(sanitized.Database.URI)
	sanitized.Redis.Password = s.redactionValue

	return sanitized
}

func (s *DefaultConfigSanitizer) deepCopy(cfg *Config) *Config {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return cfg
	}

	var configCopy Config
	if err := json.Unmarshal(configJSON, &configCopy); err != nil {
		return cfg
	}

	return &configCopy
}

// sanitizeURL redacts the userinfo portion of a connection URI, leaving the
// scheme/host/path intact so the sanitized value still aids debugging.
func (s *DefaultConfigSanitizer) sanitizeURL(raw string) string {
	if raw == "" {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		if strings.Contains(raw, "@") {
			return s.redactionValue
		}
		return raw
	}

	parsed.User = url.UserPassword(parsed.User.Username(), s.redactionValue)
	return parsed.String()
}
