package config

import (
	"net/url"
	"os"
)

// SecretSource represents where a secret comes from.
type SecretSource string

const (
	SecretSourceEnv    SecretSource = "env"
	SecretSourceConfig SecretSource = "config"
	SecretSourceNone   SecretSource = "none"
)

// SecretStatus represents the status of a configured secret.
type SecretStatus struct {
	Name   string       `json:"name"`
	Source SecretSource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "sec...ret"
}

// CheckSecrets returns the status of the sink credentials.
func CheckSecrets(cfg *Config) []SecretStatus {
	return []SecretStatus{
		checkSecret("Redis Password", cfg.Redis.Password, EnvPrefix+"_REDIS_PASSWORD"),
		checkSecret("Postgres DSN", cfg.Postgres.DSN, EnvPrefix+"_POSTGRES_DSN"),
	}
}

// checkSecret checks if a secret is set and where it came from.
func checkSecret(name, value, envVar string) SecretStatus {
	status := SecretStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value != "" {
		if os.Getenv(envVar) != "" {
			status.Source = SecretSourceEnv
		} else {
			status.Source = SecretSourceConfig
		}
		status.Masked = maskSecret(value)
	} else {
		status.Source = SecretSourceNone
	}

	return status
}

// maskSecret masks a secret for display. URLs keep scheme and host with the
// password hidden; other values show only the first 3 and last 3 chars.
func maskSecret(s string) string {
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Redacted()
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:3] + "..." + s[len(s)-3:]
}
