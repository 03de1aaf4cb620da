// Package config resolves host configuration for the deskagent command.
// Every setting follows the same precedence: an explicit value (command-line
// flag or profile entry) wins over the environment, and required settings
// with no value from either source fail before any remote call is made.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MissingError reports a required setting that no configuration source
// supplied. It is fatal for the process.
type MissingError struct {
	// Setting is the human-readable name of the missing setting.
	Setting string
	// EnvVar is the environment variable that would have supplied it.
	EnvVar string
}

// Error implements error.
func (e *MissingError) Error() string {
	if e.EnvVar == "" {
		return fmt.Sprintf("missing required configuration: %s", e.Setting)
	}
	return fmt.Sprintf("missing required configuration: %s (set %s)", e.Setting, e.EnvVar)
}

// Lookup returns explicit when non-empty and the value of envVar otherwise.
func Lookup(explicit, envVar string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv(envVar)
}

// Require resolves like Lookup but fails with a *MissingError naming the
// setting when neither source supplies a value.
func Require(explicit, envVar, setting string) (string, error) {
	if v := Lookup(explicit, envVar); v != "" {
		return v, nil
	}
	return "", &MissingError{Setting: setting, EnvVar: envVar}
}

// Profile is the optional YAML profile loaded with -profile. Empty fields
// leave the corresponding setting to the environment or its default.
type Profile struct {
	// Assistant configures the assistant created at bootstrap.
	Assistant struct {
		Name         string `yaml:"name"`
		Instructions string `yaml:"instructions"`
		// Deployment is the model deployment (Azure) or model (OpenAI)
		// backing new assistants.
		Deployment string `yaml:"deployment"`
	} `yaml:"assistant"`
	// Provider selects the run service adapter: azure or openai.
	Provider string `yaml:"provider"`
	// PollInterval is the run status poll interval, e.g. "750ms".
	PollInterval string `yaml:"poll_interval"`
	// Tickets selects the ticket store backend: inmem or mongo.
	Tickets string `yaml:"tickets"`
	// Board selects the CI/CD board backend: inmem or redis.
	Board string `yaml:"board"`
}

// LoadProfile reads and parses a YAML profile. Profiles are only loaded when
// the operator names one, so a missing or unreadable file is an error rather
// than a silent default.
func LoadProfile(path string) (Profile, error) {
	var p Profile
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

// PollIntervalOr parses the profile poll interval, returning fallback when
// the profile does not set one.
func (p Profile) PollIntervalOr(fallback time.Duration) (time.Duration, error) {
	if p.PollInterval == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(p.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("parse profile poll_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("parse profile poll_interval: negative interval %s", d)
	}
	return d, nil
}
