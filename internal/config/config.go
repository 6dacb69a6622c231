// Package config loads the checker's configuration: the Azure application
// credential from the environment and the per-user settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Environment variables carrying the Azure application credential.
const (
	EnvClientID     = "OWA_CHECKER_CLIENT_ID"
	EnvClientSecret = "OWA_CHECKER_CLIENT_SECRET"
	EnvDomain       = "OWA_CHECKER_DOMAIN"
)

// ErrMissingCredential indicates one of the required environment variables
// is not set. This is fatal and reported before any network activity.
var ErrMissingCredential = errors.New("config: missing credential")

// Credential is the Azure application registration used for OAuth.
// Immutable for the process lifetime.
type Credential struct {
	ClientID     string
	ClientSecret string
	// Domain is the directory tenant ("common" works for most accounts).
	Domain string
}

// CredentialFromEnv reads the application credential from the environment.
func CredentialFromEnv() (Credential, error) {
	cred := Credential{
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		Domain:       os.Getenv(EnvDomain),
	}
	for _, v := range []struct{ name, value string }{
		{EnvClientID, cred.ClientID},
		{EnvClientSecret, cred.ClientSecret},
		{EnvDomain, cred.Domain},
	} {
		if v.value == "" {
			return Credential{}, fmt.Errorf("%w: %s is not set", ErrMissingCredential, v.name)
		}
	}
	return cred, nil
}

// Settings are the user-tunable options stored in owa.toml. Unknown or
// missing keys fall back to defaults so older files keep working.
type Settings struct {
	// Folders lists the mail folder display names to watch.
	Folders []string `toml:"folders"`
	// CheckIntervalSeconds is the mail check interval.
	CheckIntervalSeconds int `toml:"check_interval_seconds"`
	// CalendarMultiple is how many mail cycles pass between calendar checks.
	CalendarMultiple int `toml:"calendar_multiple"`
	// ReminderMultiple is how many mail cycles pass between reminder sweeps.
	ReminderMultiple int `toml:"reminder_multiple"`
	// MailPopupLimit caps how many mail popups a single cycle may raise
	// before collapsing the remainder into one summary popup.
	MailPopupLimit int `toml:"mail_popup_limit"`
	// DebugLog enables debug logging.
	DebugLog bool `toml:"debug_log"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Folders:              []string{"inbox"},
		CheckIntervalSeconds: 5,
		CalendarMultiple:     12,
		ReminderMultiple:     1,
		MailPopupLimit:       4,
	}
}

// CheckInterval returns the mail check interval as a duration.
func (s Settings) CheckInterval() time.Duration {
	return time.Duration(s.CheckIntervalSeconds) * time.Second
}

// StateDir returns the checker's state directory (~/.owa_checker), creating
// it with owner-only permissions if needed.
func StateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".owa_checker")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	return dir, nil
}

// SettingsPath returns the path of the user settings file inside dir.
func SettingsPath(dir string) string {
	return filepath.Join(dir, "owa.toml")
}

// LoadSettings reads settings from the given file. A missing file is not an
// error: the defaults are written out so the user has something to edit.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := SaveSettings(path, s); werr != nil {
			return s, werr
		}
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}

	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	s.normalise()
	return s, nil
}

// SaveSettings writes settings to the given file.
func SaveSettings(path string, s Settings) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// normalise clamps nonsense values back to defaults.
func (s *Settings) normalise() {
	def := DefaultSettings()
	if len(s.Folders) == 0 {
		s.Folders = def.Folders
	}
	if s.CheckIntervalSeconds <= 0 {
		s.CheckIntervalSeconds = def.CheckIntervalSeconds
	}
	if s.CalendarMultiple <= 0 {
		s.CalendarMultiple = def.CalendarMultiple
	}
	if s.ReminderMultiple <= 0 {
		s.ReminderMultiple = def.ReminderMultiple
	}
	if s.MailPopupLimit <= 0 {
		s.MailPopupLimit = def.MailPopupLimit
	}
}
