package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"hopwatch/internal/domain"
)

const (
	// DefaultPortalURL is the portal origin the API calls go to.
	DefaultPortalURL = "https://at.govt.nz"
	// DefaultLoginURL is the entry page of the interactive sign-in flow.
	DefaultLoginURL = "https://at.govt.nz/account/SignIn/MyATAuth"
)

var (
	// ErrMissing marks a required value that was not set.
	ErrMissing = errors.New("required configuration not set")
	// ErrInvalid marks a value that was set but unusable.
	ErrInvalid = errors.New("invalid configuration value")
)

// Error ties a configuration failure to the environment variable that
// caused it.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Key, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Config is the immutable runtime configuration, built and validated once at
// startup from AT_* environment variables and passed by reference from there.
type Config struct {
	Username     string
	Password     string
	Cards        []domain.CardRef
	DatabaseFile string
	SchemaFile   string // optional external schema definition

	Period       time.Duration
	StartupDelay time.Duration

	SlackToken   string
	SlackChannel string

	MaxRetries     int
	RequestTimeout time.Duration

	MetricsAddr string // empty disables the metrics listener

	PortalBaseURL string
	LoginURL      string
}

// Load reads configuration from the environment. Any missing required key or
// malformed integer is returned as a single *Error; callers treat that as
// fatal at startup.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("at")
	v.AutomaticEnv()

	cfg := &Config{}
	var err error
	if cfg.Username, err = required(v, "username"); err != nil {
		return nil, err
	}
	if cfg.Password, err = required(v, "password"); err != nil {
		return nil, err
	}
	rawCards, err := required(v, "cards")
	if err != nil {
		return nil, err
	}
	if cfg.Cards, err = ParseCards(rawCards); err != nil {
		return nil, err
	}
	if cfg.DatabaseFile, err = required(v, "database_file"); err != nil {
		return nil, err
	}
	cfg.SchemaFile = v.GetString("schema_file")

	period, err := seconds(v, "period", 3600)
	if err != nil {
		return nil, err
	}
	cfg.Period = period

	delay, err := seconds(v, "startup_delay", 60)
	if err != nil {
		return nil, err
	}
	cfg.StartupDelay = delay

	cfg.SlackToken = v.GetString("slack_api_token")
	cfg.SlackChannel = v.GetString("slack_channel")

	if cfg.MaxRetries, err = integer(v, "max_retries", 3); err != nil {
		return nil, err
	}
	timeout, err := seconds(v, "request_timeout", 30)
	if err != nil {
		return nil, err
	}
	cfg.RequestTimeout = timeout

	cfg.MetricsAddr = v.GetString("metrics_addr")

	cfg.PortalBaseURL = strings.TrimSuffix(fallback(v, "portal_base_url", DefaultPortalURL), "/")
	cfg.LoginURL = fallback(v, "login_url", DefaultLoginURL)

	return cfg, nil
}

// ParseCards parses the AT_CARDS syntax: comma-separated entries of either
// "card_id" or "card_id:display_name". Order is preserved.
func ParseCards(raw string) ([]domain.CardRef, error) {
	var cards []domain.CardRef
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, name, _ := strings.Cut(entry, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, &Error{Key: envName("cards"), Err: fmt.Errorf("%w: entry %q has no card id", ErrInvalid, entry)}
		}
		cards = append(cards, domain.CardRef{ID: id, Name: strings.TrimSpace(name)})
	}
	if len(cards) == 0 {
		return nil, &Error{Key: envName("cards"), Err: fmt.Errorf("%w: no cards configured", ErrInvalid)}
	}
	return cards, nil
}

func required(v *viper.Viper, key string) (string, error) {
	value := v.GetString(key)
	if value == "" {
		return "", &Error{Key: envName(key), Err: ErrMissing}
	}
	return value, nil
}

func fallback(v *viper.Viper, key, def string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	return def
}

// integer parses an optional integer key itself instead of using viper's
// GetInt, which silently turns garbage into zero.
func integer(v *viper.Viper, key string, def int) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &Error{Key: envName(key), Err: fmt.Errorf("%w: %q must be an integer", ErrInvalid, raw)}
	}
	return n, nil
}

func seconds(v *viper.Viper, key string, def int) (time.Duration, error) {
	n, err := integer(v, key, def)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, &Error{Key: envName(key), Err: fmt.Errorf("%w: %d must not be negative", ErrInvalid, n)}
	}
	return time.Duration(n) * time.Second, nil
}

func envName(key string) string { return "AT_" + strings.ToUpper(key) }
