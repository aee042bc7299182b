package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	pkgauth "github.com/BradenHooton/carecheck/pkg/auth"
)

const (
	envPrefix         = "CARECHECK_"
	defaultBundlePath = "carecheck.toml"

	MinSessionTimeout      = 5 * time.Second
	MinExpirySweepInterval = 1 * time.Second
	MinBaseLockout         = 1 * time.Second
)

type Config struct {
	Server  ServerConfig
	Session SessionConfig
	Login   LoginConfig
	Admin   AdminConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	RequestsPerMin int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

type SessionConfig struct {
	IdleTimeout         time.Duration
	ExpirySweepInterval time.Duration
}

type LoginConfig struct {
	MaxFailuresBeforeLockout int
	MinimumAttemptSpacing    time.Duration
	BaseLockout              time.Duration
	MaxLockout               time.Duration
	ResetFailuresOnLockout   bool
	TimingDelayBaseMs        int
	TimingDelayRandomMs      int
	TimingDelayOnSuccess     bool
}

type AdminConfig struct {
	Username     string
	Password     string
	PasswordHash string
}

// Overrides are explicit values (command-line flags) that win over every other source.
// Nil fields are unset.
type Overrides struct {
	BundlePath               string
	Port                     *string
	SessionIdleTimeout       *time.Duration
	MaxFailuresBeforeLockout *int
	MinimumAttemptSpacing    *time.Duration
	BaseLockout              *time.Duration
	MaxLockout               *time.Duration
}

// bundle mirrors the application bundle file. Zero values mean "not set".
type bundle struct {
	Server struct {
		Port           string `toml:"port"`
		Env            string `toml:"env"`
		LogLevel       string `toml:"log_level"`
		RequestsPerMin int    `toml:"requests_per_minute"`
	} `toml:"server"`
	Session struct {
		IdleTimeout         string `toml:"idle_timeout"`
		ExpirySweepInterval string `toml:"expiry_sweep_interval"`
	} `toml:"session"`
	Login struct {
		MaxFailuresBeforeLockout int    `toml:"max_failures_before_lockout"`
		MinimumAttemptSpacing    string `toml:"minimum_attempt_spacing"`
		BaseLockout              string `toml:"base_lockout"`
		MaxLockout               string `toml:"max_lockout"`
		ResetFailuresOnLockout   *bool  `toml:"reset_failures_on_lockout"`
	} `toml:"login"`
	Admin struct {
		Username     string `toml:"username"`
		PasswordHash string `toml:"password_hash"`
	} `toml:"admin"`
}

// Load resolves configuration. Precedence, highest first: overrides, environment
// (including .env), bundle file, defaults. Durations are clamped to their floors.
func Load(overrides Overrides) (*Config, error) {
	_ = godotenv.Load()

	bundlePath := overrides.BundlePath
	if bundlePath == "" {
		bundlePath = getEnv("BUNDLE", defaultBundlePath)
	}
	b, err := loadBundle(bundlePath)
	if err != nil {
		return nil, err
	}

	env := getEnv("ENV", firstNonEmpty(b.Server.Env, "development"))

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", firstNonEmpty(b.Server.Port, "8080")),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", firstNonEmpty(b.Server.LogLevel, "info")),
			RequestsPerMin: getEnvAsInt("REQUESTS_PER_MINUTE", firstPositive(b.Server.RequestsPerMin, 30)),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Session: SessionConfig{
			IdleTimeout:         getEnvAsDuration("SESSION_IDLE_TIMEOUT", bundleDuration(b.Session.IdleTimeout, 5*time.Minute)),
			ExpirySweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", bundleDuration(b.Session.ExpirySweepInterval, 5*time.Second)),
		},
		Login: LoginConfig{
			MaxFailuresBeforeLockout: getEnvAsInt("MAX_FAILED_ATTEMPTS", firstPositive(b.Login.MaxFailuresBeforeLockout, 5)),
			MinimumAttemptSpacing:    getEnvAsDuration("ATTEMPT_SPACING", bundleDuration(b.Login.MinimumAttemptSpacing, time.Second)),
			BaseLockout:              getEnvAsDuration("BASE_LOCKOUT", bundleDuration(b.Login.BaseLockout, 30*time.Second)),
			MaxLockout:               getEnvAsDuration("MAX_LOCKOUT", bundleDuration(b.Login.MaxLockout, 15*time.Minute)),
			ResetFailuresOnLockout:   getEnvAsBool("RESET_FAILURES_ON_LOCKOUT", boolOr(b.Login.ResetFailuresOnLockout, true)),
			TimingDelayBaseMs:        getEnvAsInt("TIMING_DELAY_BASE_MS", 250),
			TimingDelayRandomMs:      getEnvAsInt("TIMING_DELAY_RANDOM_MS", 100),
			TimingDelayOnSuccess:     getEnvAsBool("TIMING_DELAY_ON_SUCCESS", false),
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", b.Admin.Username),
			Password:     getEnv("ADMIN_PASSWORD", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", b.Admin.PasswordHash),
		},
	}

	overrides.apply(cfg)
	cfg.clamp()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o Overrides) apply(cfg *Config) {
	if o.Port != nil {
		cfg.Server.Port = *o.Port
	}
	if o.SessionIdleTimeout != nil {
		cfg.Session.IdleTimeout = *o.SessionIdleTimeout
	}
	if o.MaxFailuresBeforeLockout != nil {
		cfg.Login.MaxFailuresBeforeLockout = *o.MaxFailuresBeforeLockout
	}
	if o.MinimumAttemptSpacing != nil {
		cfg.Login.MinimumAttemptSpacing = *o.MinimumAttemptSpacing
	}
	if o.BaseLockout != nil {
		cfg.Login.BaseLockout = *o.BaseLockout
	}
	if o.MaxLockout != nil {
		cfg.Login.MaxLockout = *o.MaxLockout
	}
}

// clamp keeps a bad value from producing a useless session or an unbounded lockout
func (c *Config) clamp() {
	if c.Session.IdleTimeout < MinSessionTimeout {
		c.Session.IdleTimeout = MinSessionTimeout
	}
	if c.Session.ExpirySweepInterval < MinExpirySweepInterval {
		c.Session.ExpirySweepInterval = MinExpirySweepInterval
	}
	if c.Login.MaxFailuresBeforeLockout < 1 {
		c.Login.MaxFailuresBeforeLockout = 1
	}
	if c.Login.MinimumAttemptSpacing < 0 {
		c.Login.MinimumAttemptSpacing = 0
	}
	if c.Login.BaseLockout < MinBaseLockout {
		c.Login.BaseLockout = MinBaseLockout
	}
	if c.Login.MaxLockout < c.Login.BaseLockout {
		c.Login.MaxLockout = c.Login.BaseLockout
	}
	if c.Server.RequestsPerMin < 1 {
		c.Server.RequestsPerMin = 1
	}
}

// validate fails closed: without an admin credential nothing can be unlocked
func (c *Config) validate() error {
	if c.Admin.Username == "" {
		return fmt.Errorf("%sADMIN_USERNAME is required", envPrefix)
	}
	if c.Admin.Password == "" && c.Admin.PasswordHash == "" {
		return fmt.Errorf("%sADMIN_PASSWORD or %sADMIN_PASSWORD_HASH is required", envPrefix, envPrefix)
	}
	if c.Admin.PasswordHash != "" && !pkgauth.IsPasswordHash(c.Admin.PasswordHash) {
		return fmt.Errorf("invalid admin password hash: %w", pkgauth.ErrMalformedHash)
	}
	if c.Admin.PasswordHash == "" && c.Server.Env == "production" {
		if err := pkgauth.ValidatePassword(c.Admin.Password); err != nil {
			return fmt.Errorf("weak admin password: %w", err)
		}
	}
	return nil
}

func loadBundle(path string) (*bundle, error) {
	var b bundle
	if _, err := toml.DecodeFile(path, &b); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &b, nil
		}
		return nil, fmt.Errorf("failed to read bundle config %s: %w", path, err)
	}
	if err := b.checkDurations(); err != nil {
		return nil, fmt.Errorf("invalid bundle config %s: %w", path, err)
	}
	return &b, nil
}

// checkDurations rejects duration strings that do not parse. Empty means unset.
func (b *bundle) checkDurations() error {
	fields := []struct {
		key   string
		value string
	}{
		{"session.idle_timeout", b.Session.IdleTimeout},
		{"session.expiry_sweep_interval", b.Session.ExpirySweepInterval},
		{"login.minimum_attempt_spacing", b.Login.MinimumAttemptSpacing},
		{"login.base_lockout", b.Login.BaseLockout},
		{"login.max_lockout", b.Login.MaxLockout},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if _, err := time.ParseDuration(f.value); err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(envPrefix + key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(envPrefix + key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(envPrefix + key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// bundleDuration reads a duration already checked by checkDurations
func bundleDuration(value string, defaultVal time.Duration) time.Duration {
	if value == "" {
		return defaultVal
	}
	d, _ := time.ParseDuration(value)
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func boolOr(v *bool, defaultVal bool) bool {
	if v == nil {
		return defaultVal
	}
	return *v
}
