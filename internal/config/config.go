// Package config loads the service's environment-variable configuration:
// a Config struct plus ApplyDefaults, validate, and LogEffectiveValues
// steps, bound from the environment via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bentoauthz/internal/constants"
	"bentoauthz/internal/logging"
)

// Superuser is a bootstrap subject that implicitly holds every permission,
// configured out-of-band rather than granted through the store — this is
// how the self-referential "who may call edit:permissions first" problem
// is broken.
type Superuser struct {
	Issuer  string `mapstructure:"iss"`
	Subject string `mapstructure:"sub"`
}

// Config holds all process configuration, bound from environment
// variables.
type Config struct {
	Port     int    `mapstructure:"port"`
	DatabaseURI string `mapstructure:"database_uri"`

	OpenIDConfigURL          string        `mapstructure:"openid_config_url"`
	TokenAudience            []string      `mapstructure:"token_audience"`
	DisableTokenVerification bool          `mapstructure:"disable_token_verification"`
	ClockLeeway              time.Duration `mapstructure:"clock_leeway"`
	JWKSTTL                  time.Duration `mapstructure:"jwks_ttl"`

	Debug            bool     `mapstructure:"debug"`
	AuthzServiceURL  string   `mapstructure:"authz_service_url"`
	CORSOrigins      []string `mapstructure:"cors_origins"`
	Superusers       []Superuser

	DBMaxOpenConns int           `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns int           `mapstructure:"db_max_idle_conns"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Load reads configuration from environment variables via viper's
// automatic env lookup, applies defaults, and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bind(v, "port", constants.EnvPort)
	bind(v, "database_uri", constants.EnvDatabaseURI)
	bind(v, "openid_config_url", constants.EnvOpenIDConfigURL)
	bind(v, "token_audience", constants.EnvTokenAudience)
	bind(v, "disable_token_verification", constants.EnvDisableTokenVerification)
	bind(v, "debug", constants.EnvBentoDebug)
	bind(v, "authz_service_url", constants.EnvBentoAuthzServiceURL)
	bind(v, "cors_origins", constants.EnvCORSOrigins)

	cfg := &Config{
		Port:                      v.GetInt("port"),
		DatabaseURI:               v.GetString("database_uri"),
		OpenIDConfigURL:           v.GetString("openid_config_url"),
		TokenAudience:             splitCSV(v.GetString("token_audience")),
		DisableTokenVerification:  v.GetBool("disable_token_verification"),
		Debug:                     v.GetBool("debug"),
		AuthzServiceURL:           v.GetString("authz_service_url"),
		CORSOrigins:               splitCSV(v.GetString("cors_origins")),
	}

	superusers, err := parseSuperusers(rawEnv(constants.EnvBentoAuthzSuperusers))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", constants.EnvBentoAuthzSuperusers, err)
	}
	cfg.Superusers = superusers

	cfg.ApplyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bind(v *viper.Viper, key, env string) {
	_ = v.BindEnv(key, env)
}

// ApplyDefaults fills zero-valued fields with constant defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.Port == 0 {
		cfg.Port = constants.DefaultPort
	}
	if cfg.ClockLeeway == 0 {
		cfg.ClockLeeway = constants.DefaultClockLeeway
	}
	if cfg.JWKSTTL == 0 {
		cfg.JWKSTTL = constants.DefaultJWKSTTL
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = constants.DefaultDBMaxOpenConns
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = constants.DefaultDBMaxIdleConns
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = constants.DefaultRequestTimeout
	}
}

// validate checks that all configurable values are within acceptable
// ranges, accumulating every violation rather than failing on the first
// one.
func (cfg *Config) validate() error {
	var errs []string

	if cfg.DatabaseURI == "" {
		errs = append(errs, "database_uri (DATABASE_URI) must be set")
	}
	if !cfg.DisableTokenVerification && cfg.OpenIDConfigURL == "" {
		errs = append(errs, "openid_config_url (OPENID_CONFIG_URL) must be set unless DISABLE_TOKEN_VERIFICATION is true")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	if cfg.ClockLeeway < 0 {
		errs = append(errs, "clock_leeway must be >= 0")
	}
	if cfg.JWKSTTL < time.Second {
		errs = append(errs, "jwks_ttl must be >= 1s")
	}
	if cfg.DBMaxOpenConns < 1 {
		errs = append(errs, "db_max_open_conns must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogEffectiveValues logs all effective configuration values at startup,
// redacting the database URI since it carries credentials.
func (cfg *Config) LogEffectiveValues(log *logging.Logger) {
	log.Info("config: port=%d", cfg.Port)
	log.Info("config: database_uri=%s", redactURI(cfg.DatabaseURI))
	log.Info("config: openid_config_url=%s", cfg.OpenIDConfigURL)
	log.Info("config: token_audience=%v", cfg.TokenAudience)
	log.Info("config: disable_token_verification=%v", cfg.DisableTokenVerification)
	log.Info("config: clock_leeway=%s", cfg.ClockLeeway)
	log.Info("config: jwks_ttl=%s", cfg.JWKSTTL)
	log.Info("config: debug=%v", cfg.Debug)
	log.Info("config: cors_origins=%v", cfg.CORSOrigins)
	log.Info("config: superusers=%d configured", len(cfg.Superusers))
	log.Info("config: db_max_open_conns=%d", cfg.DBMaxOpenConns)
	log.Info("config: request_timeout=%s", cfg.RequestTimeout)
}

// IsSuperuser reports whether (iss, sub) is on the bootstrap superuser
// list.
func (cfg *Config) IsSuperuser(iss, sub string) bool {
	for _, su := range cfg.Superusers {
		if su.Issuer == iss && su.Subject == sub {
			return true
		}
	}
	return false
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func redactURI(uri string) string {
	if uri == "" {
		return ""
	}
	at := strings.LastIndex(uri, "@")
	scheme := strings.Index(uri, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return uri
	}
	return uri[:scheme+3] + "***" + uri[at:]
}
