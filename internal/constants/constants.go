// Package constants centralizes the tunables and fixed names used across
// the service, following the same grab-bag-of-named-values convention as
// the rest of the codebase.
package constants

import "time"

const (
	AppName        = "bentoauthz"
	AppDisplayName = "Bento Authorization Service"
)

// HTTP server defaults.
const (
	DefaultPort           = 8080
	DefaultRequestTimeout = 10 * time.Second
	ShutdownTimeoutSecs   = 10
	DefaultPageSize       = 50
	MaxPageSize           = 500
)

// Token verification defaults.
const (
	DefaultClockLeeway  = 30 * time.Second
	DefaultJWKSTTL      = 10 * time.Minute
	DefaultAllowedAlgs  = "RS256,ES256"
	JWKSFetchConnect    = 5 * time.Second
	JWKSFetchTotal      = 10 * time.Second
)

// Store defaults.
const (
	DefaultDBMaxOpenConns = 10
	DefaultDBMaxIdleConns = 10
)

// Retry policy for transient upstream failures (StoreUnavailable,
// IssuerUnreachable) per the error-handling design: two attempts,
// exponential backoff.
const (
	RetryMaxAttempts = 2
)

var RetryBackoff = []time.Duration{200 * time.Millisecond, 800 * time.Millisecond}

// Logging defaults.
const (
	DefaultLogLevel        = "info"
	LogTimestampFormat     = time.RFC3339
)

// Environment variable keys recognized by configuration binding.
const (
	EnvDatabaseURI               = "DATABASE_URI"
	EnvOpenIDConfigURL           = "OPENID_CONFIG_URL"
	EnvTokenAudience             = "TOKEN_AUDIENCE"
	EnvDisableTokenVerification  = "DISABLE_TOKEN_VERIFICATION"
	EnvBentoDebug                = "BENTO_DEBUG"
	EnvBentoAuthzServiceURL      = "BENTO_AUTHZ_SERVICE_URL"
	EnvCORSOrigins               = "CORS_ORIGINS"
	EnvBentoAuthzSuperusers      = "BENTO_AUTHZ_SUPERUSERS"
	EnvPort                      = "PORT"
)

// Bootstrap / self-referential permissions.
const (
	PermissionEditPermissions = "edit:permissions"
	PermissionEditGroups      = "edit:groups"
)

// HeaderAuthorization and friends mirror the HTTP header name constants the
// rest of the corpus keeps alongside other wire-format constants.
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderRequestID     = "X-Request-ID"
	BearerPrefix        = "Bearer "
	ContentTypeJSON     = "application/json"
)
