package voicegrant

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/voicegrant/token"
)

// TokenTTL is the fixed validity window of every issued token.
const TokenTTL = 3600 * time.Second

// Config defines a public type used by voicegrant APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Keys      KeyMaterial     `yaml:"keys"`
	Token     TokenConfig     `yaml:"token"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Security  SecurityConfig  `yaml:"security"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// JTIMode selects how the jti claim is derived.
type JTIMode string

const (
	// JTIPerSecond derives jti from the key id and the issuance second.
	// Tokens issued for the same key within one second share a jti.
	JTIPerSecond JTIMode = "per_second"
	// JTIRandom appends a random UUID so every token has a distinct jti.
	JTIRandom JTIMode = "random"
)

// TokenConfig controls claim construction and verification.
type TokenConfig struct {
	// ContentType is the cty header tag naming the grant schema version.
	ContentType string  `yaml:"content_type"`
	JTIMode     JTIMode `yaml:"jti_mode"`
	// VerifyLeeway is the clock-skew allowance applied by Verify.
	VerifyLeeway time.Duration `yaml:"verify_leeway"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig caps issuance per identity and per client IP. It requires
// a Redis client on the Builder when Enabled.
type RateLimitConfig struct {
	Enabled          bool          `yaml:"enabled"`
	RedisPrefix      string        `yaml:"redis_prefix"`
	MaxPerIdentity   int           `yaml:"max_per_identity"`
	IdentityWindow   time.Duration `yaml:"identity_window"`
	EnableIPThrottle bool          `yaml:"enable_ip_throttle"`
	MaxPerIP         int           `yaml:"max_per_ip"`
	IPWindow         time.Duration `yaml:"ip_window"`
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig defines a public type used by voicegrant APIs.
type AuditConfig struct {
	Enabled     bool          `yaml:"enabled"`
	BufferSize  int           `yaml:"buffer_size"`
	DropIfFull  bool          `yaml:"drop_if_full"`
	SinkTimeout time.Duration `yaml:"sink_timeout"`
}

// MetricsConfig defines a public type used by voicegrant APIs.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// SecurityConfig holds deployment-sensitivity switches.
type SecurityConfig struct {
	// ExposeInternalErrors returns internal failure text to HTTP callers.
	// Only for non-sensitive deployments.
	ExposeInternalErrors bool `yaml:"expose_internal_errors"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a Config with every tunable set. Key material is
// left empty and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			ContentType:  token.ContentTypeVoiceV1,
			JTIMode:      JTIPerSecond,
			VerifyLeeway: 0,
		},
		RateLimit: RateLimitConfig{
			Enabled:          false,
			RedisPrefix:      "vg",
			MaxPerIdentity:   30,
			IdentityWindow:   time.Minute,
			EnableIPThrottle: false,
			MaxPerIP:         120,
			IPWindow:         time.Minute,
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 0,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ExposeInternalErrors: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks tunables. Key material is deliberately not checked here:
// Issue reports incomplete keys as ErrMisconfigured per request, so a
// process started without keys still answers with a misconfiguration error.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token.ContentType) == "" {
		return errors.New("Token ContentType must be set")
	}
	if c.Token.JTIMode != JTIPerSecond && c.Token.JTIMode != JTIRandom {
		return errors.New("unsupported Token JTIMode")
	}
	if c.Token.VerifyLeeway < 0 || c.Token.VerifyLeeway > 2*time.Minute {
		return errors.New("Token VerifyLeeway must be within [0, 2m]")
	}

	if c.RateLimit.Enabled {
		if strings.TrimSpace(c.RateLimit.RedisPrefix) == "" {
			return errors.New("RateLimit RedisPrefix must be set when rate limiting is enabled")
		}
		if c.RateLimit.MaxPerIdentity <= 0 {
			return errors.New("RateLimit MaxPerIdentity must be > 0")
		}
		if c.RateLimit.IdentityWindow <= 0 {
			return errors.New("RateLimit IdentityWindow must be > 0")
		}
		if c.RateLimit.EnableIPThrottle {
			if c.RateLimit.MaxPerIP <= 0 {
				return errors.New("RateLimit MaxPerIP must be > 0 when IP throttle is enabled")
			}
			if c.RateLimit.IPWindow <= 0 {
				return errors.New("RateLimit IPWindow must be > 0 when IP throttle is enabled")
			}
		}
	}

	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
		if c.Audit.SinkTimeout < 0 {
			return errors.New("Audit SinkTimeout must be >= 0")
		}
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
