package voicegrant

import (
	"errors"
	"time"

	"github.com/MrEthical07/voicegrant/internal/audit"
	"github.com/MrEthical07/voicegrant/internal/rate"
	"github.com/MrEthical07/voicegrant/token"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder defines a public type used by voicegrant APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	auditSink AuditSink
	logger    *zerolog.Logger
	now       func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration, key material included.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithKeys sets only the key material, leaving tunables untouched.
func (b *Builder) WithKeys(keys KeyMaterial) *Builder {
	b.config.Keys = keys
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// The client backs the issuance rate limiter and is required when
// RateLimit.Enabled is set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the Engine logger. The default discards everything.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithClock overrides the issuance clock. Tests use it to pin issuedAt.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when tunables are invalid or a required
// dependency is missing. Incomplete key material is not a Build error: the
// Engine is returned and Issue reports ErrMisconfigured until restarted with
// keys.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("RateLimit requires redis client")
	}

	engine := &Engine{
		config:  cfg,
		metrics: NewMetrics(cfg.Metrics),
		logger:  zerolog.Nop(),
		now:     time.Now,
		newUUID: uuid.NewRandom,
	}
	if b.logger != nil {
		engine.logger = *b.logger
	}
	if b.now != nil {
		engine.now = b.now
	}

	if cfg.Keys.Complete() {
		secret := []byte(cfg.Keys.Secret)

		signer, err := token.NewSigner(secret)
		if err != nil {
			return nil, err
		}
		engine.signer = signer

		verifier, err := token.NewVerifier(token.VerifierConfig{
			Secret:      secret,
			Issuer:      cfg.Keys.KeyID,
			Subject:     cfg.Keys.AccountID,
			ContentType: cfg.Token.ContentType,
			Leeway:      cfg.Token.VerifyLeeway,
			Now:         engine.now,
		})
		if err != nil {
			return nil, err
		}
		engine.verifier = verifier
	} else {
		engine.logger.Warn().Object("keys", cfg.Keys).Msg("key material incomplete, issuance will fail")
	}

	if cfg.RateLimit.Enabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:           cfg.RateLimit.RedisPrefix,
			MaxPerIdentity:   cfg.RateLimit.MaxPerIdentity,
			IdentityWindow:   cfg.RateLimit.IdentityWindow,
			EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
			MaxPerIP:         cfg.RateLimit.MaxPerIP,
			IPWindow:         cfg.RateLimit.IPWindow,
		})
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
