package tenantauth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hexleaf/tenantauth/internal/lockout"
	"github.com/hexleaf/tenantauth/internal/regthrottle"
	"github.com/hexleaf/tenantauth/jwt"
	"github.com/hexleaf/tenantauth/password"
	"github.com/hexleaf/tenantauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it with the With* methods,
// then call Build exactly once.
type Builder struct {
	config Config
	redis  *redis.Client

	directory DirectoryProvider
	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration. The config is cloned;
// later mutation of cfg by the caller has no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client used for sessions, lockout counters,
// and registration throttling. Required.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithDirectory sets the identity/organization/membership store.
// Required.
func (b *Builder) WithDirectory(provider DirectoryProvider) *Builder {
	b.directory = provider
	return b
}

// WithLogger sets the structured logger. Defaults to a discard logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the destination for audit events. Only consulted
// when Audit.Enabled is set in the config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine's time source. Tests only.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled toggles the in-process metrics counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the authorize-latency histogram.
// Implies nothing unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the components together, and
// returns a ready [Engine]. A Builder can only build once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.directory == nil {
		return nil, errors.New("directory provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           clock,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	engine := &Engine{
		config:       cfg,
		logger:       logger,
		clock:        clock,
		directory:    b.directory,
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix, clock),
		lockout:      lockout.NewTracker(b.redis, cfg.Lockout.MaxAttempts, cfg.Lockout.LockoutDuration, ""),
		regThrottle:  regthrottle.NewThrottle(b.redis, cfg.Registration.MaxAttemptsPerMail, cfg.Registration.MaxAttemptsPerIP, cfg.Registration.ThrottleWindow, ""),
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
		hasher:       hasher,
		jwtManager:   jwtManager,
	}

	b.built = true
	return engine, nil
}
