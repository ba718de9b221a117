package tenantauth

import (
	"errors"
	"time"

	"github.com/hexleaf/tenantauth/password"
)

// Config is the full engine configuration. Built once, validated at
// startup, treated as immutable afterwards.
type Config struct {
	JWT          JWTConfig
	Session      SessionConfig
	Password     PasswordConfig
	Lockout      LockoutConfig
	Registration RegistrationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
	Security     SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
	Policy         password.Policy
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls the failed-login attempt tracker. The lockout
// window runs from the most recent failure.
type LockoutConfig struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

type RegistrationConfig struct {
	Enabled            bool
	MaxAttemptsPerMail int
	MaxAttemptsPerIP   int
	ThrottleWindow     time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

type SecurityConfig struct {
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     5 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
		},
		Session: SessionConfig{
			RedisPrefix: "ta:sess",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
			Policy:         password.DefaultPolicy(),
		},
		Lockout: LockoutConfig{
			MaxAttempts:     5,
			LockoutDuration: 15 * time.Minute,
		},
		Registration: RegistrationConfig{
			Enabled:            true,
			MaxAttemptsPerMail: 5,
			MaxAttemptsPerIP:   20,
			ThrottleWindow:     15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode: false,
		},
	}
}

// DevelopmentConfig returns a preset suitable for local work: hs256
// with a caller-supplied secret, short lockouts, audit off.
func DevelopmentConfig(signingSecret []byte) Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = cloneBytes(signingSecret)
	cfg.Lockout.LockoutDuration = time.Minute
	return cfg
}

// ProductionConfig returns a preset with production gates enabled.
// Signing keys still have to be supplied by the caller.
func ProductionConfig() Config {
	cfg := defaultConfig()
	cfg.Security.ProductionMode = true
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for fatal mistakes. It is called by
// the builder; a failing config never produces a running engine.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}

	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}

	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
		return errors.New("ed25519 requires PublicKey or VerifyKeys")
	}
	if c.JWT.SigningMethod == "hs256" {
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 key must be >= 256 bits")
		}
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.Policy.MaxLength > 0 && c.Password.Policy.MinLength > c.Password.Policy.MaxLength {
		return errors.New("Password Policy MinLength exceeds MaxLength")
	}

	// Lockout
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.LockoutDuration <= 0 {
		return errors.New("Lockout LockoutDuration must be > 0")
	}

	// Registration
	if c.Registration.Enabled {
		if c.Registration.MaxAttemptsPerMail <= 0 {
			return errors.New("Registration MaxAttemptsPerMail must be > 0")
		}
		if c.Registration.MaxAttemptsPerIP <= 0 {
			return errors.New("Registration MaxAttemptsPerIP must be > 0")
		}
		if c.Registration.ThrottleWindow <= 0 {
			return errors.New("Registration ThrottleWindow must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires JWT AccessTTL <= 15m")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if c.Password.Policy.MinLength < 10 {
			return errors.New("ProductionMode requires Password Policy MinLength >= 10")
		}
		if !c.Password.UpgradeOnLogin {
			return errors.New("ProductionMode requires Password UpgradeOnLogin")
		}
	}

	return nil
}
