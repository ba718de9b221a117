package tenantauth

// SecurityReport returns a read-only summary of the engine's active
// security posture. Safe to expose on an admin or health endpoint; it
// never contains key material.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		LockoutThreshold: e.config.Lockout.MaxAttempts,
		LockoutDuration:  e.config.Lockout.LockoutDuration,
		AuditEnabled:     e.config.Audit.Enabled,
		MetricsEnabled:   e.config.Metrics.Enabled,
	}
}
