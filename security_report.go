package authcore

import "github.com/MrEthical07/authcore/internal/security"

// SecurityReport describes the configuration the engine was built with.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	r := security.BuildReport(security.ReportInput{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: e.config.JWT.Algorithm,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		ClockSkew:        e.config.JWT.ClockSkew,
		PasswordCost:     e.hasher.Cost(),
		AuditEnabled:     e.config.Audit.Enabled,
		MetricsEnabled:   e.config.Metrics.Enabled,
	})

	return SecurityReport{
		ProductionMode:   r.ProductionMode,
		SigningAlgorithm: r.SigningAlgorithm,
		AsymmetricKeys:   r.AsymmetricKeys,
		AccessTTL:        r.AccessTTL,
		RefreshTTL:       r.RefreshTTL,
		ClockSkew:        r.ClockSkew,
		PasswordCost:     r.PasswordCost,
		AuditEnabled:     r.AuditEnabled,
		MetricsEnabled:   r.MetricsEnabled,
		Warnings:         r.Warnings,
	}
}
