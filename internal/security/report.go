package security

import (
	"strings"
	"time"
)

type Report struct {
	ProductionMode   bool
	SigningAlgorithm string
	AsymmetricKeys   bool
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ClockSkew        time.Duration
	PasswordCost     int
	AuditEnabled     bool
	MetricsEnabled   bool
	Warnings         []string
}

type ReportInput struct {
	ProductionMode   bool
	SigningAlgorithm string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ClockSkew        time.Duration
	PasswordCost     int
	AuditEnabled     bool
	MetricsEnabled   bool
}

// BuildReport derives the report and its posture warnings from input.
func BuildReport(input ReportInput) Report {
	r := Report{
		ProductionMode:   input.ProductionMode,
		SigningAlgorithm: strings.ToUpper(input.SigningAlgorithm),
		AsymmetricKeys:   strings.HasPrefix(strings.ToUpper(input.SigningAlgorithm), "RS"),
		AccessTTL:        input.AccessTTL,
		RefreshTTL:       input.RefreshTTL,
		ClockSkew:        input.ClockSkew,
		PasswordCost:     input.PasswordCost,
		AuditEnabled:     input.AuditEnabled,
		MetricsEnabled:   input.MetricsEnabled,
	}

	if !r.ProductionMode {
		r.Warnings = append(r.Warnings, "production_mode_disabled")
	}
	if !r.AsymmetricKeys {
		r.Warnings = append(r.Warnings, "shared_secret_signing")
	}
	if input.AccessTTL > 15*time.Minute {
		r.Warnings = append(r.Warnings, "long_access_ttl")
	}
	if input.ClockSkew > time.Minute {
		r.Warnings = append(r.Warnings, "large_clock_skew")
	}
	if input.PasswordCost < 12 {
		r.Warnings = append(r.Warnings, "low_password_cost")
	}
	if !input.AuditEnabled {
		r.Warnings = append(r.Warnings, "audit_disabled")
	}

	return r
}
