package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/apitoken"
	"github.com/MrEthical07/authcore/middleware"
)

const maxTokenRequestBody = 4 << 10

type issueTokenRequest struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

type issueTokenResponse struct {
	Token string          `json:"token"`
	Info  apitoken.Record `json:"info"`
}

type securityView struct {
	ProductionMode   bool     `json:"production_mode"`
	SigningAlgorithm string   `json:"signing_algorithm"`
	AsymmetricKeys   bool     `json:"asymmetric_keys"`
	AccessTTL        string   `json:"access_ttl"`
	RefreshTTL       string   `json:"refresh_ttl"`
	ClockSkew        string   `json:"clock_skew"`
	PasswordCost     int      `json:"password_cost"`
	AuditEnabled     bool     `json:"audit_enabled"`
	MetricsEnabled   bool     `json:"metrics_enabled"`
	Warnings         []string `json:"warnings"`
}

// sessionIdentity reads subject and role from the access token claims.
func sessionIdentity(r *http.Request) (subject, role string, ok bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return "", "", false
	}
	subject, _ = claims[authcore.ClaimSubject].(string)
	role, _ = claims[authcore.ClaimRole].(string)
	return subject, role, subject != ""
}

// issueToken mints an API token for the caller with the caller's role. An
// empty body selects the default lifetime.
func (a *app) issueToken(w http.ResponseWriter, r *http.Request) {
	subject, role, ok := sessionIdentity(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req issueTokenRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTokenRequestBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TTLSeconds < 0 {
		http.Error(w, "ttl_seconds must be >= 0", http.StatusBadRequest)
		return
	}

	token, rec, err := a.tokens.Issue(r.Context(), subject, role, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		a.logger.Error("api token issue failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, issueTokenResponse{Token: token, Info: rec})
}

func (a *app) listTokens(w http.ResponseWriter, r *http.Request) {
	subject, _, ok := sessionIdentity(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	records, err := a.tokens.List(r.Context(), subject)
	if err != nil {
		a.logger.Error("api token list failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// revokeToken only revokes tokens owned by the caller. Foreign and unknown
// ids both answer 404.
func (a *app) revokeToken(w http.ResponseWriter, r *http.Request) {
	subject, _, ok := sessionIdentity(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := mux.Vars(r)["id"]

	records, err := a.tokens.List(r.Context(), subject)
	if err != nil {
		a.logger.Error("api token list failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	owned := slices.ContainsFunc(records, func(rec apitoken.Record) bool { return rec.ID == id })
	if !owned {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if err := a.tokens.Revoke(r.Context(), id); err != nil {
		a.logger.Error("api token revoke failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// whoami reports the caller for either credential kind.
func (a *app) whoami(w http.ResponseWriter, r *http.Request) {
	if rec, ok := middleware.APITokenFromContext(r.Context()); ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"kind":     "api_token",
			"sub":      rec.Subject,
			"role":     rec.Role,
			"token_id": rec.ID,
		})
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"kind": "access_token",
		"sub":  claims[authcore.ClaimSubject],
		"role": claims[authcore.ClaimRole],
		"sid":  claims[authcore.ClaimSessionID],
	})
}

func (a *app) securityReport(w http.ResponseWriter, _ *http.Request) {
	rep := a.engine.SecurityReport()
	warnings := rep.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, securityView{
		ProductionMode:   rep.ProductionMode,
		SigningAlgorithm: rep.SigningAlgorithm,
		AsymmetricKeys:   rep.AsymmetricKeys,
		AccessTTL:        rep.AccessTTL.String(),
		RefreshTTL:       rep.RefreshTTL.String(),
		ClockSkew:        rep.ClockSkew.String(),
		PasswordCost:     rep.PasswordCost,
		AuditEnabled:     rep.AuditEnabled,
		MetricsEnabled:   rep.MetricsEnabled,
		Warnings:         warnings,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
