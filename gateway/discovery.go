package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrDiscovery matches every failure of Discover.
var ErrDiscovery = errors.New("provider discovery failed")

const (
	discoveryPath    = "/.well-known/openid-configuration"
	maxDiscoveryBody = 1 << 20
)

// Metadata is the subset of OpenID provider metadata the gateway uses.
type Metadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
	// EndSessionEndpoint is optional. Auth0 tenants without RP-initiated
	// logout leave it empty.
	EndSessionEndpoint string `json:"end_session_endpoint,omitempty"`
}

// Discover fetches <issuer>/.well-known/openid-configuration and checks that
// the advertised issuer matches and every required endpoint is an absolute
// URL. client defaults to http.DefaultClient.
func Discover(ctx context.Context, issuer string, client *http.Client) (*Metadata, error) {
	if client == nil {
		client = http.DefaultClient
	}

	endpoint := strings.TrimRight(issuer, "/") + discoveryPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrDiscovery, endpoint, resp.StatusCode)
	}

	var meta Metadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDiscoveryBody)).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrDiscovery, err)
	}
	if err := meta.validate(issuer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	return &meta, nil
}

func (m *Metadata) validate(issuer string) error {
	if strings.TrimRight(m.Issuer, "/") != strings.TrimRight(issuer, "/") {
		return fmt.Errorf("issuer mismatch: got %q, want %q", m.Issuer, issuer)
	}

	required := map[string]string{
		"authorization_endpoint": m.AuthorizationEndpoint,
		"token_endpoint":         m.TokenEndpoint,
		"jwks_uri":               m.JWKSURI,
	}
	for name, value := range required {
		if !absoluteURL(value) {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
	}
	if m.EndSessionEndpoint != "" && !absoluteURL(m.EndSessionEndpoint) {
		return errors.New("end_session_endpoint must be an absolute URL")
	}
	return nil
}

func absoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
