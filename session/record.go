package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is written by Encode. Decode rejects anything else.
const CurrentSchemaVersion uint8 = 1

const maxFieldLen = 1024

// ErrCorruptRecord is returned when a stored blob cannot be decoded.
var ErrCorruptRecord = errors.New("session record corrupt")

// Record is one gateway login session.
type Record struct {
	SessionID string
	Subject   string
	Role      string
	// Profile holds the non-secret ID token claims shown by the index view.
	Profile map[string]any
	// RefreshHash is the fingerprint of the refresh token currently valid for
	// this session.
	RefreshHash [32]byte

	CreatedAt int64
	ExpiresAt int64

	SchemaVersion uint8
}

// wire form; SessionID and RefreshHash are stored elsewhere
type recordV1 struct {
	Version   uint8          `json:"v"`
	Subject   string         `json:"sub"`
	Role      string         `json:"role"`
	Profile   map[string]any `json:"profile,omitempty"`
	CreatedAt int64          `json:"iat"`
	ExpiresAt int64          `json:"exp"`
}

// Encode serializes r at the current schema version.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil session record")
	}
	if r.Subject == "" {
		return nil, errors.New("session subject is empty")
	}
	if len(r.Subject) > maxFieldLen {
		return nil, errors.New("session subject too long")
	}
	if len(r.Role) > maxFieldLen {
		return nil, errors.New("session role too long")
	}
	if r.ExpiresAt < r.CreatedAt {
		return nil, errors.New("session expires before it was created")
	}

	return json.Marshal(recordV1{
		Version:   CurrentSchemaVersion,
		Subject:   r.Subject,
		Role:      r.Role,
		Profile:   r.Profile,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	})
}

// Decode parses a blob produced by Encode. SessionID and RefreshHash are left
// zero.
func Decode(data []byte) (*Record, error) {
	var probe struct {
		Version *uint8 `json:"v"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if probe.Version == nil {
		return nil, fmt.Errorf("%w: missing schema version", ErrCorruptRecord)
	}

	switch *probe.Version {
	case 1:
		var w recordV1
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		if w.Subject == "" || w.ExpiresAt < w.CreatedAt || len(w.Subject) > maxFieldLen || len(w.Role) > maxFieldLen {
			return nil, fmt.Errorf("%w: invalid fields", ErrCorruptRecord)
		}
		return &Record{
			Subject:       w.Subject,
			Role:          w.Role,
			Profile:       w.Profile,
			CreatedAt:     w.CreatedAt,
			ExpiresAt:     w.ExpiresAt,
			SchemaVersion: w.Version,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported session schema version %d", ErrCorruptRecord, *probe.Version)
	}
}
