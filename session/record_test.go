package session

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Decode([]byte(`{"v":99,"sub":"u","iat":1,"exp":2}`))
	if !errors.Is(err, ErrCorruptRecord) || !strings.Contains(err.Error(), "unsupported session schema version") {
		t.Fatalf("expected unsupported schema version error, got %v", err)
	}
}

func TestDecodeRejectsInvalidBlobs(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"not json":       `sid`,
		"no version":     `{"sub":"u","iat":1,"exp":2}`,
		"no subject":     `{"v":1,"iat":1,"exp":2}`,
		"expiry reverse": `{"v":1,"sub":"u","iat":5,"exp":2}`,
		"wrong type":     `{"v":1,"sub":7,"iat":1,"exp":2}`,
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(blob)); !errors.Is(err, ErrCorruptRecord) {
				t.Fatalf("expected ErrCorruptRecord, got %v", err)
			}
		})
	}
}

func TestEncodeOmitsSecrets(t *testing.T) {
	rec := testRecord("sid-secret")
	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(string(data), "sid-secret") {
		t.Fatal("session id must not be part of the blob")
	}
	if !strings.HasPrefix(string(data), `{"v":1,`) {
		t.Fatalf("unexpected wire form: %s", data)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RefreshHash != ([32]byte{}) || got.SessionID != "" {
		t.Fatal("decode must not populate externally stored fields")
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	rec := testRecord("sid")
	rec.Role = strings.Repeat("r", maxFieldLen+1)
	if _, err := Encode(rec); err == nil {
		t.Fatal("expected error for oversized role")
	}
	if _, err := Encode(nil); err == nil {
		t.Fatal("expected error for nil record")
	}
}
