package internal

import (
	"strings"
	"testing"
)

func TestAPITokenRoundTrip(t *testing.T) {
	secret, err := NewAPISecret()
	if err != nil {
		t.Fatalf("NewAPISecret: %v", err)
	}
	token := EncodeAPIToken("01HZX3Q9F0B7N3V6W8Y2K4M5P7", secret)
	if !strings.HasPrefix(token, APITokenPrefix) {
		t.Fatalf("token %q lacks prefix", token)
	}

	id, got, err := DecodeAPIToken(token)
	if err != nil {
		t.Fatalf("DecodeAPIToken: %v", err)
	}
	if id != "01HZX3Q9F0B7N3V6W8Y2K4M5P7" || got != secret {
		t.Fatalf("decoded (%q, %q), want (%q, %q)", id, got, "01HZX3Q9F0B7N3V6W8Y2K4M5P7", secret)
	}
}

func TestDecodeAPITokenRejectsMalformed(t *testing.T) {
	secret, err := NewAPISecret()
	if err != nil {
		t.Fatalf("NewAPISecret: %v", err)
	}
	cases := []string{
		"",
		"01HZX_" + secret,
		"act_",
		"act_id",
		"act__" + secret,
		"act_id_",
		"act_id_short",
		"act_id_" + secret + "x",
	}
	for _, tc := range cases {
		if _, _, err := DecodeAPIToken(tc); err == nil {
			t.Fatalf("expected %q to be rejected", tc)
		}
	}
}

func TestRandomValuesDiffer(t *testing.T) {
	a, err := NewState()
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	b, err := NewState()
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct state values")
	}
	if len(a) != 43 {
		t.Fatalf("state length = %d, want 43", len(a))
	}
}

func TestFingerprintIsStable(t *testing.T) {
	if Fingerprint("token") != Fingerprint("token") {
		t.Fatal("fingerprint not deterministic")
	}
	if Fingerprint("token") == Fingerprint("token2") {
		t.Fatal("fingerprint collision on different inputs")
	}
}
