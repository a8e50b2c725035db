package internal

import (
	"testing"
)

// FuzzDecodeAPIToken exercises API token decoding with arbitrary strings.
// Invalid inputs should return errors cleanly.
func FuzzDecodeAPIToken(f *testing.F) {
	f.Add("")
	f.Add("act_")
	f.Add("act__")
	f.Add("act_01HZX3Q9F0B7N3V6W8Y2K4M5P7_")
	f.Add("act_id_!!!not-base64!!!")

	if secret, err := NewAPISecret(); err == nil {
		f.Add(EncodeAPIToken("01HZX3Q9F0B7N3V6W8Y2K4M5P7", secret))
	}

	f.Fuzz(func(t *testing.T, input string) {
		id, secret, err := DecodeAPIToken(input)
		if err != nil {
			return
		}
		if id == "" || secret == "" {
			t.Fatal("DecodeAPIToken returned empty parts without error")
		}
		if EncodeAPIToken(id, secret) != input {
			t.Fatalf("decoded token %q does not re-encode to itself", input)
		}
	})
}
