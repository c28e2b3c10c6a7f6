package sig

import "testing"

const (
	testPublicKeyHex = "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a"
	testSignatureHex = "e5564300c360ac729086e2cc806e828a84877f1eb8e5d974d873e065224901555fb8821590a33bacc61e39701cf9b46bd25bf5f0595bbe24655141438e7a100b"
)

func TestVerifyEd25519HexAcceptsValidSignature(t *testing.T) {
	ok, err := VerifyEd25519Hex([]byte(""), testPublicKeyHex, testSignatureHex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyEd25519HexRejectsTamperedPayload(t *testing.T) {
	ok, err := VerifyEd25519Hex([]byte("tampered"), testPublicKeyHex, testSignatureHex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected signature verification to fail for tampered payload")
	}
}

func TestVerifyEd25519HexErrorsOnBadSignatureHex(t *testing.T) {
	if _, err := VerifyEd25519Hex(nil, testPublicKeyHex, "zz"); err == nil {
		t.Fatal("expected error for non-hex signature")
	}
	if _, err := VerifyEd25519Hex(nil, testPublicKeyHex, "00"); err == nil {
		t.Fatal("expected error for wrong-length signature")
	}
}

func TestVerifyEd25519HexErrorsOnBadPublicKeyHex(t *testing.T) {
	if _, err := VerifyEd25519Hex(nil, "zz", testSignatureHex); err == nil {
		t.Fatal("expected error for non-hex public key")
	}
	if _, err := VerifyEd25519Hex(nil, "00", testSignatureHex); err == nil {
		t.Fatal("expected error for wrong-length public key")
	}
}
