package crypto

import "testing"

func TestSignAndVerifySessionKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	message := []byte("alice:0:create_order:order-123")
	sig, err := signer.Sign(message)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	sessionKeys := [][]byte{signer.PublicKeyBytes()}
	if !VerifySessionKey(message, sig, sessionKeys) {
		t.Fatal("expected signature to verify against its own public key")
	}
}

func TestVerifySessionKey_WrongKeyRejected(t *testing.T) {
	signer, _ := GenerateKey()
	other, _ := GenerateKey()
	message := []byte("bob:1:cancel:order-456")
	sig, err := signer.Sign(message)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if VerifySessionKey(message, sig, [][]byte{other.PublicKeyBytes()}) {
		t.Fatal("signature must not verify against an unrelated public key")
	}
}

func TestVerifySessionKey_TamperedMessageRejected(t *testing.T) {
	signer, _ := GenerateKey()
	sig, err := signer.Sign([]byte("carol:0:withdraw:100"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if VerifySessionKey([]byte("carol:0:withdraw:999"), sig, [][]byte{signer.PublicKeyBytes()}) {
		t.Fatal("signature over a different message must not verify")
	}
}

func TestFromPrivateKeyHex_RoundTrips(t *testing.T) {
	original, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	restored, err := FromPrivateKeyHex(original.PrivateKeyHex())
	if err != nil {
		t.Fatalf("from hex: %v", err)
	}
	if string(restored.PublicKeyBytes()) != string(original.PublicKeyBytes()) {
		t.Fatal("restoring from hex must reproduce the same public key")
	}
}
