package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// SHA256Base64URL devuelve sha256(input) en base64url sin padding.
// Es la forma en que se persisten y buscan los tokens.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewClientID genera un client_id público: "client_" + 16 bytes hex.
func NewClientID() (string, error) {
	h, err := randomHex(16)
	if err != nil {
		return "", err
	}
	return "client_" + h, nil
}

// NewClientSecret genera un secret: "secret_" + 32 bytes hex.
// Solo se muestra una vez; se persiste hasheado.
func NewClientSecret() (string, error) {
	h, err := randomHex(32)
	if err != nil {
		return "", err
	}
	return "secret_" + h, nil
}
