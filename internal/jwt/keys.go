package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// KeySet mantiene una sola clave Ed25519 activa.
type KeySet struct {
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
	KID  string
}

// NewDevEd25519 genera una clave efímera en memoria (dev/tests).
func NewDevEd25519(kid string) (*KeySet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeySet{Priv: priv, Pub: pub, KID: kid}, nil
}

// NewEd25519FromSeed deriva la clave desde un seed base64 de 32 bytes.
func NewEd25519FromSeed(seedB64, kid string) (*KeySet, error) {
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		return nil, fmt.Errorf("jwt: decode seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwt: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeySet{Priv: priv, Pub: priv.Public().(ed25519.PublicKey), KID: kid}, nil
}

type jwk struct {
	Kty string `json:"kty"` // "OKP"
	Crv string `json:"crv"` // "Ed25519"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "EdDSA"
	Use string `json:"use"` // "sig"
	X   string `json:"x"`   // base64url(pub)
}

// JWKSJSON devuelve el JWKS con la clave pública.
func (k *KeySet) JWKSJSON() []byte {
	b, _ := json.Marshal(struct {
		Keys []jwk `json:"keys"`
	}{Keys: []jwk{{
		Kty: "OKP",
		Crv: "Ed25519",
		Kid: k.KID,
		Alg: "EdDSA",
		Use: "sig",
		X:   base64.RawURLEncoding.EncodeToString(k.Pub),
	}}})
	return b
}
