// Package password hashea y verifica secretos de clientes.
//
// Hash produce bcrypt (costo 10 por defecto). Verify acepta bcrypt y
// argon2id en formato PHC, así secretos migrados de otros sistemas siguen
// verificando sin rehash.
package password

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost es el costo bcrypt de los secretos nuevos.
const DefaultCost = 10

var ErrEmpty = errors.New("password: empty secret")

// Hasher produce hashes de secretos nuevos.
type Hasher interface {
	Hash(plain string) (string, error)
}

// Bcrypt implementa Hasher. Cost 0 usa DefaultCost.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmpty
	}
	cost := b.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// DummyHash retorna un hash bcrypt de costo DefaultCost que ningún secret
// real verifica. Se calcula una sola vez.
func DummyHash() string {
	dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("portero-unknown-client"), DefaultCost)
		if err == nil {
			dummyHash = string(h)
		}
	})
	return dummyHash
}

// Verify compara plain contra encoded en tiempo constante.
// Formatos desconocidos nunca verifican.
func Verify(plain, encoded string) bool {
	if plain == "" || encoded == "" {
		return false
	}
	switch {
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain)) == nil
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2id(plain, encoded)
	default:
		return false
	}
}
