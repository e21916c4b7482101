// Package apikey genera y hashea los tokens de API key.
//
// Formato: "whk_" + hex(32 bytes aleatorios) = 68 caracteres, por debajo
// del límite de 72 bytes de bcrypt.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// Prefix identifica los tokens emitidos por este servicio.
	Prefix = "whk_"

	secretBytes = 32

	// TokenLen es el largo exacto de un token bien formado.
	TokenLen = len(Prefix) + secretBytes*2

	// displayHexLen: hex que se guarda en claro junto al hash.
	displayHexLen = 8

	DefaultCost = 12
)

// ErrMalformed indica un token que no tiene la forma whk_<64 hex>.
var ErrMalformed = errors.New("apikey: malformed token")

// Generate devuelve un token nuevo. El resultado se muestra una sola vez.
func Generate() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("apikey: read random: %w", err)
	}
	return Prefix + hex.EncodeToString(b), nil
}

// WellFormed chequea forma, no validez.
func WellFormed(token string) bool {
	if len(token) != TokenLen || !strings.HasPrefix(token, Prefix) {
		return false
	}
	_, err := hex.DecodeString(token[len(Prefix):])
	return err == nil
}

// DisplayPrefix devuelve "whk_" + los primeros 8 hex. Es público: sirve para
// acotar la búsqueda y para mostrar la key, nunca para autorizar.
// Tokens mal formados devuelven "".
func DisplayPrefix(token string) string {
	if !WellFormed(token) {
		return ""
	}
	return token[:len(Prefix)+displayHexLen]
}

// Hasher hashea con bcrypt al costo configurado.
type Hasher struct {
	cost int
}

// NewHasher acota cost al rango de bcrypt; 0 => DefaultCost.
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost retorna el costo efectivo.
func (h *Hasher) Cost() int { return h.cost }

func (h *Hasher) Hash(token string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(token), h.cost)
	if err != nil {
		return "", fmt.Errorf("apikey: hash: %w", err)
	}
	return string(b), nil
}

// Matches compara en tiempo constante (lo hace bcrypt).
func (h *Hasher) Matches(hash, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
