// Package protocol issues the short codes reporters use to follow up on a
// complaint without revealing its internal id.
package protocol

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// Length of every protocol code.
	Length = 8

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Largest multiple of len(alphabet) that fits in a byte; bytes at or above
	// it are rejected so every symbol is equally likely.
	rejectFrom = 252
)

// Generator produces protocol codes. Uniqueness against issued codes is the
// repository's job; a Generator only has to make collisions improbable.
type Generator interface {
	Generate() (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Generate() (string, error) { return f() }

// RandomGenerator draws symbols from random (v4) UUID bytes.
type RandomGenerator struct {
	random func() (uuid.UUID, error)
}

// NewGenerator returns a generator backed by crypto/rand through uuid.NewRandom.
func NewGenerator() *RandomGenerator {
	return &RandomGenerator{random: uuid.NewRandom}
}

// Generate returns an 8-character uppercase alphanumeric code.
func (g *RandomGenerator) Generate() (string, error) {
	var sb strings.Builder
	sb.Grow(Length)
	for sb.Len() < Length {
		u, err := g.random()
		if err != nil {
			return "", err
		}
		for _, b := range u {
			if b >= rejectFrom {
				continue
			}
			sb.WriteByte(alphabet[int(b)%len(alphabet)])
			if sb.Len() == Length {
				break
			}
		}
	}
	return sb.String(), nil
}

// Normalize trims whitespace and upper-cases a code typed by a reporter.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code has the protocol shape.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
