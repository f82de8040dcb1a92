package accesscode

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode"
)

const (
	// Alphabet omits 0, O, 1 and I so codes survive being read aloud.
	Alphabet           = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength         = 6
	DefaultMaxAttempts = 10
)

// Generator produces candidate codes.
type Generator interface {
	Generate() (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Generate() (string, error) {
	return f()
}

// RandomGenerator draws every position independently and uniformly from
// Alphabet using crypto/rand.
type RandomGenerator struct{}

func (RandomGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))

	var builder strings.Builder
	builder.Grow(CodeLength)

	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(Alphabet[n.Int64()])
	}

	return builder.String(), nil
}

// Normalize uppercases raw input and drops all whitespace.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToUpper(raw))
}

// IsWellFormed reports whether code could have been issued.
func IsWellFormed(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
