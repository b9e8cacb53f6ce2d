// Package password implements the secret strength policy and the generator
// that produces secrets satisfying it by construction.
package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/mvolkovs/passvault/internal/common"
)

const (
	// MinLength is the minimum accepted secret length.
	MinLength = 8

	// GeneratedLength is the length of autogenerated secrets.
	GeneratedLength = 16

	upperChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars = "abcdefghijklmnopqrstuvwxyz"
	digitChars = "0123456789"

	// SymbolChars is the accepted punctuation set.
	SymbolChars = "~`!@#$%^&*()_-+=[]{}:;.?"
)

// Evaluate checks plaintext against the strength policy: length >= MinLength
// plus at least one uppercase letter, lowercase letter, digit, and symbol
// from SymbolChars. It returns nil when all criteria hold, otherwise a
// common.ErrWeakPassword wrapping a single message that enumerates every
// unmet criterion, not just the first. Pure and total: no I/O, no panics.
func Evaluate(plaintext string) error {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range plaintext {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(SymbolChars, r):
			hasSymbol = true
		}
	}

	var unmet []string
	if len(plaintext) < MinLength {
		unmet = append(unmet, fmt.Sprintf("minimum length of %d characters", MinLength))
	}
	if !hasUpper {
		unmet = append(unmet, "at least one uppercase letter")
	}
	if !hasLower {
		unmet = append(unmet, "at least one lowercase letter")
	}
	if !hasDigit {
		unmet = append(unmet, "at least one digit")
	}
	if !hasSymbol {
		unmet = append(unmet, "at least one symbol")
	}

	if len(unmet) == 0 {
		return nil
	}
	return fmt.Errorf("%w: please ensure your password meets the following criteria: %s",
		common.ErrWeakPassword, strings.Join(unmet, ", "))
}

var alphabets = []string{upperChars, lowerChars, digitChars, SymbolChars}

// Generate produces a random secret of GeneratedLength characters containing
// at least one character from each of the four alphabets, with the remaining
// positions drawn uniformly from their union. The result always passes
// Evaluate; randomness comes from crypto/rand only.
func Generate() string {
	union := strings.Join(alphabets, "")

	chars := make([]byte, 0, GeneratedLength)
	for _, alphabet := range alphabets {
		chars = append(chars, pick(alphabet))
	}
	for len(chars) < GeneratedLength {
		chars = append(chars, pick(union))
	}

	// Fisher-Yates, so the guaranteed class characters do not sit at fixed
	// positions.
	for i := len(chars) - 1; i > 0; i-- {
		j := randInt(i + 1)
		chars[i], chars[j] = chars[j], chars[i]
	}
	return string(chars)
}

func pick(alphabet string) byte {
	return alphabet[randInt(len(alphabet))]
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// Same stance as common.GenerateRandByteArray: a broken system
		// randomness source is not recoverable.
		panic(err)
	}
	return int(v.Int64())
}
