// ===========================================
// Package shortcode - Short Code Generation
// ===========================================
// Generates random short codes from a base62 alphabet using
// crypto/rand. Codes are not checked for uniqueness here - collision
// handling (bounded retry against the store) belongs to the registry.

package shortcode

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

// Alphabet is the 62-symbol set codes are drawn from.
// Case-sensitive: 62^7 ≈ 3.5 trillion combinations at length 7.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Length is the fixed length of generated codes.
const Length = 7

// aliasPattern constrains custom aliases: 3-20 chars, alphanumeric
// plus hyphen and underscore.
var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

// Generator produces random short codes. The zero value is ready to use;
// it carries no state and is safe for concurrent use.
type Generator struct{}

// New returns a code generator.
func New() *Generator {
	return &Generator{}
}

// Generate returns a fresh random code of Length characters drawn
// uniformly from Alphabet.
//
// A plain byte%62 mapping would be biased (256 is not a multiple of 62),
// so bytes outside the largest multiple of 62 are rejected and redrawn.
func (g *Generator) Generate() (string, error) {
	// 248 = 4 * 62: accept bytes in [0, 248) for an unbiased mapping.
	const limit = 248

	code := make([]byte, 0, Length)
	buf := make([]byte, Length*2)

	for len(code) < Length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, Alphabet[int(b)%len(Alphabet)])
			if len(code) == Length {
				break
			}
		}
	}

	return string(code), nil
}

// ValidAlias reports whether s is acceptable as a custom alias.
func ValidAlias(s string) bool {
	return aliasPattern.MatchString(s)
}
