package utils

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const codeCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var shortCodeRe = regexp.MustCompile(`^[A-Za-z0-9-]{3,32}$`)

// GenerateShortCode returns a random code of the given length. Codes are
// public identifiers, so they must not be guessable from previous ones.
func GenerateShortCode(length int) string {
	b := make([]byte, length)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			panic(err)
		}
		b[i] = codeCharset[n.Int64()]
	}
	return string(b)
}

// ValidateShortCode checks the custom-code format: 3-32 chars, letters,
// digits and dashes only.
func ValidateShortCode(code string) bool {
	return shortCodeRe.MatchString(code)
}
