// Package otp generates and compares numeric one-time verification codes.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
)

// Digits is the length of generated codes.
const Digits = 6

var codeSpace = big.NewInt(1_000_000)

// Generate returns a uniformly distributed 6-digit code (e.g. "042917") from crypto/rand.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	s := n.String()
	for len(s) < Digits {
		s = "0" + s
	}
	return s, nil
}

// Hash returns the hex-encoded SHA-256 of code. Only hashes are kept at rest.
func Hash(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// Equal reports whether code hashes to storedHash, in constant time.
func Equal(code, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(code)), []byte(storedHash)) == 1
}
