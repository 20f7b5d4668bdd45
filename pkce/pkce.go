// Package pkce generates the per-attempt secrets of an Authorization Code + PKCE flow:
// the code verifier, its S256 challenge and the CSRF state token.
package pkce

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/oauth2"
)

// RFC 7636 §4.1 verifier bounds.
const (
	MinVerifierLength = 43
	MaxVerifierLength = 128
)

const unreservedChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// Pair is a code verifier and the challenge derived from it.
// The verifier stays with the client until the callback completes.
type Pair struct {
	Verifier  string
	Challenge string
}

// NewPair generates a fresh verifier and derives its challenge.
func NewPair() Pair {
	verifier := GenerateVerifier()
	return Pair{
		Verifier:  verifier,
		Challenge: DeriveChallenge(verifier),
	}
}

// GenerateVerifier returns a 43 character verifier built from 32 bytes of crypto/rand
// output. A failing random source panics.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// DeriveChallenge returns BASE64URL(SHA256(verifier)) without padding.
func DeriveChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// ValidVerifier reports whether v has a legal length and only unreserved URL characters.
func ValidVerifier(v string) bool {
	if len(v) < MinVerifierLength || len(v) > MaxVerifierLength {
		return false
	}
	for _, c := range v {
		if !strings.ContainsRune(unreservedChars, c) {
			return false
		}
	}
	return true
}

// VerifyChallenge checks that challenge was derived from verifier.
func VerifyChallenge(verifier, challenge string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(DeriveChallenge(verifier)), []byte(challenge)) == 1
}
