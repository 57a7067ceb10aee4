// Package wallet validates candidate Solana wallet addresses.
package wallet

import (
	"strings"
	"unicode/utf8"
)

const (
	minAddressLen = 32
	maxAddressLen = 60
)

// base58Alphabet is the Bitcoin-style base58 charset Solana addresses use
// (no 0, O, I, l).
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Validator checks syntactic plausibility of wallet addresses.
// The default check is length-only, matching the bot's historical behavior;
// Strict additionally requires the base58 charset.
type Validator struct {
	Strict bool
}

// Valid reports whether the candidate looks like a Solana address after
// trimming surrounding whitespace. Length is measured in code points, not
// bytes, so multi-byte input does not slip past the lower bound. The bound
// is deliberately loose; it does not verify checksum or decode the key.
func (v Validator) Valid(candidate string) bool {
	addr := strings.TrimSpace(candidate)
	n := utf8.RuneCountInString(addr)
	if n < minAddressLen || n > maxAddressLen {
		return false
	}
	if v.Strict {
		for _, r := range addr {
			if !strings.ContainsRune(base58Alphabet, r) {
				return false
			}
		}
	}
	return true
}

// Normalize returns the candidate with surrounding whitespace removed,
// the form in which addresses are stored and echoed back.
func Normalize(candidate string) string {
	return strings.TrimSpace(candidate)
}
