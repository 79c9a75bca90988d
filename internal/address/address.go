// Package address provides syntactic address-format checks so malformed
// destinations are rejected before any rate-limited provider call is spent
// on them. It is format validation only, not ownership or checksum
// verification.
package address

import (
	"regexp"
	"strings"
)

var (
	// Ethereum-style: 0x followed by 40 hex characters. Covers Polygon,
	// BSC and other EVM networks.
	evmRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	// Bitcoin legacy, SegWit and Bech32: starts with 1, 3, or bc1.
	btcRegex = regexp.MustCompile(`^(1|3|bc1)[a-zA-Z0-9]{25,59}$`)
	// TRON: T followed by 33 alphanumeric characters.
	trxRegex = regexp.MustCompile(`^T[a-zA-Z0-9]{33}$`)
)

// Valid reports whether address is syntactically plausible for the given
// network. Unknown networks fall back to a deliberately lax length check;
// the provider performs its own authoritative validation downstream.
func Valid(address, network string) bool {
	switch strings.ToLower(network) {
	case "matic", "eth", "bsc", "ethereum":
		return evmRegex.MatchString(address)
	case "btc", "bitcoin":
		return btcRegex.MatchString(address)
	case "trx", "tron":
		return trxRegex.MatchString(address)
	}
	return len(address) > 10
}
