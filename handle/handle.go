// Package handle resolves human-readable payout handles of the form
// alias@domain to on-chain destinations.
//
// Resolution discovers the domain's payout host via DNS SRV records,
// fetches its capability map from /.well-known/payout, and POSTs to the
// destination endpoint to obtain the holder's current P2PKH address.
// Hosts that publish signed zones can be queried through the
// DNSSEC-validating resolver.
package handle

import (
	"fmt"
	"strings"
)

// Handle is a parsed payout handle.
type Handle struct {
	Alias  string
	Domain string
}

// String returns the handle in alias@domain form.
func (h Handle) String() string {
	return h.Alias + "@" + h.Domain
}

// ParseHandle parses and validates an alias@domain payout handle.
func ParseHandle(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Handle{}, fmt.Errorf("%w: empty handle", ErrInvalidHandle)
	}

	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return Handle{}, fmt.Errorf("%w: %q must be alias@domain", ErrInvalidHandle, s)
	}
	if parts[0] == "" {
		return Handle{}, fmt.Errorf("%w: %q has an empty alias", ErrInvalidHandle, s)
	}
	if parts[1] == "" {
		return Handle{}, fmt.Errorf("%w: %q has an empty domain", ErrInvalidHandle, s)
	}

	return Handle{Alias: parts[0], Domain: parts[1]}, nil
}
