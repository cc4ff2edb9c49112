package handle

import "errors"

var (
	// ErrInvalidHandle indicates the handle is not in alias@domain form.
	ErrInvalidHandle = errors.New("handle: invalid payout handle")

	// ErrDNSLookupFailed indicates a DNS SRV lookup failed.
	ErrDNSLookupFailed = errors.New("handle: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not
	// return authenticated (AD-flagged) data.
	ErrDNSSECValidationFailed = errors.New("handle: DNSSEC validation failed")

	// ErrNoEndpoints indicates no SRV records were found for the domain.
	ErrNoEndpoints = errors.New("handle: no payout endpoints found")

	// ErrDiscoveryFailed indicates the /.well-known/payout fetch failed.
	ErrDiscoveryFailed = errors.New("handle: capability discovery failed")

	// ErrResolutionFailed indicates the destination endpoint returned an error.
	ErrResolutionFailed = errors.New("handle: destination resolution failed")

	// ErrInvalidDestination indicates the resolved destination is not a
	// valid P2PKH address.
	ErrInvalidDestination = errors.New("handle: invalid destination address")
)
