package handle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bsv-blockchain/go-sdk/script"

	"github.com/bitfsorg/libdividend-go/ledger"
)

// MaxResponseSize caps how much of a payout host's response is read.
const MaxResponseSize = 1 << 20

// HTTPClient defines the interface for HTTP requests against payout hosts.
// This allows tests to mock HTTP calls.
type HTTPClient interface {
	Get(url string) (*http.Response, error)
	Post(url, contentType string, body io.Reader) (*http.Response, error)
}

// defaultHTTPClient wraps an http.Client with a timeout.
type defaultHTTPClient struct {
	client *http.Client
}

func (d *defaultHTTPClient) Get(rawURL string) (*http.Response, error) {
	return d.client.Get(rawURL)
}

func (d *defaultHTTPClient) Post(rawURL, contentType string, body io.Reader) (*http.Response, error) {
	return d.client.Post(rawURL, contentType, body)
}

// DefaultHTTPClient is the production HTTP client with a 30-second timeout.
var DefaultHTTPClient HTTPClient = &defaultHTTPClient{
	client: &http.Client{Timeout: 30 * time.Second},
}

// PayoutCapabilities holds the capability map served by a payout host.
type PayoutCapabilities struct {
	Destination string // URL template for destination resolution
}

// wellKnownResponse represents the JSON structure of /.well-known/payout.
type wellKnownResponse struct {
	Payout       string                 `json:"payout"`
	Capabilities map[string]interface{} `json:"capabilities"`
}

// capDestination is the capability key for destination resolution.
const capDestination = "destination"

// DiscoverCapabilities fetches /.well-known/payout from a payout host
// (host or host:port) and returns its capabilities.
func DiscoverCapabilities(host string) (*PayoutCapabilities, error) {
	return DiscoverCapabilitiesWithClient(host, DefaultHTTPClient)
}

// DiscoverCapabilitiesWithClient fetches capabilities using the provided
// HTTP client. Capability URLs that are not HTTPS are discarded.
func DiscoverCapabilitiesWithClient(host string, client HTTPClient) (*PayoutCapabilities, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrDiscoveryFailed)
	}

	wellKnownURL := "https://" + host + "/.well-known/payout"
	resp, err := client.Get(wellKnownURL)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrDiscoveryFailed, wellKnownURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned status %d", ErrDiscoveryFailed, wellKnownURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrDiscoveryFailed, err)
	}

	var wk wellKnownResponse
	if err := json.Unmarshal(body, &wk); err != nil {
		return nil, fmt.Errorf("%w: parsing JSON: %v", ErrDiscoveryFailed, err)
	}

	caps := &PayoutCapabilities{}
	for key, val := range wk.Capabilities {
		urlStr, ok := val.(string)
		if !ok {
			continue
		}
		if !strings.HasPrefix(urlStr, "https://") {
			continue
		}
		if key == capDestination {
			caps.Destination = urlStr
		}
	}

	return caps, nil
}

// destinationRequest is the JSON body POSTed to the destination endpoint.
type destinationRequest struct {
	SenderName string `json:"senderName"`
	Purpose    string `json:"purpose"`
}

// destinationResponse is the JSON envelope returned by the destination
// endpoint.
type destinationResponse struct {
	Address string `json:"address"`
}

// ResolveDestinationWithClient asks a payout host for the current payout
// address of a handle.
//
// It performs capability discovery (GET), then POSTs to the destination
// endpoint to obtain a base58 P2PKH address for payment.
func ResolveDestinationWithClient(h Handle, host, senderName string, client HTTPClient) (ledger.Address, error) {
	caps, err := DiscoverCapabilitiesWithClient(host, client)
	if err != nil {
		return ledger.Address{}, fmt.Errorf("%w: %w", ErrResolutionFailed, err)
	}

	if caps.Destination == "" {
		return ledger.Address{}, fmt.Errorf("%w: no destination capability found for %s", ErrResolutionFailed, host)
	}

	// Escape template variables so an alias cannot inject path segments.
	destURL := strings.ReplaceAll(caps.Destination, "{alias}", url.PathEscape(h.Alias))
	destURL = strings.ReplaceAll(destURL, "{domain.tld}", url.PathEscape(h.Domain))

	reqBody, err := json.Marshal(destinationRequest{SenderName: senderName, Purpose: "payout"})
	if err != nil {
		return ledger.Address{}, fmt.Errorf("%w: encoding request: %w", ErrResolutionFailed, err)
	}

	resp, err := client.Post(destURL, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return ledger.Address{}, fmt.Errorf("%w: POST %s: %w", ErrResolutionFailed, destURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return ledger.Address{}, fmt.Errorf("%w: POST %s returned status %d", ErrResolutionFailed, destURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return ledger.Address{}, fmt.Errorf("%w: reading response: %w", ErrResolutionFailed, err)
	}

	var dest destinationResponse
	if err := json.Unmarshal(body, &dest); err != nil {
		return ledger.Address{}, fmt.Errorf("%w: parsing response: %w", ErrResolutionFailed, err)
	}

	if dest.Address == "" {
		return ledger.Address{}, fmt.Errorf("%w: empty address in response", ErrResolutionFailed)
	}

	return AddressFromString(dest.Address)
}

// AddressFromString decodes a base58 P2PKH address into a ledger address.
func AddressFromString(s string) (ledger.Address, error) {
	addr, err := script.NewAddressFromString(s)
	if err != nil {
		return ledger.Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidDestination, s, err)
	}
	dest, ok := ledger.AddressFromBytes([]byte(addr.PublicKeyHash))
	if !ok {
		return ledger.Address{}, fmt.Errorf("%w: %q has a %d-byte hash", ErrInvalidDestination, s, len(addr.PublicKeyHash))
	}
	return dest, nil
}

// DefaultSenderName is reported to destination endpoints when the
// Resolver has no SenderName configured.
const DefaultSenderName = "divfund"

// Resolver resolves payout handles to ledger addresses.
type Resolver struct {
	// DNS resolves payout SRV records. Swap in a DNSSECResolver to
	// require authenticated records.
	DNS DNSResolver

	// HTTP performs capability discovery and destination requests.
	HTTP HTTPClient

	// SenderName is reported to the destination endpoint as the paying
	// party.
	SenderName string
}

// NewResolver creates a Resolver with the default DNS and HTTP clients.
func NewResolver() *Resolver {
	return &Resolver{
		DNS:        DefaultDNSResolver,
		HTTP:       DefaultHTTPClient,
		SenderName: DefaultSenderName,
	}
}

// Resolve resolves an alias@domain handle to the holder's current payout
// address.
//
// SRV records order the candidate hosts; each is tried in turn until one
// completes destination resolution. Domains without SRV records fall back
// to the domain itself on port 443.
func (r *Resolver) Resolve(ctx context.Context, rawHandle string) (ledger.Address, error) {
	h, err := ParseHandle(rawHandle)
	if err != nil {
		return ledger.Address{}, err
	}

	endpoints, err := ResolveEndpointsWithResolver(h.Domain, r.DNS)
	if err != nil {
		// SRV records are optional; fall back to the domain itself.
		endpoints = []string{h.Domain + ":443"}
	}

	sender := r.SenderName
	if sender == "" {
		sender = DefaultSenderName
	}

	var lastErr error
	for _, host := range endpoints {
		if err := ctx.Err(); err != nil {
			return ledger.Address{}, err
		}
		dest, err := ResolveDestinationWithClient(h, host, sender, r.HTTP)
		if err == nil {
			return dest, nil
		}
		lastErr = err
	}
	return ledger.Address{}, lastErr
}
