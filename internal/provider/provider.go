// Package provider integrates fuel card provider APIs. Each client
// fetches raw transactions in the provider's wire format and normalizes
// them into domain.FuelTransaction.
package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// ErrAuthentication indicates invalid or missing provider credentials.
var ErrAuthentication = errors.New("provider authentication failed")

// ErrProvider indicates a provider API failure.
var ErrProvider = errors.New("provider request failed")

// Credentials holds provider-specific secrets (API keys, tokens).
type Credentials map[string]string

// Client is a fuel card provider integration.
type Client interface {
	// Name returns the provider identifier ("okq8", "preem", ...).
	Name() string

	// ValidateCredentials checks that the configured credentials are
	// complete. Returns ErrAuthentication when they are not.
	ValidateCredentials(ctx context.Context) error

	// FetchTransactions returns normalized transactions in [start, end].
	FetchTransactions(ctx context.Context, start, end time.Time) ([]*domain.FuelTransaction, error)
}

// Option configures a provider client.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL overrides the provider API endpoint. Used in tests and
// for sandbox environments.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

func newClientConfig(defaultURL string, opts []Option) clientConfig {
	cfg := clientConfig{
		baseURL: defaultURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// New returns a client for the named provider.
func New(name string, creds Credentials, opts ...Option) (Client, error) {
	switch name {
	case domain.ProviderOKQ8:
		return NewOKQ8Client(creds, opts...), nil
	case domain.ProviderPreem:
		return NewPreemClient(creds, opts...), nil
	case domain.ProviderShell:
		return NewShellClient(creds, opts...), nil
	case domain.ProviderCircleK:
		return NewCircleKClient(creds, opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

// requireKeys returns ErrAuthentication unless every key is present and
// non-empty in creds.
func requireKeys(creds Credentials, keys ...string) error {
	for _, k := range keys {
		if creds[k] == "" {
			return fmt.Errorf("%w: missing %s", ErrAuthentication, k)
		}
	}
	return nil
}

// basicAuth encodes credentials for an Authorization: Basic header.
func basicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

// getJSON performs a GET against base+path with the given query and
// auth header, decoding the response body into dst.
func getJSON(ctx context.Context, hc *http.Client, base, path string, query url.Values, header http.Header, dst interface{}) error {
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	u.Path += path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthentication, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrProvider, err)
	}
	return nil
}
