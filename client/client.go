package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	voicegrant "github.com/MrEthical07/voicegrant"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrIdentityRequired = errors.New("client: identity is required")
	ErrRateLimited      = errors.New("client: rate limited")
	// ErrServerError is any 500 from the token service.
	ErrServerError = errors.New("client: token service error")
	// ErrServerMisconfigured is the 500 sent while the server lacks key
	// material. It matches ErrServerError too.
	ErrServerMisconfigured = fmt.Errorf("%w: server misconfigured", ErrServerError)
	ErrUnavailable         = errors.New("client: token service unavailable")
	ErrUnexpectedStatus    = errors.New("client: unexpected status")
)

const defaultTimeout = 10 * time.Second

// misconfiguredMessage is the error body of a 500 caused by missing key
// material, as opposed to a failed issuance.
const misconfiguredMessage = "Missing Twilio env vars on server"

// Config points the client at one token endpoint.
type Config struct {
	// URL is the full token endpoint, e.g. https://host/api/token.
	URL string
	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
	Timeout    time.Duration
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("client: URL is required")
	}
	if c.Timeout < 0 {
		return errors.New("client: Timeout must be >= 0")
	}
	return nil
}

// Credential is one issued token as seen by the device.
type Credential struct {
	Token     string
	Identity  string
	UserID    string
	UserName  string
	ExpiresIn int
	ExpiresAt time.Time
}

// Client requests tokens over HTTP. Safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	now        func() time.Time
}

func New(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

type tokenResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	Identity  string `json:"identity"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	ExpiresIn int    `json:"expiresIn"`
	Error     string `json:"error"`
}

// Fetch POSTs req to the token endpoint. Non-200 answers map to the
// package's sentinel errors; the server's message is appended as detail.
func (c *Client) Fetch(ctx context.Context, req voicegrant.CredentialRequest) (*Credential, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("client: marshal token request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("client: build token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("client: request token: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("client: read token response: %w", err)
	}

	var decoded tokenResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, decoded.Error)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("client: decode token response: %w", decodeErr)
	}
	if decoded.Token == "" {
		return nil, errors.New("client: token response carries no token")
	}

	return &Credential{
		Token:     decoded.Token,
		Identity:  decoded.Identity,
		UserID:    decoded.UserID,
		UserName:  decoded.UserName,
		ExpiresIn: decoded.ExpiresIn,
		ExpiresAt: c.expiresAt(decoded.Token, decoded.ExpiresIn),
	}, nil
}

func statusError(status int, detail string) error {
	var base error
	switch status {
	case http.StatusBadRequest:
		base = ErrIdentityRequired
	case http.StatusTooManyRequests:
		base = ErrRateLimited
	case http.StatusInternalServerError:
		base = ErrServerError
		if detail == misconfiguredMessage {
			base = ErrServerMisconfigured
		}
	case http.StatusServiceUnavailable:
		base = ErrUnavailable
	default:
		base = ErrUnexpectedStatus
	}
	if detail == "" {
		return fmt.Errorf("%w (HTTP %d)", base, status)
	}
	return fmt.Errorf("%w (HTTP %d): %s", base, status, detail)
}

// expiresAt reads exp without verifying the signature; the device has no
// secret. It falls back to the advertised lifetime.
func (c *Client) expiresAt(tok string, expiresIn int) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return c.now().Add(time.Duration(expiresIn) * time.Second)
}
