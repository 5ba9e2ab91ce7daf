package outline

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

	"github.com/google/uuid"

	"github.com/startunnel/StarTunnel/internal/pkg/env"
)

const defaultTimeout = 10 * time.Second

// ErrProvisionFailed is returned when the Outline server cannot create a key.
// Callers surface it as "temporarily unavailable"; retrying is up to them.
var ErrProvisionFailed = errors.New("outline: provisioning failed")

// ErrRevokeFailed is returned when key deletion does not succeed. Lifecycle
// transitions log it and carry on; the orphaned key is an accepted leak.
var ErrRevokeFailed = errors.New("outline: revoke failed")

// Credential is an access key issued by the Outline management API. The
// ledger stores the raw response body; only the id (for revocation) and the
// access URL (for display) are ever interpreted.
type Credential struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	AccessURL string `json:"accessUrl"`

	raw string
}

// Ref returns the opaque serialized form stored in the ledger.
func (c *Credential) Ref() string {
	if c.raw != "" {
		return c.raw
	}
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}

// ParseCredential decodes a stored credential blob. A blob without a key id
// is unusable and treated the same as a malformed one.
func ParseCredential(blob string) (*Credential, error) {
	var cred Credential
	if err := json.Unmarshal([]byte(blob), &cred); err != nil {
		return nil, fmt.Errorf("outline: invalid credential blob: %w", err)
	}
	if strings.TrimSpace(cred.ID) == "" {
		return nil, errors.New("outline: credential blob has no key id")
	}
	cred.raw = blob
	return &cred, nil
}

// Provisioner creates and revokes access keys on the external service.
type Provisioner interface {
	Provision(ctx context.Context) (*Credential, error)
	Revoke(ctx context.Context, cred *Credential) error
}

// Client talks to the Outline server management API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from OUTLINE_API_URL.
func NewClientFromEnv() (*Client, error) {
	base, err := env.RequireEnv("OUTLINE_API_URL")
	if err != nil {
		return nil, err
	}
	return NewClient(base), nil
}

// NewClient builds a client for the given management API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Provision creates a new access key. No retries happen here; retry policy
// belongs to the caller.
func (c *Client) Provision(ctx context.Context) (*Credential, error) {
	payload, err := json.Marshal(map[string]string{
		"name": "startunnel-" + uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/access-keys", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrProvisionFailed, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: unexpected status %d: %s", ErrProvisionFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	cred, err := ParseCredential(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}
	return cred, nil
}

// Revoke deletes an access key. A key the server no longer knows counts as
// revoked.
func (c *Client) Revoke(ctx context.Context, cred *Credential) error {
	if cred == nil || strings.TrimSpace(cred.ID) == "" {
		return fmt.Errorf("%w: credential has no key id", ErrRevokeFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/access-keys/"+cred.ID, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRevokeFailed, err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRevokeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%w: unexpected status %d: %s", ErrRevokeFailed, resp.StatusCode, strings.TrimSpace(string(body)))
}
