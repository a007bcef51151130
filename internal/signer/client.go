package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sealify/docseal/attestation"
	"github.com/sealify/docseal/verify"
	"github.com/sealify/docseal/wire"
)

// Client talks to a signer service. It implements verify.SignatureVerifier
// for the verification side and Sign for the sealing side.
type Client struct {
	baseURL    string
	credential string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithCredential sets the bearer token presented to /sign.
func WithCredential(token string) ClientOption {
	return func(c *Client) {
		c.credential = token
	}
}

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = h
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sign submits an unsigned package and returns the signer's response.
// Authorization failures surface as AuthorizationError.
func (c *Client) Sign(ctx context.Context, pkg *attestation.Record) (*attestation.SignerResponse, error) {
	req := SignRequest{
		Hashes:   pkg.Hashes,
		Identity: pkg.Identity,
		Zone:     pkg.Zone,
		UserURL:  pkg.UserURL,
		PDF:      pkg.Hashes.PHash == "" && pkg.Hashes.DHash == "",
	}

	var resp attestation.SignerResponse
	status, err := c.post(ctx, "/sign", req, &resp)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return &resp, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, AuthorizationError{Reason: fmt.Sprintf("signer rejected the request (%d)", status)}
	default:
		return nil, fmt.Errorf("signer returned status %d", status)
	}
}

// VerifySignature implements verify.SignatureVerifier.
func (c *Client) VerifySignature(ctx context.Context, rec *attestation.Record) (*verify.SignatureResult, error) {
	token, err := wire.Encode(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	var result verify.SignatureResult
	status, err := c.post(ctx, "/verifySignature", VerifySignatureRequest{Record: token}, &result)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("verification service returned status %d", status)
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// ensure the client satisfies the engine's collaborator contract.
var _ verify.SignatureVerifier = (*Client)(nil)
