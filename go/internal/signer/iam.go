package signer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mcdev12/contest/go/clients"
)

const DefaultIAMCredentialsURL = "https://iamcredentials.googleapis.com/v1/"

// TokenSource supplies bearer tokens for the IAM Credentials API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// IAMBlobSigner signs through the IAM Credentials signBlob call, so the
// service account key never leaves Google.
type IAMBlobSigner struct {
	client *clients.BaseClient
	tokens TokenSource
}

func NewIAMBlobSigner(baseURL string, tokens TokenSource) *IAMBlobSigner {
	if baseURL == "" {
		baseURL = DefaultIAMCredentialsURL
	}
	return &IAMBlobSigner{client: clients.NewBaseClient(baseURL), tokens: tokens}
}

// SetHTTPClient replaces the transport client.
func (s *IAMBlobSigner) SetHTTPClient(c *http.Client) {
	s.client.SetHTTPClient(c)
}

type signBlobRequest struct {
	Payload string `json:"payload"`
}

type signBlobResponse struct {
	KeyID      string `json:"keyId"`
	SignedBlob string `json:"signedBlob"`
}

func (s *IAMBlobSigner) SignBlob(ctx context.Context, email string, payload []byte) ([]byte, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(signBlobRequest{Payload: base64.StdEncoding.EncodeToString(payload)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signBlob request: %w", err)
	}

	endpoint := "projects/-/serviceAccounts/" + url.PathEscape(email) + ":signBlob"
	resp, err := s.client.MakeRequest(ctx, http.MethodPost, endpoint, body, map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return nil, fmt.Errorf("signBlob for %s: %w", email, err)
	}

	var result signBlobResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode signBlob response: %w", err)
	}
	signature, err := base64.StdEncoding.DecodeString(result.SignedBlob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signed blob: %w", err)
	}
	if len(signature) == 0 {
		return nil, fmt.Errorf("signBlob returned an empty signature")
	}
	return signature, nil
}
