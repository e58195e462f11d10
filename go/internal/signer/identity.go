package signer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/contest/go/clients"
)

const (
	DefaultMetadataURL = "http://metadata.google.internal/computeMetadata/v1/"

	emailEndpoint = "instance/service-accounts/default/email"
	tokenEndpoint = "instance/service-accounts/default/token"

	// tokenExpiryMargin refreshes cached tokens before they actually expire.
	tokenExpiryMargin = time.Minute
)

// StaticIdentity always resolves to the same account.
type StaticIdentity string

func (s StaticIdentity) Email(context.Context) (string, error) {
	return string(s), nil
}

// MetadataIdentity reads the default service account of the machine from the
// compute metadata server. It also serves as the access token source for
// IAMBlobSigner.
type MetadataIdentity struct {
	client *clients.BaseClient
	clock  clockwork.Clock

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewMetadataIdentity(baseURL string, clock clockwork.Clock) *MetadataIdentity {
	if baseURL == "" {
		baseURL = DefaultMetadataURL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	client := clients.NewBaseClient(baseURL)
	client.SetHeader("Metadata-Flavor", "Google")
	client.SetTimeout(5 * time.Second)
	return &MetadataIdentity{client: client, clock: clock}
}

func (m *MetadataIdentity) Email(ctx context.Context) (string, error) {
	body, err := m.client.Get(ctx, emailEndpoint)
	if err != nil {
		return "", fmt.Errorf("failed to fetch service account email: %w", err)
	}
	email := strings.TrimSpace(string(body))
	if email == "" {
		return "", fmt.Errorf("metadata server returned an empty email")
	}
	return email, nil
}

type metadataToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Token returns an OAuth access token for the default service account,
// cached until shortly before it expires.
func (m *MetadataIdentity) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if m.token != "" && now.Before(m.expires) {
		return m.token, nil
	}

	body, err := m.client.Get(ctx, tokenEndpoint)
	if err != nil {
		return "", fmt.Errorf("failed to fetch access token: %w", err)
	}

	var tok metadataToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("failed to decode access token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("metadata server returned an empty access token")
	}

	m.token = tok.AccessToken
	m.expires = now.Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpiryMargin)
	return m.token, nil
}
