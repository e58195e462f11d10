package signer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	Algorithm = "GOOG4-RSA-SHA256"

	DefaultBaseURL = "https://storage.googleapis.com"
	DefaultHost    = "storage.googleapis.com"

	// MaxExpires is the longest validity a V4 signature accepts.
	MaxExpires = 7 * 24 * time.Hour

	timestampFormat = "20060102T150405Z"
	unsignedPayload = "UNSIGNED-PAYLOAD"
	scopeSuffix     = "auto/storage/goog4_request"
)

// ErrSigning wraps every identity or remote signing failure.
var ErrSigning = errors.New("signing failed")

// IdentityResolver returns the account the URL is signed as.
type IdentityResolver interface {
	Email(ctx context.Context) (string, error)
}

// BlobSigner signs bytes with the private key of the given account.
type BlobSigner interface {
	SignBlob(ctx context.Context, email string, payload []byte) ([]byte, error)
}

// Config sets where signed URLs point and which clock stamps them.
type Config struct {
	// BaseURL prefixes every signed path.
	BaseURL string
	// Host is signed when the caller does not pass a host header.
	Host    string
	Clock   clockwork.Clock
}

// DefaultConfig signs for Cloud Storage with the real clock.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Host:    DefaultHost,
		Clock:   clockwork.NewRealClock(),
	}
}

// Request is everything the caller controls about a signed URL.
type Request struct {
	Path    string
	Expires time.Duration
	Method  string
	Headers map[string]string
}

// Prepared holds the deterministic intermediate values of one signature.
type Prepared struct {
	Timestamp        string
	Email            string
	SignedHeaders    string
	Query            string
	CanonicalRequest string
	StringToSign     string
}

// Signer produces V4 signed URLs without holding a private key itself.
type Signer struct {
	identity IdentityResolver
	blobs    BlobSigner
	config   Config
}

// New returns a Signer that signs as identity through blobs. Empty Config
// fields fall back to DefaultConfig.
func New(identity IdentityResolver, blobs BlobSigner, cfg Config) *Signer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Signer{identity: identity, blobs: blobs, config: cfg}
}

// SignURL returns a URL granting method on path until expires has elapsed.
func (s *Signer) SignURL(ctx context.Context, path string, expires time.Duration, method string, headers map[string]string) (string, error) {
	return s.Sign(ctx, Request{Path: path, Expires: expires, Method: method, Headers: headers})
}

// SignObjectURL signs /bucket/object.
func (s *Signer) SignObjectURL(ctx context.Context, bucket, object string, expires time.Duration, method string, headers map[string]string) (string, error) {
	if bucket == "" || object == "" {
		return "", fmt.Errorf("bucket and object are required")
	}
	return s.SignURL(ctx, "/"+bucket+"/"+object, expires, method, headers)
}

// Sign validates req, signs it remotely and returns the full URL. Identity
// and signing failures wrap ErrSigning.
func (s *Signer) Sign(ctx context.Context, req Request) (string, error) {
	prepared, err := s.Prepare(ctx, req)
	if err != nil {
		return "", err
	}

	signature, err := s.blobs.SignBlob(ctx, prepared.Email, []byte(prepared.StringToSign))
	if err != nil {
		return "", fmt.Errorf("%w: sign blob: %w", ErrSigning, err)
	}

	log.Debug().
		Str("path", req.Path).
		Str("email", prepared.Email).
		Str("timestamp", prepared.Timestamp).
		Msg("signed url")

	return s.config.BaseURL + req.Path + "?" + prepared.Query + "&X-Goog-Signature=" + hex.EncodeToString(signature), nil
}

// Prepare captures the timestamp, resolves the identity and builds every
// value that goes into the signature.
func (s *Signer) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}

	now := s.config.Clock.Now()

	email, err := s.identity.Email(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve identity: %w", ErrSigning, err)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: identity resolved to an empty email", ErrSigning)
	}

	prepared := Canonicalize(req, email, now, s.config.Host)
	return &prepared, nil
}

func validate(req *Request) error {
	if !strings.HasPrefix(req.Path, "/") {
		return fmt.Errorf("resource path %q must start with /", req.Path)
	}
	if req.Expires < time.Second || req.Expires > MaxExpires {
		return fmt.Errorf("expires %s must be between 1s and %s", req.Expires, MaxExpires)
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	seen := make(map[string]string, len(req.Headers))
	for key := range req.Headers {
		name := strings.ToLower(key)
		if other, ok := seen[name]; ok {
			return fmt.Errorf("headers %q and %q differ only by case", other, key)
		}
		seen[name] = key
	}
	return nil
}

// Canonicalize is the pure part of signing: the same request, identity, time
// and default host always produce the same values. Header names that differ
// only by case are rejected by Sign; here the first in byte order wins.
func Canonicalize(req Request, email string, t time.Time, defaultHost string) Prepared {
	timestamp := t.UTC().Format(timestampFormat)
	date := timestamp[:8]

	keys := make([]string, 0, len(req.Headers))
	for key := range req.Headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	headers := make(map[string]string, len(req.Headers)+1)
	for _, key := range keys {
		name := strings.ToLower(key)
		if _, ok := headers[name]; !ok {
			headers[name] = req.Headers[key]
		}
	}
	if _, ok := headers["host"]; !ok {
		headers["host"] = defaultHost
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	signedHeaders := strings.Join(names, ";")

	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = name + ":" + headers[name]
	}

	params := []string{
		"X-Goog-Algorithm=" + Algorithm,
		"X-Goog-Credential=" + escape(email) + "%2F" + date + "%2F" + strings.ReplaceAll(scopeSuffix, "/", "%2F"),
		"X-Goog-Date=" + timestamp,
		"X-Goog-Expires=" + strconv.FormatInt(int64(req.Expires/time.Second), 10),
		"X-Goog-SignedHeaders=" + signedHeaders,
	}
	sort.Strings(params)
	query := strings.Join(params, "&")

	canonical := strings.Join([]string{
		req.Method,
		req.Path,
		query,
		strings.Join(lines, "\n"),
		"",
		signedHeaders,
		unsignedPayload,
	}, "\n")

	digest := sha256.Sum256([]byte(canonical))
	stringToSign := strings.Join([]string{
		Algorithm,
		timestamp,
		date + "/" + scopeSuffix,
		hex.EncodeToString(digest[:]),
	}, "\n")

	return Prepared{
		Timestamp:        timestamp,
		Email:            email,
		SignedHeaders:    signedHeaders,
		Query:            query,
		CanonicalRequest: canonical,
		StringToSign:     stringToSign,
	}
}

const upperhex = "0123456789ABCDEF"

// escape percent-encodes every byte except A-Z a-z 0-9 _ . - ~ and /.
func escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '_', '.', '-', '~', '/':
		return true
	}
	return false
}
