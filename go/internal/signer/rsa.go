package signer

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// RSAKeySigner signs locally with a service account private key. It is meant
// for development and for verifying URLs produced by the remote signer.
type RSAKeySigner struct {
	key *rsa.PrivateKey
}

func NewRSAKeySigner(key *rsa.PrivateKey) *RSAKeySigner {
	return &RSAKeySigner{key: key}
}

// SignBlob ignores email; the key already belongs to one account.
func (s *RSAKeySigner) SignBlob(_ context.Context, _ string, payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	return rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
}

func (s *RSAKeySigner) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// ParsePrivateKey accepts PKCS#1 and PKCS#8 PEM blocks.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is %T, not RSA", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// LoadKeyFile reads either a service account JSON key or a bare PEM key.
// The returned email is empty for PEM files.
func LoadKeyFile(path string) (*RSAKeySigner, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read key file: %w", err)
	}

	var email string
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		var sa serviceAccountKey
		if err := json.Unmarshal(data, &sa); err != nil {
			return nil, "", fmt.Errorf("failed to parse service account key: %w", err)
		}
		email = sa.ClientEmail
		data = []byte(sa.PrivateKey)
	}

	key, err := ParsePrivateKey(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewRSAKeySigner(key), email, nil
}
