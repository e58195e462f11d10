package main

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSignURLCommandWithKeyFile(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	keyPath := filepath.Join(t.TempDir(), "key.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(keyPath, pemBytes, 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := newCmd(&Config{})
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--bucket", "results",
		"--object", "round.json",
		"--key-file", keyPath,
		"--email", "dev@example.com",
		"-H", "Content-Type=application/json",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	url := strings.TrimSpace(out.String())
	if !strings.HasPrefix(url, "https://storage.googleapis.com/results/round.json?X-Goog-Algorithm=GOOG4-RSA-SHA256&") {
		t.Errorf("url = %s", url)
	}
	if !strings.Contains(url, "X-Goog-SignedHeaders=content-type;host") {
		t.Errorf("url missing signed headers: %s", url)
	}
	if !strings.Contains(url, "X-Goog-Credential=dev%40example.com%2F") {
		t.Errorf("url missing credential: %s", url)
	}
}

func TestSignURLCommandValidation(t *testing.T) {
	for _, args := range [][]string{
		{"--object", "o"},
		{"--bucket", "b", "--object", "o", "--email", "x@y"},
		{"--bucket", "b", "--object", "o", "-H", "nope"},
	} {
		cmd := newCmd(&Config{})
		cmd.SetArgs(args)
		cmd.SetOut(&bytes.Buffer{})
		if err := cmd.Execute(); err == nil {
			t.Errorf("args %v: expected error", args)
		}
	}
}
