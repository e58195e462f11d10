package signer

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
)

const testEmail = "svc@proj.iam.gserviceaccount.com"

var testTime = time.Date(2019, 2, 1, 9, 0, 0, 0, time.UTC)

// fixedBlobSigner returns a signature derived from the payload so tests can
// check what was signed.
type fixedBlobSigner struct {
	email   string
	payload []byte
	err     error
}

func (f *fixedBlobSigner) SignBlob(_ context.Context, email string, payload []byte) ([]byte, error) {
	f.email = email
	f.payload = payload
	if f.err != nil {
		return nil, f.err
	}
	sum := sha256.Sum256(payload)
	return sum[:4], nil
}

type failingIdentity struct{}

func (failingIdentity) Email(context.Context) (string, error) {
	return "", errors.New("metadata unreachable")
}

func newTestSigner(blobs BlobSigner) *Signer {
	return New(StaticIdentity(testEmail), blobs, Config{Clock: clockwork.NewFakeClockAt(testTime)})
}

func TestCanonicalize(t *testing.T) {
	got := Canonicalize(Request{
		Path:    "/bucket/object",
		Expires: time.Hour,
		Method:  http.MethodGet,
	}, testEmail, testTime, DefaultHost)

	wantQuery := "X-Goog-Algorithm=GOOG4-RSA-SHA256" +
		"&X-Goog-Credential=svc%40proj.iam.gserviceaccount.com%2F20190201%2Fauto%2Fstorage%2Fgoog4_request" +
		"&X-Goog-Date=20190201T090000Z" +
		"&X-Goog-Expires=3600" +
		"&X-Goog-SignedHeaders=host"

	want := Prepared{
		Timestamp:     "20190201T090000Z",
		Email:         testEmail,
		SignedHeaders: "host",
		Query:         wantQuery,
		CanonicalRequest: "GET\n/bucket/object\n" + wantQuery +
			"\nhost:storage.googleapis.com\n\nhost\nUNSIGNED-PAYLOAD",
		StringToSign: "GOOG4-RSA-SHA256\n20190201T090000Z\n20190201/auto/storage/goog4_request\n" +
			"19106b5ae9b812b997f72620c3b7f10edbd76435978700880a3c573fb41cedfc",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Canonicalize mismatch (-want +got):\n%s", diff)
	}
}

func TestCanonicalizeHeaders(t *testing.T) {
	got := Canonicalize(Request{
		Path:    "/bucket/object",
		Expires: time.Hour,
		Method:  http.MethodPut,
		Headers: map[string]string{
			"Content-Type":  "text/plain",
			"X-Goog-Meta-A": "b c",
		},
	}, testEmail, testTime, DefaultHost)

	if got.SignedHeaders != "content-type;host;x-goog-meta-a" {
		t.Errorf("signed headers = %q", got.SignedHeaders)
	}
	if !strings.Contains(got.CanonicalRequest, "\ncontent-type:text/plain\nhost:storage.googleapis.com\nx-goog-meta-a:b c\n\n") {
		t.Errorf("canonical headers block wrong:\n%s", got.CanonicalRequest)
	}
	wantDigest := "14c7b1d5fd7f97a880b147cdc7a1ca4ddf920075200a651e1b4bcd8440f3276e"
	if !strings.HasSuffix(got.StringToSign, "\n"+wantDigest) {
		t.Errorf("string to sign = %q, want digest %s", got.StringToSign, wantDigest)
	}
}

func TestCanonicalizeKeepsCallerHost(t *testing.T) {
	got := Canonicalize(Request{
		Path:    "/b/o",
		Expires: time.Minute,
		Method:  http.MethodGet,
		Headers: map[string]string{"Host": "bucket.storage.example"},
	}, testEmail, testTime, DefaultHost)

	if !strings.Contains(got.CanonicalRequest, "\nhost:bucket.storage.example\n") {
		t.Errorf("caller host not kept:\n%s", got.CanonicalRequest)
	}
}

func TestCanonicalizeDoesNotMutateHeaders(t *testing.T) {
	headers := map[string]string{"Content-Type": "text/plain"}
	Canonicalize(Request{Path: "/b/o", Expires: time.Minute, Method: "GET", Headers: headers}, testEmail, testTime, DefaultHost)

	if diff := cmp.Diff(map[string]string{"Content-Type": "text/plain"}, headers); diff != "" {
		t.Errorf("headers mutated (-want +got):\n%s", diff)
	}
}

func TestCanonicalizeCaseCollidingHeadersIsStable(t *testing.T) {
	req := Request{
		Path:    "/b/o",
		Expires: time.Minute,
		Method:  http.MethodGet,
		Headers: map[string]string{"Host": "a.example", "host": "b.example"},
	}

	first := Canonicalize(req, testEmail, testTime, DefaultHost)
	for i := 0; i < 200; i++ {
		got := Canonicalize(req, testEmail, testTime, DefaultHost)
		if got.CanonicalRequest != first.CanonicalRequest {
			t.Fatalf("call %d produced a different canonical request:\n%s\n%s", i, first.CanonicalRequest, got.CanonicalRequest)
		}
	}
	if !strings.Contains(first.CanonicalRequest, "\nhost:a.example\n") {
		t.Errorf("expected the first key in byte order to win:\n%s", first.CanonicalRequest)
	}
}

func TestSignURLRejectsCaseCollidingHeaders(t *testing.T) {
	blobs := &fixedBlobSigner{}
	s := newTestSigner(blobs)

	_, err := s.SignURL(context.Background(), "/b/o", time.Hour, http.MethodGet, map[string]string{
		"Content-Type": "text/plain",
		"content-type": "image/png",
	})
	if err == nil || errors.Is(err, ErrSigning) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if blobs.payload != nil {
		t.Error("blob signer was called for an invalid request")
	}
}

func TestSignURLDeterministic(t *testing.T) {
	ctx := context.Background()
	blobs := &fixedBlobSigner{}
	s := newTestSigner(blobs)

	first, err := s.SignObjectURL(ctx, "bucket", "object", time.Hour, http.MethodGet, nil)
	if err != nil {
		t.Fatalf("SignObjectURL: %v", err)
	}
	firstPayload := blobs.payload

	second, err := s.SignObjectURL(ctx, "bucket", "object", time.Hour, http.MethodGet, nil)
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("signed URLs differ:\n%s\n%s", first, second)
	}
	if string(firstPayload) != string(blobs.payload) {
		t.Error("string to sign differs between calls")
	}
	if blobs.email != testEmail {
		t.Errorf("signed as %q, want %q", blobs.email, testEmail)
	}

	sum := sha256.Sum256(firstPayload)
	wantPrefix := "https://storage.googleapis.com/bucket/object?X-Goog-Algorithm=GOOG4-RSA-SHA256&"
	if !strings.HasPrefix(first, wantPrefix) {
		t.Errorf("url = %s, want prefix %s", first, wantPrefix)
	}
	if !strings.HasSuffix(first, "&X-Goog-SignedHeaders=host&X-Goog-Signature="+hex.EncodeToString(sum[:4])) {
		t.Errorf("url does not end with the hex signature: %s", first)
	}
}

func TestSignURLDefaultsMethod(t *testing.T) {
	s := newTestSigner(&fixedBlobSigner{})
	prepared, err := s.Prepare(context.Background(), Request{Path: "/b/o", Expires: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(prepared.CanonicalRequest, "GET\n") {
		t.Errorf("canonical request = %q", prepared.CanonicalRequest)
	}
}

func TestSignURLErrors(t *testing.T) {
	ctx := context.Background()

	s := New(failingIdentity{}, &fixedBlobSigner{}, Config{Clock: clockwork.NewFakeClockAt(testTime)})
	if _, err := s.SignURL(ctx, "/b/o", time.Hour, "GET", nil); !errors.Is(err, ErrSigning) {
		t.Errorf("identity failure: err = %v, want ErrSigning", err)
	}

	s = newTestSigner(&fixedBlobSigner{err: errors.New("permission denied")})
	if _, err := s.SignURL(ctx, "/b/o", time.Hour, "GET", nil); !errors.Is(err, ErrSigning) {
		t.Errorf("sign failure: err = %v, want ErrSigning", err)
	}

	s = newTestSigner(&fixedBlobSigner{})
	for _, tt := range []struct {
		path    string
		expires time.Duration
	}{
		{"b/o", time.Hour},
		{"/b/o", 0},
		{"/b/o", 8 * 24 * time.Hour},
	} {
		if _, err := s.SignURL(ctx, tt.path, tt.expires, "GET", nil); err == nil || errors.Is(err, ErrSigning) {
			t.Errorf("SignURL(%q, %s) err = %v, want validation error", tt.path, tt.expires, err)
		}
	}
}

func TestEscape(t *testing.T) {
	tests := map[string]string{
		testEmail:       "svc%40proj.iam.gserviceaccount.com",
		"a b+c@d/é~_.-": "a%20b%2Bc%40d/%C3%A9~_.-",
		"":              "",
	}
	for in, want := range tests {
		if got := escape(in); got != want {
			t.Errorf("escape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRSAKeySignerVerifies(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	rsaSigner := NewRSAKeySigner(key)
	s := newTestSigner(rsaSigner)

	prepared, err := s.Prepare(context.Background(), Request{Path: "/b/o", Expires: time.Hour, Method: "GET"})
	if err != nil {
		t.Fatal(err)
	}
	signed, err := s.SignURL(context.Background(), "/b/o", time.Hour, "GET", nil)
	if err != nil {
		t.Fatal(err)
	}

	idx := strings.LastIndex(signed, "&X-Goog-Signature=")
	signature, err := hex.DecodeString(signed[idx+len("&X-Goog-Signature="):])
	if err != nil {
		t.Fatal(err)
	}
	digest := sha256.Sum256([]byte(prepared.StringToSign))
	if err := rsa.VerifyPKCS1v15(rsaSigner.PublicKey(), crypto.SHA256, digest[:], signature); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

func TestLoadKeyFile(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})

	dir := t.TempDir()
	pemPath := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(pemPath, pemBytes, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, email, err := LoadKeyFile(pemPath); err != nil || email != "" {
		t.Fatalf("LoadKeyFile(pem) = %q, %v", email, err)
	}

	saJSON, _ := json.Marshal(map[string]string{
		"client_email": testEmail,
		"private_key":  string(pemBytes),
	})
	jsonPath := filepath.Join(dir, "key.json")
	if err := os.WriteFile(jsonPath, saJSON, 0o600); err != nil {
		t.Fatal(err)
	}
	loaded, email, err := LoadKeyFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if email != testEmail {
		t.Errorf("email = %q, want %q", email, testEmail)
	}
	if !loaded.PublicKey().Equal(&key.PublicKey) {
		t.Error("loaded a different key")
	}

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if _, err := ParsePrivateKey(pkcs1); err != nil {
		t.Errorf("ParsePrivateKey(pkcs1): %v", err)
	}
	if _, err := ParsePrivateKey([]byte("garbage")); err == nil {
		t.Error("expected error for garbage key")
	}
}

func TestMetadataIdentity(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Metadata-Flavor") != "Google" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/" + emailEndpoint:
			w.Write([]byte(testEmail + "\n"))
		case "/" + tokenEndpoint:
			tokenCalls.Add(1)
			w.Write([]byte(`{"access_token":"ya29.token","expires_in":3600,"token_type":"Bearer"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClockAt(testTime)
	m := NewMetadataIdentity(srv.URL+"/", clock)
	ctx := context.Background()

	email, err := m.Email(ctx)
	if err != nil {
		t.Fatalf("Email: %v", err)
	}
	if email != testEmail {
		t.Errorf("email = %q, want %q", email, testEmail)
	}

	for i := 0; i < 3; i++ {
		token, err := m.Token(ctx)
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if token != "ya29.token" {
			t.Errorf("token = %q", token)
		}
	}
	if n := tokenCalls.Load(); n != 1 {
		t.Errorf("token fetched %d times, want 1", n)
	}

	clock.Advance(time.Hour)
	if _, err := m.Token(ctx); err != nil {
		t.Fatal(err)
	}
	if n := tokenCalls.Load(); n != 2 {
		t.Errorf("token fetched %d times after expiry, want 2", n)
	}
}

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func TestIAMBlobSigner(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody signBlobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		json.NewEncoder(w).Encode(signBlobResponse{
			KeyID:      "k1",
			SignedBlob: base64.StdEncoding.EncodeToString([]byte{0xde, 0xad, 0xbe, 0xef}),
		})
	}))
	defer srv.Close()

	iam := NewIAMBlobSigner(srv.URL+"/v1/", staticToken("tok"))
	sig, err := iam.SignBlob(context.Background(), testEmail, []byte("string to sign"))
	if err != nil {
		t.Fatalf("SignBlob: %v", err)
	}

	if hex.EncodeToString(sig) != "deadbeef" {
		t.Errorf("signature = %x", sig)
	}
	if gotPath != "/v1/projects/-/serviceAccounts/"+testEmail+":signBlob" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if decoded, _ := base64.StdEncoding.DecodeString(gotBody.Payload); string(decoded) != "string to sign" {
		t.Errorf("payload = %q", decoded)
	}
}

func TestIAMBlobSignerRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := newTestSigner(NewIAMBlobSigner(srv.URL+"/", staticToken("tok")))
	if _, err := s.SignURL(context.Background(), "/b/o", time.Hour, "GET", nil); !errors.Is(err, ErrSigning) {
		t.Fatalf("err = %v, want ErrSigning", err)
	}
}
