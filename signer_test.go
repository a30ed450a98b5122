package kalshi

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func testKeyPEM(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func testSigner(t *testing.T) (*Signer, *rsa.PrivateKey) {
	t.Helper()
	key, pemData := testKeyPEM(t)
	s, err := NewSignerFromPEM("test-key-id", pemData)
	if err != nil {
		t.Fatalf("NewSignerFromPEM: %v", err)
	}
	return s, key
}

// verifyPSS checks sig against the payload ts+METHOD+path.
func verifyPSS(pub *rsa.PublicKey, ts, method, path, sig string) bool {
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	hash := sha256.Sum256([]byte(ts + method + path))
	err = rsa.VerifyPSS(pub, crypto.SHA256, hash[:], raw, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	return err == nil
}

func TestNewSignerFromFile(t *testing.T) {
	_, pemData := testKeyPEM(t)
	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, pemData, 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := NewSigner("kid-1", path)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if s.KeyID() != "kid-1" {
		t.Errorf("KeyID = %q, want kid-1", s.KeyID())
	}
}

func TestNewSignerFailsFast(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := NewSigner("kid", filepath.Join(t.TempDir(), "nope.pem")); err == nil {
			t.Error("expected error for missing key file")
		}
	})

	t.Run("empty key id", func(t *testing.T) {
		if _, err := NewSigner("", "anything.pem"); err == nil {
			t.Error("expected error for empty key id")
		}
	})

	t.Run("garbage pem", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.pem")
		os.WriteFile(path, []byte("not a pem file"), 0o600)
		if _, err := NewSigner("kid", path); err == nil {
			t.Error("expected error for garbage PEM")
		}
	})

	t.Run("non-rsa key", func(t *testing.T) {
		ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		der, err := x509.MarshalPKCS8PrivateKey(ecKey)
		if err != nil {
			t.Fatal(err)
		}
		pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
		if _, err := NewSignerFromPEM("kid", pemData); err == nil {
			t.Error("expected error for non-RSA key")
		}
	})
}

func TestSignPayloadVerifies(t *testing.T) {
	s, key := testSigner(t)

	now := time.Now()
	ts, sig, err := s.sign("get", "/trade-api/v2/portfolio/balance", now)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if want := strconv.FormatInt(now.UnixMilli(), 10); ts != want {
		t.Errorf("timestamp = %s, want %s", ts, want)
	}

	// The signed payload is ts + upper-cased method + path.
	if !verifyPSS(&key.PublicKey, ts, "GET", "/trade-api/v2/portfolio/balance", sig) {
		t.Error("signature does not verify for ts+GET+path")
	}

	// Any changed input must break verification.
	if verifyPSS(&key.PublicKey, ts, "POST", "/trade-api/v2/portfolio/balance", sig) {
		t.Error("signature verified with a different method")
	}
	if verifyPSS(&key.PublicKey, ts, "GET", "/trade-api/v2/portfolio/positions", sig) {
		t.Error("signature verified with a different path")
	}
	otherTS := strconv.FormatInt(now.UnixMilli()+1, 10)
	if verifyPSS(&key.PublicKey, otherTS, "GET", "/trade-api/v2/portfolio/balance", sig) {
		t.Error("signature verified with a different timestamp")
	}
}

func TestSignRequestSetsHeaders(t *testing.T) {
	s, key := testSigner(t)

	req, err := http.NewRequest(http.MethodPost, "https://trading-api.kalshi.com/trade-api/v2/portfolio/orders?limit=5", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SignRequest(req); err != nil {
		t.Fatalf("SignRequest: %v", err)
	}

	if got := req.Header.Get("KALSHI-ACCESS-KEY"); got != "test-key-id" {
		t.Errorf("access key header = %q", got)
	}
	ts := req.Header.Get("KALSHI-ACCESS-TIMESTAMP")
	if _, err := strconv.ParseInt(ts, 10, 64); err != nil {
		t.Errorf("timestamp header %q is not integer millis", ts)
	}

	// Signature covers the path only, never the query string.
	sig := req.Header.Get("KALSHI-ACCESS-SIGNATURE")
	if !verifyPSS(&key.PublicKey, ts, "POST", "/trade-api/v2/portfolio/orders", sig) {
		t.Error("signature does not verify for the request path")
	}
}

func TestWSHeaders(t *testing.T) {
	s, key := testSigner(t)

	h, err := s.WSHeaders("/trade-api/ws/v2")
	if err != nil {
		t.Fatalf("WSHeaders: %v", err)
	}

	ts := h.Get("KALSHI-ACCESS-TIMESTAMP")
	sig := h.Get("KALSHI-ACCESS-SIGNATURE")
	if !verifyPSS(&key.PublicKey, ts, "GET", "/trade-api/ws/v2", sig) {
		t.Error("ws handshake signature does not verify")
	}
}
