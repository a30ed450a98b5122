package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Header names attached to every authenticated request.
const (
	headerAccessKey       = "KALSHI-ACCESS-KEY"
	headerAccessSignature = "KALSHI-ACCESS-SIGNATURE"
	headerAccessTimestamp = "KALSHI-ACCESS-TIMESTAMP"
)

// Signer implements Kalshi API request signing using RSA-PSS with SHA-256.
// The signed payload is timestamp_ms + METHOD + path (query string excluded).
// Both the HTTP transport and the WebSocket feed share one signer.
type Signer struct {
	keyID      string
	privateKey *rsa.PrivateKey
}

// NewSigner loads an RSA private key from a PEM file and returns a Signer.
// The key file is read once; the parsed key is held for the life of the
// signer.
func NewSigner(keyID, keyPath string) (*Signer, error) {
	if keyID == "" {
		return nil, fmt.Errorf("kalshi: api key id is required")
	}

	pemData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read key file %s: %w", keyPath, err)
	}

	key, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", keyPath, err)
	}

	return &Signer{keyID: keyID, privateKey: key}, nil
}

// NewSignerFromPEM builds a Signer from in-memory PEM data.
func NewSignerFromPEM(keyID string, pemData []byte) (*Signer, error) {
	if keyID == "" {
		return nil, fmt.Errorf("kalshi: api key id is required")
	}
	key, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{keyID: keyID, privateKey: key}, nil
}

// parsePrivateKey decodes a PEM block holding a PKCS#8 or PKCS#1 RSA key.
func parsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not RSA (got %T)", parsed)
		}
		return rsaKey, nil
	}
	if pk1, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return pk1, nil
	}
	return nil, fmt.Errorf("not a PKCS#8 or PKCS#1 private key")
}

// KeyID returns the access key id this signer authenticates as.
func (s *Signer) KeyID() string { return s.keyID }

// SignRequest sets the three access headers on req. The signature covers
// the request path only, never the query string.
func (s *Signer) SignRequest(req *http.Request) error {
	ts, sig, err := s.sign(req.Method, req.URL.Path, time.Now())
	if err != nil {
		return err
	}

	req.Header.Set(headerAccessKey, s.keyID)
	req.Header.Set(headerAccessSignature, sig)
	req.Header.Set(headerAccessTimestamp, ts)
	return nil
}

// WSHeaders returns auth headers for a WebSocket dial against path
// (e.g. "/trade-api/ws/v2"). The handshake is a GET.
func (s *Signer) WSHeaders(path string) (http.Header, error) {
	ts, sig, err := s.sign(http.MethodGet, path, time.Now())
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set(headerAccessKey, s.keyID)
	h.Set(headerAccessSignature, sig)
	h.Set(headerAccessTimestamp, ts)
	return h, nil
}

func (s *Signer) sign(method, path string, now time.Time) (timestamp, signature string, err error) {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	message := ts + strings.ToUpper(method) + path

	hash := sha256.Sum256([]byte(message))

	sig, err := rsa.SignPSS(rand.Reader, s.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return "", "", fmt.Errorf("rsa sign pss: %w", err)
	}

	return ts, base64.StdEncoding.EncodeToString(sig), nil
}
