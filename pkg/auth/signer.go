// Package auth covers the two request-time authentication concerns of the
// proxy: signing outbound registry calls and resolving inbound credentials.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/devfans/golang/log"
)

// Signature headers expected by the Xano gateway.
const (
	HeaderAccessKey = "X-Access-Key"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
)

// Signer injects HMAC-SHA256 auth headers on outbound registry requests.
// When Key and Secret are empty the signer is a no-op, matching registries
// that run without request signing.
type Signer struct {
	Key    string
	Secret string
	Now    func() time.Time
}

// NewSigner constructs a signer for the given key/secret pair.
func NewSigner(key, secret string) *Signer {
	return &Signer{
		Key:    key,
		Secret: secret,
		Now:    time.Now,
	}
}

// Attach signs the request body and sets the signature headers. The payload
// is method, request path, unix timestamp and the SHA256 of the body joined
// by newlines.
func (s *Signer) Attach(req *http.Request, body []byte) {
	if s.Key == "" || s.Secret == "" {
		return
	}

	timestamp := strconv.FormatInt(s.Now().Unix(), 10)
	bodyHash := hashBody(body)
	signature := sign(s.Secret, req.Method, req.URL.RequestURI(), timestamp, bodyHash)

	req.Header.Set(HeaderAccessKey, s.Key)
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderNonce, nonce(16))
	req.Header.Set(HeaderSignature, signature)
}

func sign(secret, method, path, timestamp, bodyHash string) string {
	payload := strings.Join([]string{method, path, timestamp, bodyHash}, "\n")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func hashBody(body []byte) string {
	h := sha256.New()
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// nonce generates a random hexadecimal string of the given byte length.
func nonce(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		log.Error("Failed to generate nonce", "err", err)
	}
	return hex.EncodeToString(b)
}
