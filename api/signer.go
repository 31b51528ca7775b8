package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

const (
	HeaderAccessKey       = "Bitvavo-Access-Key"
	HeaderAccessSignature = "Bitvavo-Access-Signature"
	HeaderAccessTimestamp = "Bitvavo-Access-Timestamp"
	HeaderAccessWindow    = "Bitvavo-Access-Window"
)

// Signer produces Bitvavo request signatures. Keys are held as []byte so
// they can be wiped.
type Signer struct {
	key    []byte
	secret []byte
}

func NewSigner(key, secret string) *Signer {
	return &Signer{
		key:    []byte(key),
		secret: []byte(secret),
	}
}

func (s *Signer) Key() string {
	return string(s.key)
}

// Valid reports whether both key and secret are set.
func (s *Signer) Valid() bool {
	return s != nil && len(s.key) > 0 && len(s.secret) > 0
}

// Sign returns hex(HMAC-SHA256(secret, timestamp + method + path + body)).
// path includes the version prefix and query string, e.g. /v2/order?market=BTC-EUR.
func (s *Signer) Sign(timestamp int64, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Headers builds the authentication headers for one request.
func (s *Signer) Headers(timestamp int64, method, path string, body []byte, window time.Duration) map[string]string {
	return map[string]string{
		HeaderAccessKey:       string(s.key),
		HeaderAccessSignature: s.Sign(timestamp, method, path, body),
		HeaderAccessTimestamp: strconv.FormatInt(timestamp, 10),
		HeaderAccessWindow:    strconv.FormatInt(window.Milliseconds(), 10),
	}
}

// Wipe clears the key material.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	clear(s.key)
	clear(s.secret)
}
