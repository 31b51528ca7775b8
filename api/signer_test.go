package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	s := NewSigner("key", "bitvavo")

	body := []byte(`{"market":"BTC-EUR","side":"buy","price":"5000","amount":"1.23","orderType":"limit"}`)
	assert.Equal(t,
		"44d022723a20973a18f7ee97398b9fdd405d2d019c8d39e24b8cc0dcb39ca016",
		s.Sign(1548172481125, "POST", "/v2/order", body))

	assert.Equal(t,
		"302e0fc31452f130a5b89cdc05f9a8295b53d2ce482e2c22d7c94ac91fcb5d4e",
		s.Sign(1548175200641, "GET", "/v2/time", nil))
}

func TestHeaders(t *testing.T) {
	s := NewSigner("my-key", "secret")

	h := s.Headers(1700000000000, "GET", "/v2/websocket", nil, 10*time.Second)
	assert.Equal(t, map[string]string{
		HeaderAccessKey:       "my-key",
		HeaderAccessSignature: "d4acb404edaa652cdf373149ffe43bdd7e303e5bbecdda03fc305290aa45832f",
		HeaderAccessTimestamp: "1700000000000",
		HeaderAccessWindow:    "10000",
	}, h)
}

func TestSignerValidAndWipe(t *testing.T) {
	var nilSigner *Signer
	assert.False(t, nilSigner.Valid())
	nilSigner.Wipe()

	assert.False(t, NewSigner("key", "").Valid())
	assert.False(t, NewSigner("", "secret").Valid())

	s := NewSigner("key", "secret")
	assert.True(t, s.Valid())

	s.Wipe()
	assert.Equal(t, "\x00\x00\x00", s.Key())
	assert.Equal(t, make([]byte, 6), s.secret)
}
