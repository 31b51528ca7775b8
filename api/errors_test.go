package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         *APIError
		auth        bool
		rateLimited bool
	}{
		{"unauthorized status", &APIError{StatusCode: http.StatusUnauthorized}, true, false},
		{"forbidden status", &APIError{StatusCode: http.StatusForbidden}, true, false},
		{"auth code low", &APIError{StatusCode: http.StatusBadRequest, Code: 300}, true, false},
		{"auth code high", &APIError{StatusCode: http.StatusBadRequest, Code: 317}, true, false},
		{"outside auth range", &APIError{StatusCode: http.StatusBadRequest, Code: 318}, false, false},
		{"too many requests", &APIError{StatusCode: http.StatusTooManyRequests}, false, true},
		{"ban code", &APIError{StatusCode: http.StatusForbidden, Code: 105}, true, true},
		{"bad market", &APIError{StatusCode: http.StatusBadRequest, Code: 205}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("call failed: %w", tt.err)
			assert.Equal(t, tt.auth, errors.Is(wrapped, ErrAuthentication))
			assert.Equal(t, tt.rateLimited, errors.Is(wrapped, ErrRateLimited))
			assert.False(t, errors.Is(wrapped, ErrTransport))
		})
	}
}

func TestMissingCredentialsIsAuthentication(t *testing.T) {
	assert.ErrorIs(t, ErrMissingCredentials, ErrAuthentication)
}

func TestAPIErrorMessage(t *testing.T) {
	assert.Equal(t, "bitvavo: 205: market parameter is invalid.",
		(&APIError{StatusCode: 400, Code: 205, Message: "market parameter is invalid."}).Error())
	assert.Equal(t, "bitvavo: http 502: Bad Gateway",
		(&APIError{StatusCode: 502, Message: "Bad Gateway"}).Error())
}

func TestDecodeResponse(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var out struct {
			Time int64 `json:"time"`
		}
		require.NoError(t, decodeResponse(200, []byte(`{"time":42}`), &out))
		assert.EqualValues(t, 42, out.Time)
	})

	t.Run("malformed success body", func(t *testing.T) {
		var out []Market
		err := decodeResponse(200, []byte(`{"not":"a list"}`), &out)
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("error body", func(t *testing.T) {
		err := decodeResponse(403, []byte(`{"errorCode":309,"error":"The signature is invalid."}`), nil)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 403, apiErr.StatusCode)
		assert.Equal(t, 309, apiErr.Code)
		assert.Equal(t, "The signature is invalid.", apiErr.Message)
	})

	t.Run("non json error body", func(t *testing.T) {
		err := decodeResponse(502, []byte("<html>bad gateway</html>\n"), nil)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Zero(t, apiErr.Code)
		assert.Equal(t, "<html>bad gateway</html>", apiErr.Message)
	})

	t.Run("empty error body", func(t *testing.T) {
		err := decodeResponse(429, nil, nil)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Too Many Requests", apiErr.Message)
		assert.ErrorIs(t, err, ErrRateLimited)
	})
}
