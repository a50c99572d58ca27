package refresh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupExchanger(t *testing.T, handler http.HandlerFunc) *HTTPExchanger {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	refreshURL, err := url.Parse(server.URL + "/auth/refresh")
	require.NoError(t, err)
	exchanger, err := NewHTTPExchanger(WithRefreshURL(refreshURL), WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return exchanger
}

func TestExchange(t *testing.T) {
	exchanger := setupExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/refresh", r.URL.Path)
		var request exchangeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "refresh1", request.Refresh)
		json.NewEncoder(w).Encode(exchangeResponse{Access: "access2", Refresh: "refresh2"})
	})

	result, err := exchanger.Exchange(context.Background(), "refresh1")
	require.NoError(t, err)

	assert.Equal(t, "access2", result.AccessToken)
	assert.Equal(t, "refresh2", result.RefreshToken)
}

func TestExchangeWithoutRotation(t *testing.T) {
	exchanger := setupExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access": "access2"})
	})

	result, err := exchanger.Exchange(context.Background(), "refresh1")
	require.NoError(t, err)

	assert.Equal(t, "access2", result.AccessToken)
	assert.Empty(t, result.RefreshToken)
}

func TestExchangeNon2xxFails(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError} {
		exchanger := setupExchanger(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		_, err := exchanger.Exchange(context.Background(), "refresh1")

		assert.Error(t, err, "status %d", status)
	}
}

func TestExchangeMissingAccessToken(t *testing.T) {
	exchanger := setupExchanger(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"refresh": "refresh2"})
	})

	_, err := exchanger.Exchange(context.Background(), "refresh1")

	assert.Error(t, err)
}

func TestExchangeTransportError(t *testing.T) {
	refreshURL, err := url.Parse("http://127.0.0.1:1/auth/refresh")
	require.NoError(t, err)
	exchanger, err := NewHTTPExchanger(WithRefreshURL(refreshURL))
	require.NoError(t, err)

	_, err = exchanger.Exchange(context.Background(), "refresh1")

	assert.Error(t, err)
}
