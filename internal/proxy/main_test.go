package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/codearena/portal-gateway/internal/config"
	"github.com/codearena/portal-gateway/internal/notify"
	"github.com/codearena/portal-gateway/internal/pipeline"
	"github.com/codearena/portal-gateway/internal/refresh"
	"github.com/codearena/portal-gateway/internal/tokenstore"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGateway(t *testing.T, upstream *httptest.Server) (*echo.Echo, *tokenstore.TokenStore) {
	t.Helper()
	baseURL, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	upstreamConfig := config.UpstreamConfig{
		BaseURL:               baseURL,
		RefreshPath:           "/auth/refresh",
		RequestTimeoutSeconds: 10,
	}
	store, err := tokenstore.NewTokenStore()
	require.NoError(t, err)
	exchanger, err := refresh.NewHTTPExchanger(
		refresh.WithRefreshURL(baseURL.JoinPath(upstreamConfig.RefreshPath)),
		refresh.WithHTTPClient(upstream.Client()),
	)
	require.NoError(t, err)
	coordinator, err := refresh.NewCoordinator(refresh.WithTokenStore(store), refresh.WithExchanger(exchanger))
	require.NoError(t, err)
	p, err := pipeline.NewPipeline(
		pipeline.WithTransport(upstream.Client()),
		pipeline.WithTokenStore(store),
		pipeline.WithRefreshCoordinator(coordinator),
		pipeline.WithNotificationSink(notify.NopSink{}),
	)
	require.NoError(t, err)
	server, err := NewServer(WithConfig(upstreamConfig), WithPipeline(p))
	require.NoError(t, err)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler()
	server.RegisterHandlers(e)
	return e, store
}

func TestForwardAttachesBearerAndStripsCookies(t *testing.T) {
	var seenAuth, seenCookie, seenSilent string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		seenCookie = r.Header.Get("Cookie")
		seenSilent = r.Header.Get(SilentHeader)
		w.Header().Set("X-Backend", "portal")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"challenges": []}`))
	}))
	t.Cleanup(upstream.Close)
	e, store := setupGateway(t, upstream)
	_, err := store.SetTokenPair(context.Background(), "access1", "refresh1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/challenges?page=2", nil)
	req.Header.Set("Cookie", "session=abc")
	req.Header.Set(SilentHeader, "1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bearer access1", seenAuth)
	assert.Empty(t, seenCookie)
	assert.Empty(t, seenSilent, "gateway-internal headers never reach the upstream")
	assert.Equal(t, "portal", rec.Header().Get("X-Backend"))
	assert.JSONEq(t, `{"challenges": []}`, rec.Body.String())
}

func TestForwardStripsHopByHopResponseHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Keep-Alive", "timeout=5")
		w.Header().Set("Proxy-Authenticate", "Basic")
		w.Header().Set("Upgrade", "h2c")
		w.Header().Set("X-Backend", "portal")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(upstream.Close)
	e, _ := setupGateway(t, upstream)

	req := httptest.NewRequest(http.MethodGet, "/api/challenges", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Keep-Alive"))
	assert.Empty(t, rec.Header().Get("Proxy-Authenticate"))
	assert.Empty(t, rec.Header().Get("Upgrade"))
	assert.Equal(t, "portal", rec.Header().Get("X-Backend"), "end-to-end headers pass through")
}

func TestForwardPassesThroughApplicationErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "challenge not found"}`, http.StatusNotFound)
	}))
	t.Cleanup(upstream.Close)
	e, _ := setupGateway(t, upstream)

	req := httptest.NewRequest(http.MethodGet, "/api/challenges/42", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code, "non-401 statuses pass through untouched")
}

func TestForwardBody(t *testing.T) {
	var seenBody string
	var seenContentType string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seenBody = string(body)
		seenContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(upstream.Close)
	e, _ := setupGateway(t, upstream)

	req := httptest.NewRequest(http.MethodPost, "/api/contests", strings.NewReader(`{"name": "spring cup"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `{"name": "spring cup"}`, seenBody)
	assert.Equal(t, "application/json", seenContentType)
}

func TestSessionExpiredRendering(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(upstream.Close)
	e, store := setupGateway(t, upstream)
	// access token without a refresh token: the 401 terminates the session
	_, err := store.SetTokenPair(context.Background(), "access1", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/challenges", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var payload errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "unauthorized", string(payload.Error.Kind))
	assert.Contains(t, payload.Error.Message, "session has expired")
}

func TestLeakyUpstreamBodiesNeverSurface(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("<html><body>Traceback (most recent call last)</body></html>"))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(upstream.Close)
	e, store := setupGateway(t, upstream)
	_, err := store.SetTokenPair(context.Background(), "access1", "refresh1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/challenges", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.NotContains(t, rec.Body.String(), "Traceback")
	assert.NotContains(t, rec.Body.String(), "<html")
}
