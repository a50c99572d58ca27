package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Exchanger performs a single refresh exchange with the backend
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (ExchangeResult, error)
}

// ExchangeResult is the outcome of a successful refresh exchange. RefreshToken
// is empty when the backend did not rotate the refresh token.
type ExchangeResult struct {
	AccessToken  string
	RefreshToken string
}

type exchangeRequest struct {
	Refresh string `json:"refresh"`
}

type exchangeResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// HTTPExchanger implements Exchanger against the portal backend's refresh endpoint
type HTTPExchanger struct {
	refreshURL *url.URL
	client     *http.Client
}

func (e *HTTPExchanger) Exchange(ctx context.Context, refreshToken string) (ExchangeResult, error) {
	payload, err := json.Marshal(exchangeRequest{Refresh: refreshToken})
	if err != nil {
		return ExchangeResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.refreshURL.String(), bytes.NewReader(payload))
	if err != nil {
		return ExchangeResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := e.client.Do(req)
	if err != nil {
		return ExchangeResult{}, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return ExchangeResult{}, fmt.Errorf("the refresh endpoint returned status %d", res.StatusCode)
	}
	var response exchangeResponse
	err = json.NewDecoder(res.Body).Decode(&response)
	if err != nil {
		return ExchangeResult{}, fmt.Errorf("cannot decode the refresh response: %w", err)
	}
	if response.Access == "" {
		return ExchangeResult{}, fmt.Errorf("the refresh response did not contain an access token")
	}
	return ExchangeResult{AccessToken: response.Access, RefreshToken: response.Refresh}, nil
}

type HTTPExchangerOption func(*HTTPExchanger) error

func WithRefreshURL(refreshURL *url.URL) HTTPExchangerOption {
	return func(e *HTTPExchanger) error {
		e.refreshURL = refreshURL
		return nil
	}
}

func WithHTTPClient(client *http.Client) HTTPExchangerOption {
	return func(e *HTTPExchanger) error {
		e.client = client
		return nil
	}
}

func NewHTTPExchanger(options ...HTTPExchangerOption) (*HTTPExchanger, error) {
	exchanger := HTTPExchanger{client: http.DefaultClient}
	for _, opt := range options {
		err := opt(&exchanger)
		if err != nil {
			return nil, err
		}
	}
	if exchanger.refreshURL == nil {
		return nil, fmt.Errorf("refresh URL not initialized")
	}
	return &exchanger, nil
}
