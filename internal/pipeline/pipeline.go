// Package pipeline wraps the transport to the portal backend with bearer
// credential handling: it attaches the current access token to every outbound
// call, recovers from an expired token through a single coordinated refresh
// and replay, and classifies terminal failures into human-safe errors.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/codearena/portal-gateway/internal/classify"
	"github.com/codearena/portal-gateway/internal/notify"
	"github.com/codearena/portal-gateway/internal/refresh"
	"github.com/codearena/portal-gateway/internal/tokenstore"
)

// terminal 401 bodies are only read for message extraction, anything beyond
// this is not a message meant for a user
const maxErrorBodyBytes = 64 * 1024

// Doer is the transport boundary, any HTTP client satisfies it
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Pipeline struct {
	transport   Doer
	tokenStore  *tokenstore.TokenStore
	coordinator *refresh.Coordinator
	sink        notify.Sink
}

// Send submits a request to the portal backend. Responses with any status
// other than unauthorized are returned as-is, callers interpret
// application-level errors themselves. An unauthorized response triggers at
// most one token refresh and one replay, any terminal failure comes back as a
// *classify.APIError and produces at most one notification.
func (p *Pipeline) Send(ctx context.Context, descriptor *Descriptor) (*http.Response, error) {
	accessToken := ""
	// a missing token is not an error, unauthenticated requests may proceed
	if token, found := p.tokenStore.AccessToken(); found {
		accessToken = token.Value
	}
	res, err := p.submit(ctx, descriptor, accessToken)
	if err != nil {
		return nil, p.fail(classify.ClassifyError(err, descriptor.Silent))
	}
	if res.StatusCode != http.StatusUnauthorized {
		return res, nil
	}
	if descriptor.Retried() {
		return nil, p.failResponse(res, descriptor)
	}
	descriptor.markRetried()
	discardBody(res)

	newAccessToken, err := p.coordinator.ObtainFreshToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, p.fail(classify.ClassifyError(err, descriptor.Silent))
		}
		slog.Info("PIPELINE", "message", "session terminated", "error", err, "requestID", descriptor.ID)
		return nil, p.fail(classify.SessionExpired(err, descriptor.Silent))
	}
	slog.Debug("PIPELINE", "message", "replaying request with refreshed token", "requestID", descriptor.ID)

	res, err = p.submit(ctx, descriptor, newAccessToken)
	if err != nil {
		return nil, p.fail(classify.ClassifyError(err, descriptor.Silent))
	}
	if res.StatusCode == http.StatusUnauthorized {
		// the replayed request was rejected as well, do not loop
		return nil, p.failResponse(res, descriptor)
	}
	return res, nil
}

func (p *Pipeline) submit(ctx context.Context, descriptor *Descriptor, accessToken string) (*http.Response, error) {
	req, err := descriptor.request(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return p.transport.Do(req)
}

// failResponse turns an error response into a terminal classified error,
// consuming the response body for message extraction
func (p *Pipeline) failResponse(res *http.Response, descriptor *Descriptor) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))
	res.Body.Close()
	return p.fail(classify.ClassifyResponse(res.StatusCode, body, descriptor.Silent))
}

// fail notifies the sink about a terminal failure, at most once, then returns
// the error for the caller
func (p *Pipeline) fail(apiErr *classify.APIError) error {
	if !apiErr.Silent {
		p.sink.Notify(apiErr.Kind, apiErr.Message)
	}
	return apiErr
}

func discardBody(res *http.Response) {
	io.Copy(io.Discard, io.LimitReader(res.Body, maxErrorBodyBytes))
	res.Body.Close()
}

type PipelineOption func(*Pipeline) error

func WithTransport(transport Doer) PipelineOption {
	return func(p *Pipeline) error {
		p.transport = transport
		return nil
	}
}

func WithTokenStore(store *tokenstore.TokenStore) PipelineOption {
	return func(p *Pipeline) error {
		p.tokenStore = store
		return nil
	}
}

func WithRefreshCoordinator(coordinator *refresh.Coordinator) PipelineOption {
	return func(p *Pipeline) error {
		p.coordinator = coordinator
		return nil
	}
}

func WithNotificationSink(sink notify.Sink) PipelineOption {
	return func(p *Pipeline) error {
		p.sink = sink
		return nil
	}
}

// NewPipeline creates a Pipeline, by default on top of http.DefaultClient
// with notifications going to the log.
func NewPipeline(options ...PipelineOption) (*Pipeline, error) {
	pipeline := Pipeline{
		transport: http.DefaultClient,
		sink:      notify.SlogSink{},
	}
	for _, opt := range options {
		err := opt(&pipeline)
		if err != nil {
			return nil, err
		}
	}
	if pipeline.tokenStore == nil {
		return nil, fmt.Errorf("token store not initialized")
	}
	if pipeline.coordinator == nil {
		return nil, fmt.Errorf("refresh coordinator not initialized")
	}
	return &pipeline, nil
}
