// Package refresh coordinates the renewal of the gateway's token pair with the
// portal backend. It guarantees that no matter how many request paths observe
// an expired access token at the same time, only a single refresh exchange is
// ever in flight.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codearena/portal-gateway/internal/gwerrors"
	"github.com/codearena/portal-gateway/internal/models"
	"github.com/codearena/portal-gateway/internal/tokenstore"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const defaultExchangeTimeout = 30 * time.Second

type waiterResult struct {
	accessToken string
	err         error
}

// Coordinator owns the Idle/Refreshing state machine and the waiter queue.
// The zero value is not usable, construct it with NewCoordinator.
type Coordinator struct {
	lock       sync.Mutex
	refreshing bool
	// waiters are buffered channels keyed by waiter ID in enqueue order, so
	// completion resolves them FIFO and a cancelled waiter can drop out by key
	waiters *orderedmap.OrderedMap[string, chan waiterResult]

	tokenStore      *tokenstore.TokenStore
	exchanger       Exchanger
	idGenerator     models.IDGenerator
	exchangeTimeout time.Duration
}

// ObtainFreshToken returns a fresh access token, triggering a refresh exchange
// or joining one already in flight. staleToken is the access token the caller
// observed failing: when the store already holds a different token, a refresh
// completed in the meantime and its result is returned without a new
// exchange. Refresh tokens can be one-time-use, a duplicate exchange would
// invalidate the whole session. The returned error is
// gwerrors.ErrNoRefreshToken when the session cannot be renewed at all and
// wraps gwerrors.ErrRefreshExchange when the exchange itself failed. Both
// leave the token store cleared.
func (c *Coordinator) ObtainFreshToken(ctx context.Context, staleToken string) (string, error) {
	c.lock.Lock()
	if current, found := c.tokenStore.AccessToken(); found && current.Value != staleToken {
		c.lock.Unlock()
		return current.Value, nil
	}
	if c.refreshing {
		return c.wait(ctx)
	}
	refreshToken, found := c.tokenStore.RefreshToken()
	if !found {
		c.lock.Unlock()
		c.tokenStore.Clear(ctx)
		return "", gwerrors.ErrNoRefreshToken
	}
	c.refreshing = true
	c.lock.Unlock()

	accessToken, err := c.exchange(ctx, refreshToken)

	c.lock.Lock()
	c.refreshing = false
	resolved := c.drainWaiters()
	c.lock.Unlock()

	for _, waiter := range resolved {
		// buffered channels: delivery to an abandoned waiter is a no-op
		waiter <- waiterResult{accessToken: accessToken, err: err}
	}
	return accessToken, err
}

// wait enqueues a waiter and suspends until the in-flight refresh completes or
// the caller gives up. Called with c.lock held, returns with it released.
func (c *Coordinator) wait(ctx context.Context) (string, error) {
	waiterID, err := c.idGenerator.ID()
	if err != nil {
		c.lock.Unlock()
		return "", err
	}
	waiter := make(chan waiterResult, 1)
	c.waiters.Set(waiterID, waiter)
	c.lock.Unlock()

	select {
	case result := <-waiter:
		return result.accessToken, result.err
	case <-ctx.Done():
		// discard our queue slot, the shared refresh state is unaffected
		c.lock.Lock()
		c.waiters.Delete(waiterID)
		c.lock.Unlock()
		return "", ctx.Err()
	}
}

// exchange performs the refresh call and stores the outcome. The exchange runs
// detached from the winning caller's cancellation: its result is shared by
// every queued waiter, so one caller giving up must not fail the rest.
func (c *Coordinator) exchange(ctx context.Context, refreshToken models.AuthToken) (string, error) {
	exchangeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.exchangeTimeout)
	defer cancel()

	result, err := c.exchanger.Exchange(exchangeCtx, refreshToken.Value)
	if err != nil {
		slog.Error("REFRESH", "message", "the refresh exchange failed", "error", err)
		c.tokenStore.Clear(ctx)
		return "", fmt.Errorf("%w: %v", gwerrors.ErrRefreshExchange, err)
	}
	pair, err := c.tokenStore.SetTokenPair(ctx, result.AccessToken, result.RefreshToken)
	if err != nil {
		slog.Error("REFRESH", "message", "storing the refreshed tokens failed", "error", err)
		c.tokenStore.Clear(ctx)
		return "", fmt.Errorf("%w: %v", gwerrors.ErrRefreshExchange, err)
	}
	slog.Debug("REFRESH", "message", "token pair refreshed", "accessToken", pair.AccessToken)
	return pair.AccessToken.Value, nil
}

// drainWaiters empties the queue in FIFO order. Called with c.lock held.
func (c *Coordinator) drainWaiters() []chan waiterResult {
	resolved := make([]chan waiterResult, 0, c.waiters.Len())
	for entry := c.waiters.Oldest(); entry != nil; entry = entry.Next() {
		resolved = append(resolved, entry.Value)
	}
	c.waiters = orderedmap.New[string, chan waiterResult]()
	return resolved
}

type CoordinatorOption func(*Coordinator) error

func WithTokenStore(store *tokenstore.TokenStore) CoordinatorOption {
	return func(c *Coordinator) error {
		c.tokenStore = store
		return nil
	}
}

func WithExchanger(exchanger Exchanger) CoordinatorOption {
	return func(c *Coordinator) error {
		c.exchanger = exchanger
		return nil
	}
}

func WithExchangeTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid exchange timeout (%s)", timeout)
		}
		c.exchangeTimeout = timeout
		return nil
	}
}

// NewCoordinator creates a Coordinator, constructed once per process and
// injected into the request pipeline.
func NewCoordinator(options ...CoordinatorOption) (*Coordinator, error) {
	coordinator := Coordinator{
		waiters:         orderedmap.New[string, chan waiterResult](),
		idGenerator:     models.ULIDGenerator{},
		exchangeTimeout: defaultExchangeTimeout,
	}
	for _, opt := range options {
		err := opt(&coordinator)
		if err != nil {
			return nil, err
		}
	}
	if coordinator.tokenStore == nil {
		return nil, fmt.Errorf("token store not initialized")
	}
	if coordinator.exchanger == nil {
		return nil, fmt.Errorf("exchanger not initialized")
	}
	return &coordinator, nil
}
