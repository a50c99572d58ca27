package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/codearena/portal-gateway/internal/gwerrors"
	"github.com/codearena/portal-gateway/internal/tokenstore"
	"github.com/go-co-op/gocron"
)

// ScheduleProactiveRefresh initialises a gocron job which renews the token
// pair ahead of the access token's expiry hint. Renewal goes through the
// coordinator so it obeys the same single-flight discipline as the request
// paths. Opaque access tokens have no expiry hint and are only ever refreshed
// reactively.
func ScheduleProactiveRefresh(
	ctx context.Context,
	coordinator *Coordinator,
	tokenStore *tokenstore.TokenStore,
	expiryMargin time.Duration,
	interval time.Duration,
) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(interval).Do(func() {
		refreshExpiringToken(ctx, coordinator, tokenStore, expiryMargin)
	})
	if err != nil {
		slog.Error("REFRESH", "message", "starting the gocron job failed", "error", err)
		return nil, err
	}
	s.StartAsync()
	slog.Info("proactive token refresh scheduled", "interval", interval, "margin", expiryMargin)
	return s, nil
}

func refreshExpiringToken(
	ctx context.Context,
	coordinator *Coordinator,
	tokenStore *tokenstore.TokenStore,
	expiryMargin time.Duration,
) {
	accessToken, found := tokenStore.AccessToken()
	if !found || !accessToken.ExpiresSoon(expiryMargin) {
		return
	}
	if _, found := tokenStore.RefreshToken(); !found {
		// nothing to renew with, the next 401 will terminate the session
		return
	}
	slog.Debug("REFRESH", "message", "access token expires soon, refreshing proactively", "accessToken", accessToken)
	_, err := coordinator.ObtainFreshToken(ctx, accessToken.Value)
	if err != nil && err != gwerrors.ErrNoRefreshToken {
		slog.Error("REFRESH", "message", "proactive refresh failed", "error", err)
	}
}
