package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

// Account config keys understood by this provider.
const (
	cfgAccessToken  = "access_token"
	cfgRefreshToken = "refresh_token"
	cfgClientID     = "client_id"
	cfgClientSecret = "client_secret"
	cfgCalendarID   = "calendar_id"
)

// pageSize is the number of items requested per listing page.
const pageSize = 100

// NewDirectory creates a RemoteDirectory for a Google account and kind.
func NewDirectory(ctx context.Context, account domain.Account, kind domain.RecordKind) (driven.RemoteDirectory, error) {
	ts, err := tokenSource(ctx, account)
	if err != nil {
		return nil, err
	}

	switch kind {
	case domain.KindContact:
		return NewContactDirectory(ctx, ts)
	case domain.KindEvent:
		calendarID := account.Config[cfgCalendarID]
		if calendarID == "" {
			calendarID = "primary"
		}
		return NewEventDirectory(ctx, ts, calendarID)
	default:
		return nil, fmt.Errorf("%w: unknown record kind %q", domain.ErrInvalidInput, kind)
	}
}

// tokenSource builds an oauth2.TokenSource from the account's stored
// credentials. With a refresh token and client credentials the source
// refreshes itself; otherwise the access token is used as-is.
func tokenSource(ctx context.Context, account domain.Account) (oauth2.TokenSource, error) {
	access := account.Config[cfgAccessToken]
	refresh := account.Config[cfgRefreshToken]
	if access == "" && refresh == "" {
		return nil, fmt.Errorf("%w: account %s has no google credentials", domain.ErrInvalidInput, account.ID)
	}

	token := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}

	clientID := account.Config[cfgClientID]
	clientSecret := account.Config[cfgClientSecret]
	if refresh != "" && clientID != "" {
		cfg := &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     googleauth.Endpoint,
		}
		return cfg.TokenSource(ctx, token), nil
	}

	return oauth2.StaticTokenSource(token), nil
}
