// Package session establishes an authenticated marketplace session through
// the portal.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"resty.dev/v3"

	"catalog/importer/internal/config"
)

var (
	ErrLoginFailed      = errors.New("portal login failed")
	ErrMarketplaceToken = errors.New("failed to obtain marketplace token")
)

type Credentials struct {
	Username      string
	Password      string
	MarketplaceID string
	Environment   string
}

// CredentialsFromConfig copies the login fields out of the session config.
func CredentialsFromConfig(cfg config.SessionConfig) Credentials {
	return Credentials{
		Username:      cfg.Username,
		Password:      cfg.Password,
		MarketplaceID: cfg.MarketplaceID,
		Environment:   cfg.Environment,
	}
}

// Session is an authenticated context for catalog API calls.
type Session struct {
	AccessToken   string
	APIURL        string
	MarketplaceID string
	Environment   string
}

type Provider interface {
	Login(ctx context.Context, creds Credentials) (*Session, error)
}

type portalProvider struct {
	portalURL string
	clientID  string
	apiURL    string
	http      *resty.Client
}

func NewPortalProvider(cfg config.SessionConfig, catalogCfg config.CatalogConfig) Provider {
	client := resty.New().
		SetTimeout(time.Duration(catalogCfg.Timeout)*time.Second).
		SetRetryCount(catalogCfg.MaxRetries).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("Accept", "application/json")

	return &portalProvider{
		portalURL: strings.TrimRight(cfg.PortalURL, "/"),
		clientID:  cfg.PortalClientID,
		apiURL:    cfg.ResolveAPIURL(),
		http:      client,
	}
}

type marketplaceTokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Login signs into the portal with the password grant, then exchanges the
// portal token for one scoped to the marketplace.
func (p *portalProvider) Login(ctx context.Context, creds Credentials) (*Session, error) {
	oauthCfg := &oauth2.Config{
		ClientID: p.clientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  p.portalURL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	portalToken, err := oauthCfg.PasswordCredentialsToken(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	log.Debugf("🔑 Portal login succeeded for %s", creds.Username)

	url := fmt.Sprintf("%s/organizations/%s/token", p.portalURL, creds.MarketplaceID)
	resp, err := p.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+portalToken.AccessToken).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarketplaceToken, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrMarketplaceToken, url, resp.Status())
	}

	var body marketplaceTokenResponse
	if err := json.Unmarshal([]byte(resp.String()), &body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrMarketplaceToken, err)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty token for marketplace %s", ErrMarketplaceToken, creds.MarketplaceID)
	}

	log.Infof("✅ Authenticated to marketplace %s (%s)", creds.MarketplaceID, creds.Environment)

	return &Session{
		AccessToken:   body.AccessToken,
		APIURL:        p.apiURL,
		MarketplaceID: creds.MarketplaceID,
		Environment:   creds.Environment,
	}, nil
}
