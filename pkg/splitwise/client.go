/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package splitwise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/telekom/splitwise-relay/pkg/metrics"
	"github.com/telekom/splitwise-relay/pkg/tokenstore"
)

// DefaultBaseURL is the public Splitwise host serving both OAuth and API endpoints.
const DefaultBaseURL = "https://secure.splitwise.com"

const (
	authorizePath   = "/oauth/authorize"
	tokenPath       = "/oauth/token"
	currentUserPath = "/api/v3.0/get_current_user"
	expensesPath    = "/api/v3.0/get_expenses"

	// maxResponseSize caps how much of an upstream body is read into memory.
	maxResponseSize = 10 << 20
)

// Endpoint labels used in errors, logs and metrics.
const (
	EndpointToken       = "token"
	EndpointCurrentUser = "get_current_user"
	EndpointExpenses    = "get_expenses"
)

// Config holds the registered OAuth application and the upstream host.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
}

// UpstreamError describes a failed call to the Splitwise API. StatusCode is
// zero for transport failures. Body holds the raw upstream response and is
// meant for logs only.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("splitwise %s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("splitwise %s: %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Client talks to the Splitwise OAuth and REST endpoints. It holds no token
// state; callers pass the access token per call.
type Client struct {
	oauth      oauth2.Config
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for all upstream calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient builds a Client. No timeout is applied to upstream calls; they are
// bounded by the caller's context only.
func NewClient(cfg Config, opts ...Option) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + authorizePath,
				TokenURL: base + tokenPath,
				// Splitwise expects client credentials in the form body.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		baseURL:    base,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthorizeURL returns the upstream authorize URL carrying response_type=code,
// the client id, the redirect URI and the given state.
func (c *Client) AuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token pair with a
// form-encoded authorization_code grant.
func (c *Client) Exchange(ctx context.Context, code string) (tokenstore.Pair, error) {
	if code == "" {
		return tokenstore.Pair{}, errors.New("authorization code is required")
	}

	start := time.Now()
	tok, err := c.oauth.Exchange(c.clientContext(ctx), code)
	metrics.UpstreamDuration.WithLabelValues(EndpointToken).Observe(time.Since(start).Seconds())
	if err != nil {
		upErr := &UpstreamError{Endpoint: EndpointToken, Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			upErr.Body = string(re.Body)
			if re.Response != nil {
				upErr.StatusCode = re.Response.StatusCode
			}
		}
		recordUpstream(EndpointToken, upErr.StatusCode)
		return tokenstore.Pair{}, upErr
	}
	recordUpstream(EndpointToken, http.StatusOK)

	return tokenstore.Pair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}

// CurrentUser fetches the authenticated user's profile.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (json.RawMessage, error) {
	return c.get(ctx, accessToken, EndpointCurrentUser, currentUserPath, nil)
}

// Expenses lists the user's expenses. since is forwarded verbatim as the
// dated_after filter when non-empty.
func (c *Client) Expenses(ctx context.Context, accessToken, since string) (json.RawMessage, error) {
	var query url.Values
	if since != "" {
		query = url.Values{"dated_after": {since}}
	}
	return c.get(ctx, accessToken, EndpointExpenses, expensesPath, query)
}

func (c *Client) get(ctx context.Context, accessToken, endpoint, path string, query url.Values) (json.RawMessage, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &UpstreamError{Endpoint: endpoint, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	hc := oauth2.NewClient(c.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	start := time.Now()
	resp, err := hc.Do(req)
	metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		recordUpstream(endpoint, 0)
		return nil, &UpstreamError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	recordUpstream(endpoint, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if !json.Valid(body) {
		return nil, &UpstreamError{Endpoint: endpoint, Body: string(body), Err: errors.New("response is not valid JSON")}
	}
	return json.RawMessage(body), nil
}

// clientContext makes the oauth2 package use the configured HTTP client.
func (c *Client) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func recordUpstream(endpoint string, status int) {
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	metrics.UpstreamRequests.WithLabelValues(endpoint, label).Inc()
}
