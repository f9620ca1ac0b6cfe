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

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/splitwise-relay/pkg/apiresponses"
	"github.com/telekom/splitwise-relay/pkg/metrics"
	"github.com/telekom/splitwise-relay/pkg/splitwise"
	"github.com/telekom/splitwise-relay/pkg/state"
	"github.com/telekom/splitwise-relay/pkg/system"
	"github.com/telekom/splitwise-relay/pkg/tokenstore"
)

// User-facing messages. The OAuth endpoints answer in plain text because they
// are opened in a browser; the proxy endpoints answer in JSON.
const (
	msgMissingStateSecret = "Missing SPLITWISE_STATE_SECRET"
	msgStateSignFailed    = "Failed to create state"
	msgInvalidState       = "Invalid state"
	msgNoCode             = "No code received."
	msgOAuthError         = "OAuth error."
	msgConnected          = "Successfully connected to Splitwise! You may close this window."
	msgFetchUserFailed    = "Failed to fetch user"
	msgFetchExpFailed     = "Failed to fetch expenses"
)

// Upstream is the subset of the Splitwise client the relay depends on.
type Upstream interface {
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (tokenstore.Pair, error)
	CurrentUser(ctx context.Context, accessToken string) (json.RawMessage, error)
	Expenses(ctx context.Context, accessToken, since string) (json.RawMessage, error)
}

var _ Upstream = (*splitwise.Client)(nil)

// Relay drives the OAuth handshake and proxies read calls with the cached
// access token.
type Relay struct {
	log      *zap.SugaredLogger
	signer   *state.Signer
	upstream Upstream
	store    tokenstore.Store
}

func New(log *zap.SugaredLogger, signer *state.Signer, upstream Upstream, store tokenstore.Store) *Relay {
	return &Relay{
		log:      log,
		signer:   signer,
		upstream: upstream,
		store:    store,
	}
}

// handleStart redirects the browser to the upstream authorize URL with a
// freshly signed state.
func (r *Relay) handleStart(c *gin.Context) {
	log := system.GetReqLogger(c, r.log)
	if !r.signer.HasSecret() {
		log.Error("State secret is not configured; refusing to start OAuth flow")
		apiresponses.RespondText(c, http.StatusInternalServerError, msgMissingStateSecret)
		return
	}

	signed, err := r.signer.Sign(r.signer.NewPayload())
	if err != nil {
		log.Errorw("Failed to sign OAuth state", "error", err)
		apiresponses.RespondText(c, http.StatusInternalServerError, msgStateSignFailed)
		return
	}

	c.Redirect(http.StatusFound, r.upstream.AuthorizeURL(signed))
}

// handleCallback verifies the state, exchanges the code and caches the token
// pair. The code is never exchanged when the state is invalid.
func (r *Relay) handleCallback(c *gin.Context) {
	log := system.GetReqLogger(c, r.log)
	code := c.Query("code")
	log.Infow("OAuth callback received", "hasCode", code != "")

	if _, err := r.signer.Verify(c.Query("state")); err != nil {
		metrics.StateVerifications.WithLabelValues(verificationResult(err)).Inc()
		log.Warnw("Rejected OAuth callback with invalid state", "error", err)
		apiresponses.RespondText(c, http.StatusBadRequest, msgInvalidState)
		return
	}
	metrics.StateVerifications.WithLabelValues("valid").Inc()

	if code == "" {
		apiresponses.RespondText(c, http.StatusBadRequest, msgNoCode)
		return
	}

	pair, err := r.upstream.Exchange(c.Request.Context(), code)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("failure").Inc()
		logUpstreamError(log, "Splitwise token exchange failed", err)
		apiresponses.RespondText(c, http.StatusInternalServerError, msgOAuthError)
		return
	}
	metrics.TokenExchanges.WithLabelValues("success").Inc()

	r.store.Set(pair)
	log.Infow("Splitwise tokens saved", "hasRefreshToken", pair.RefreshToken != "")
	apiresponses.RespondText(c, http.StatusOK, msgConnected)
}

func (r *Relay) handleMe(c *gin.Context) {
	log := system.GetReqLogger(c, r.log)
	token, ok := r.accessToken()
	if !ok {
		apiresponses.RespondUnauthorized(c)
		return
	}

	body, err := r.upstream.CurrentUser(c.Request.Context(), token)
	if err != nil {
		logUpstreamError(log, "Get user error", err)
		apiresponses.RespondInternalErrorSimple(c, msgFetchUserFailed)
		return
	}

	log.Debug("Fetched current user")
	apiresponses.RespondRawJSON(c, body)
}

func (r *Relay) handleExpenses(c *gin.Context) {
	log := system.GetReqLogger(c, r.log)
	token, ok := r.accessToken()
	if !ok {
		apiresponses.RespondUnauthorized(c)
		return
	}

	since := c.Query("since")
	body, err := r.upstream.Expenses(c.Request.Context(), token, since)
	if err != nil {
		logUpstreamError(log, "Get expenses error", err)
		apiresponses.RespondInternalErrorSimple(c, msgFetchExpFailed)
		return
	}

	if n, ok := countExpenses(body); ok {
		log.Infow("Expenses returned", "count", n, "since", since)
	}
	apiresponses.RespondRawJSON(c, body)
}

func (r *Relay) accessToken() (string, bool) {
	pair, ok := r.store.Get()
	if !ok || pair.AccessToken == "" {
		return "", false
	}
	return pair.AccessToken, true
}

// logUpstreamError records the upstream status and body for diagnostics. The
// body is never sent back to the caller.
func logUpstreamError(log *zap.SugaredLogger, msg string, err error) {
	var upErr *splitwise.UpstreamError
	if errors.As(err, &upErr) {
		log.Errorw(msg,
			"endpoint", upErr.Endpoint,
			"status", upErr.StatusCode,
			"body", upErr.Body,
			"error", err,
		)
		return
	}
	log.Errorw(msg, "error", err)
}

func verificationResult(err error) string {
	switch {
	case errors.Is(err, state.ErrMissingSecret):
		return "missing_secret"
	case errors.Is(err, state.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, state.ErrExpired):
		return "expired"
	default:
		return "malformed"
	}
}

// countExpenses reports the length of the top-level "expenses" array, if any.
func countExpenses(body json.RawMessage) (int, bool) {
	var payload struct {
		Expenses []json.RawMessage `json:"expenses"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Expenses == nil {
		return 0, false
	}
	return len(payload.Expenses), true
}
