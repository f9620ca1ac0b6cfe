package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/telekom/splitwise-relay/pkg/apiresponses"
	"github.com/telekom/splitwise-relay/pkg/metrics"
	"github.com/telekom/splitwise-relay/pkg/splitwise"
	"github.com/telekom/splitwise-relay/pkg/state"
	"github.com/telekom/splitwise-relay/pkg/tokenstore"
)

var signedTokenFormat = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

type fakeUpstream struct {
	exchangeCalls int
	exchangeCode  string
	exchangePair  tokenstore.Pair
	exchangeErr   error

	userToken string
	userBody  json.RawMessage
	userErr   error

	expensesToken string
	expensesSince string
	expensesBody  json.RawMessage
	expensesErr   error
}

func (f *fakeUpstream) AuthorizeURL(s string) string {
	return "https://upstream.example.com/oauth/authorize?" + url.Values{
		"response_type": {"code"},
		"client_id":     {"client-id"},
		"state":         {s},
	}.Encode()
}

func (f *fakeUpstream) Exchange(_ context.Context, code string) (tokenstore.Pair, error) {
	f.exchangeCalls++
	f.exchangeCode = code
	return f.exchangePair, f.exchangeErr
}

func (f *fakeUpstream) CurrentUser(_ context.Context, accessToken string) (json.RawMessage, error) {
	f.userToken = accessToken
	return f.userBody, f.userErr
}

func (f *fakeUpstream) Expenses(_ context.Context, accessToken, since string) (json.RawMessage, error) {
	f.expensesToken = accessToken
	f.expensesSince = since
	return f.expensesBody, f.expensesErr
}

type testEnv struct {
	router   *gin.Engine
	relay    *Relay
	upstream *fakeUpstream
	store    *tokenstore.Memory
	signer   *state.Signer
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	up := &fakeUpstream{}
	store := tokenstore.NewMemory()
	signer := state.NewSigner([]byte(secret))
	r := New(zaptest.NewLogger(t).Sugar(), signer, up, store)

	router := gin.New()
	for _, ctrl := range []interface {
		BasePath() string
		Handlers() []gin.HandlerFunc
		Register(*gin.RouterGroup) error
	}{r.OAuthController(), r.ProxyController()} {
		require.NoError(t, ctrl.Register(router.Group(ctrl.BasePath(), ctrl.Handlers()...)))
	}

	return &testEnv{router: router, relay: r, upstream: up, store: store, signer: signer}
}

func (e *testEnv) do(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func (e *testEnv) validState(t *testing.T) string {
	t.Helper()
	s, err := e.signer.Sign(e.signer.NewPayload())
	require.NoError(t, err)
	return s
}

func callbackURL(code, s string) string {
	q := url.Values{}
	if code != "" {
		q.Set("code", code)
	}
	if s != "" {
		q.Set("state", s)
	}
	return "/splitwise/callback?" + q.Encode()
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) apiresponses.APIError {
	t.Helper()
	var resp apiresponses.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestStart_RedirectsWithSignedState(t *testing.T) {
	env := newTestEnv(t, "state-secret")

	w := env.do(t, "/auth/start")
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "code", loc.Query().Get("response_type"))

	s := loc.Query().Get("state")
	assert.Regexp(t, signedTokenFormat, s)
	_, err = env.signer.Verify(s)
	assert.NoError(t, err)
}

func TestStart_MissingSecret(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, "/auth/start")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgMissingStateSecret, w.Body.String())
	assert.Empty(t, w.Header().Get("Location"))
}

func TestCallback_Success(t *testing.T) {
	env := newTestEnv(t, "state-secret")
	env.upstream.exchangePair = tokenstore.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"}
	before := testutil.ToFloat64(metrics.TokenExchanges.WithLabelValues("success"))

	w := env.do(t, callbackURL("the-code", env.validState(t)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, msgConnected, w.Body.String())
	assert.Equal(t, 1, env.upstream.exchangeCalls)
	assert.Equal(t, "the-code", env.upstream.exchangeCode)

	pair, ok := env.store.Get()
	require.True(t, ok)
	assert.Equal(t, tokenstore.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"}, pair)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.TokenExchanges.WithLabelValues("success")))
}

func TestCallback_InvalidStateNeverExchanges(t *testing.T) {
	env := newTestEnv(t, "state-secret")
	valid := env.validState(t)

	expired, err := env.signer.Sign(state.Payload{Timestamp: time.Now().Add(-11 * time.Minute).UnixMilli()})
	require.NoError(t, err)
	foreign, err := state.NewSigner([]byte("other-secret")).Sign(state.Payload{Timestamp: time.Now().UnixMilli()})
	require.NoError(t, err)

	tests := []struct {
		name  string
		state string
	}{
		{name: "missing state", state: ""},
		{name: "tampered signature", state: valid + "x"},
		{name: "garbage", state: "not-a-token"},
		{name: "expired", state: expired},
		{name: "signed with another secret", state: foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, callbackURL("the-code", tt.state))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, msgInvalidState, w.Body.String())
			assert.Zero(t, env.upstream.exchangeCalls)
			_, ok := env.store.Get()
			assert.False(t, ok)
		})
	}
}

func TestCallback_MissingSecretRejectsState(t *testing.T) {
	env := newTestEnv(t, "")
	signed, err := state.NewSigner([]byte("anything")).Sign(state.Payload{Timestamp: time.Now().UnixMilli()})
	require.NoError(t, err)

	w := env.do(t, callbackURL("the-code", signed))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, env.upstream.exchangeCalls)
}

func TestCallback_MissingCode(t *testing.T) {
	env := newTestEnv(t, "state-secret")

	w := env.do(t, callbackURL("", env.validState(t)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgNoCode, w.Body.String())
	assert.Zero(t, env.upstream.exchangeCalls)
}

func TestCallback_ExchangeFailureKeepsTokens(t *testing.T) {
	env := newTestEnv(t, "state-secret")
	env.store.Set(tokenstore.Pair{AccessToken: "old-access"})
	env.upstream.exchangeErr = &splitwise.UpstreamError{
		Endpoint:   splitwise.EndpointToken,
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error":"invalid_grant"}`,
	}

	w := env.do(t, callbackURL("the-code", env.validState(t)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgOAuthError, w.Body.String())
	assert.NotContains(t, w.Body.String(), "invalid_grant")

	pair, ok := env.store.Get()
	require.True(t, ok)
	assert.Equal(t, "old-access", pair.AccessToken)
}

func TestProxy_UnauthenticatedReturns401(t *testing.T) {
	env := newTestEnv(t, "state-secret")

	for _, target := range []string{"/api/me", "/api/expenses", "/api/expenses?since=2024-01-01"} {
		t.Run(target, func(t *testing.T) {
			w := env.do(t, target)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Not authenticated", decodeAPIError(t, w).Error)
			assert.Equal(t, "UNAUTHORIZED", decodeAPIError(t, w).Code)
		})
	}
	assert.Empty(t, env.upstream.userToken)
	assert.Empty(t, env.upstream.expensesToken)
}

func TestMe_RelaysUpstreamJSON(t *testing.T) {
	env := newTestEnv(t, "state-secret")
	env.store.Set(tokenstore.Pair{AccessToken: "access-1"})
	env.upstream.userBody = json.RawMessage(`{"user":{"id":7,"first_name":"Ada"}}`)

	w := env.do(t, "/api/me")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":{"id":7,"first_name":"Ada"}}`, w.Body.String())
	assert.Equal(t, "access-1", env.upstream.userToken)
}

func TestMe_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, "state-secret")
	env.store.Set(tokenstore.Pair{AccessToken: "access-1"})
	env.upstream.userErr = &splitwise.UpstreamError{
		Endpoint:   splitwise.EndpointCurrentUser,
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error":"token revoked","token":"access-1"}`,
	}

	w := env.do(t, "/api/me")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgFetchUserFailed, decodeAPIError(t, w).Error)
	assert.NotContains(t, w.Body.String(), "access-1")
}

func TestExpenses_PassesSinceAndRelaysJSON(t *testing.T) {
	env := newTestEnv(t, "state-secret")
	env.store.Set(tokenstore.Pair{AccessToken: "access-1"})
	env.upstream.expensesBody = json.RawMessage(`{"expenses":[{"id":1},{"id":2}]}`)

	w := env.do(t, "/api/expenses?since=2024-01-01")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"expenses":[{"id":1},{"id":2}]}`, w.Body.String())
	assert.Equal(t, "access-1", env.upstream.expensesToken)
	assert.Equal(t, "2024-01-01", env.upstream.expensesSince)
}

func TestExpenses_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, "state-secret")
	env.store.Set(tokenstore.Pair{AccessToken: "access-1"})
	env.upstream.expensesErr = errors.New("connection reset")

	w := env.do(t, "/api/expenses")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgFetchExpFailed, decodeAPIError(t, w).Error)
}

func TestVerificationResult(t *testing.T) {
	assert.Equal(t, "missing_secret", verificationResult(state.ErrMissingSecret))
	assert.Equal(t, "bad_signature", verificationResult(state.ErrBadSignature))
	assert.Equal(t, "expired", verificationResult(state.ErrExpired))
	assert.Equal(t, "malformed", verificationResult(state.ErrMalformed))
}

func TestCountExpenses(t *testing.T) {
	n, ok := countExpenses(json.RawMessage(`{"expenses":[{},{},{}]}`))
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = countExpenses(json.RawMessage(`{"expenses":[]}`))
	assert.True(t, ok)
	assert.Zero(t, n)

	_, ok = countExpenses(json.RawMessage(`{"other":1}`))
	assert.False(t, ok)

	_, ok = countExpenses(json.RawMessage(`[1,2]`))
	assert.False(t, ok)
}
