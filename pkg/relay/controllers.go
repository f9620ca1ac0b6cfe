package relay

import (
	"github.com/gin-gonic/gin"
)

// OAuthController serves the browser-facing half of the handshake:
// /auth/start and /splitwise/callback.
type OAuthController struct {
	relay *Relay
}

// ProxyController serves the authenticated read endpoints under /api.
type ProxyController struct {
	relay    *Relay
	handlers []gin.HandlerFunc
}

// OAuthController returns the controller for the handshake routes.
func (r *Relay) OAuthController() *OAuthController {
	return &OAuthController{relay: r}
}

// ProxyController returns the controller for the proxied read routes.
// Middlewares are applied to the whole /api group.
func (r *Relay) ProxyController(middlewares ...gin.HandlerFunc) *ProxyController {
	return &ProxyController{relay: r, handlers: middlewares}
}

func (*OAuthController) BasePath() string { return "/" }

func (*OAuthController) Handlers() []gin.HandlerFunc { return nil }

func (oc *OAuthController) Register(rg *gin.RouterGroup) error {
	rg.GET("auth/start", instrumentedHandler("auth_start", oc.relay.handleStart))
	rg.GET("splitwise/callback", instrumentedHandler("callback", oc.relay.handleCallback))
	return nil
}

func (*ProxyController) BasePath() string { return "/api" }

func (pc *ProxyController) Handlers() []gin.HandlerFunc { return pc.handlers }

func (pc *ProxyController) Register(rg *gin.RouterGroup) error {
	rg.GET("me", instrumentedHandler("me", pc.relay.handleMe))
	rg.GET("expenses", instrumentedHandler("expenses", pc.relay.handleExpenses))
	return nil
}
