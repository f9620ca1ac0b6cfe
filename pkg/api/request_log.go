package api

import (
	"net/url"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const redactedValue = "REDACTED"

// sensitiveQueryParams carry OAuth codes, signed state or tokens.
var sensitiveQueryParams = []string{"code", "state", "access_token", "refresh_token"}

func hasSensitiveQuery(c *gin.Context) bool {
	query := c.Request.URL.Query()
	for _, key := range sensitiveQueryParams {
		if query.Has(key) {
			return true
		}
	}
	return false
}

// redactQuery keeps the parameter names and drops every value.
func redactQuery(query url.Values) string {
	for key := range query {
		query[key] = []string{redactedValue}
	}
	return query.Encode()
}

// accessLog returns the request logging middlewares. ginzap logs the raw query
// string, so requests carrying sensitive parameters are skipped there and
// logged by redactedAccessLog with the same fields.
func accessLog(log *zap.Logger) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		ginzap.GinzapWithConfig(log, &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			Skipper:    hasSensitiveQuery,
		}),
		redactedAccessLog(log),
	}
}

func redactedAccessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !hasSensitiveQuery(c) {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		query := redactQuery(c.Request.URL.Query())
		c.Next()

		end := time.Now()
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", end.Sub(start)),
			zap.String("time", end.UTC().Format(time.RFC3339)),
		}
		if len(c.Errors) > 0 {
			for _, e := range c.Errors.Errors() {
				log.Error(e, fields...)
			}
			return
		}
		log.Info(path, fields...)
	}
}
