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

package apiresponses

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError represents a standardized error response.
// This ensures consistent error message formatting across all API endpoints.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RespondUnauthorized sends a 401 Unauthorized response with the default
// message. Use this when no upstream credentials are available.
func RespondUnauthorized(c *gin.Context) {
	RespondUnauthorizedWithMessage(c, "")
}

// RespondUnauthorizedWithMessage sends a 401 Unauthorized response with a custom message.
func RespondUnauthorizedWithMessage(c *gin.Context, message string) {
	if message == "" {
		message = "Not authenticated"
	}
	c.JSON(http.StatusUnauthorized, APIError{
		Error: message,
		Code:  "UNAUTHORIZED",
	})
}

// RespondInternalErrorSimple sends a 500 response with a simple message.
// The caller is expected to have logged the underlying error already.
func RespondInternalErrorSimple(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, APIError{
		Error: message,
		Code:  "INTERNAL_ERROR",
	})
}

// RespondOK sends a 200 OK response with the given data.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RespondRawJSON sends a 200 OK response with an already encoded JSON body.
// Use this to relay upstream payloads without re-encoding them.
func RespondRawJSON(c *gin.Context, body json.RawMessage) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// RespondText sends a plain-text response. The browser-facing OAuth endpoints
// answer in text rather than JSON.
func RespondText(c *gin.Context, status int, message string) {
	c.String(status, message)
}
