package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// CtxKeyOwnerID is the Gin context key an upstream auth layer uses to pin
// the authenticated owner. When set, it wins over request-supplied values.
const CtxKeyOwnerID = "ownerID"

// HeaderOwnerID lets trusted callers (gateways, tests) name the owner.
const HeaderOwnerID = "X-Owner-ID"

// OwnerFromContext returns the owner identity for keying and logging, in
// order: context value, X-Owner-ID header, ownerId query parameter. It
// returns "" when none is present. It is not an authorization check.
func OwnerFromContext(c *gin.Context) string {
	if v, ok := c.Get(CtxKeyOwnerID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c.Request == nil {
		return ""
	}
	if h := strings.TrimSpace(c.GetHeader(HeaderOwnerID)); h != "" {
		return h
	}
	return strings.TrimSpace(c.Query("ownerId"))
}
