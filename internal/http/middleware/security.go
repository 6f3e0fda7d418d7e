// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, the hardening headers for the JSON API,
// and BodyLimit, which caps request body size before handlers decode it.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultExposeHeaders are the response headers browser clients need to read:
// the correlation ID, the list validator, and the replay marker.
var DefaultExposeHeaders = []string{requestIDHeader, "ETag", "Idempotency-Replayed"}

// SecurityOptions configures SecurityHeaders.
//
// EnableHSTS emits Strict-Transport-Security for HTTPS requests only. Enable
// it only when traffic is HTTPS end-to-end. HSTSMaxAge defaults to 180 days.
// NoStore adds Cache-Control: no-store (with legacy Pragma/Expires).
// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
// ExposeHeaders overrides DefaultExposeHeaders when non-nil.
type SecurityOptions struct {
	EnableHSTS    bool
	HSTSMaxAge    time.Duration
	NoStore       bool
	EnablePolicy  bool
	ExposeHeaders []string
}

// SecurityHeaders returns a Gin middleware that always sets nosniff,
// X-Frame-Options DENY and Referrer-Policy no-referrer, plus the optional
// headers selected in opt. Expose headers are merged into any existing
// Access-Control-Expose-Headers value without duplicates.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int64(opt.HSTSMaxAge / time.Second)
	if maxAge <= 0 {
		maxAge = int64((180 * 24 * time.Hour) / time.Second)
	}
	hsts := "max-age=" + strconv.FormatInt(maxAge, 10) + "; includeSubDomains; preload"

	expose := opt.ExposeHeaders
	if expose == nil {
		expose = DefaultExposeHeaders
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if merged := mergeTokens(h.Get("Access-Control-Expose-Headers"), expose); merged != "" {
			h.Set("Access-Control-Expose-Headers", merged)
		}

		c.Next()
	}
}

// mergeTokens appends add to the comma-separated list cur, skipping tokens
// already present (case-insensitive).
func mergeTokens(cur string, add []string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range strings.Split(cur, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			seen[strings.ToLower(tok)] = struct{}{}
			out = append(out, tok)
		}
	}
	for _, tok := range add {
		if _, dup := seen[strings.ToLower(tok)]; dup || tok == "" {
			continue
		}
		seen[strings.ToLower(tok)] = struct{}{}
		out = append(out, tok)
	}
	return strings.Join(out, ", ")
}

// isHTTPS reports whether the request arrived over TLS directly or through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// BodyLimit caps request bodies at maxBytes. Requests declaring a larger
// Content-Length are rejected with 413 up front; streamed bodies are wrapped
// in http.MaxBytesReader so decoding fails once the cap is crossed.
// maxBytes <= 0 disables the limit.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "payload_too_large",
				"message":    "request body exceeds " + strconv.FormatInt(maxBytes, 10) + " bytes",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
