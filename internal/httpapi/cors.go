package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// corsPolicy reflects the request origin only when it is on the explicit
// allow-list; credentials are echoed only alongside a reflected origin. Every
// response carries Vary: Origin so caches keep per-origin copies apart.
type corsPolicy struct {
	allowed map[string]struct{}
}

func newCORSPolicy(origins []string) corsPolicy {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return corsPolicy{allowed: allowed}
}

func (p corsPolicy) apply(c *gin.Context, methods string) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Methods", methods)
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	h.Set("Access-Control-Max-Age", "86400")
	h.Add("Vary", "Origin")

	origin := c.GetHeader("Origin")
	if _, ok := p.allowed[origin]; ok && origin != "" {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}

// preflight answers OPTIONS with the same CORS headers and no body.
func (p corsPolicy) preflight(methods string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p.apply(c, methods)
		c.Status(http.StatusNoContent)
	}
}
