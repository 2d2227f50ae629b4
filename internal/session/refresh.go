package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RefreshMiddleware gives sessions a sliding expiration. It runs on every
// route: any request carrying a valid cookie with less than RefreshWindow of
// validity left gets a re-minted token with the same claims and a fresh
// 7-day expiry.
//
// It never blocks or fails a request: no cookie, an undecodable cookie, or a
// still-fresh cookie all pass through untouched. It also never calls the
// payment provider; claims other than the expiry are copied verbatim.
func RefreshMiddleware(codec *Codec, secureCookies bool, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		if cookie, err := c.Request.Cookie(CookieName); err == nil && cookie.Value != "" {
			refreshCookie(c, codec, cookie.Value, secureCookies, log)
		}
		c.Next()
	}
}

func refreshCookie(c *gin.Context, codec *Codec, value string, secure bool, log *slog.Logger) {
	now := time.Now()
	claims, err := codec.Decode(value, now)
	if err != nil {
		// Invalid cookies are left in place; the reader treats them as
		// anonymous and they age out client-side.
		log.Debug("session refresh skipped", "reason", decodeReason(err))
		return
	}

	if time.Unix(claims.ExpiresAt, 0).Sub(now) >= RefreshWindow {
		return
	}

	claims.ExpiresAt = now.Add(SessionTTL).Unix()
	token, err := codec.Encode(claims)
	if err != nil {
		log.Error("session refresh encode failed", "err", err)
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
