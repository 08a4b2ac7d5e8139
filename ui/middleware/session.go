package middleware

import (
	"net/http"
	"time"

	"ceaiinsights/internal/session"

	"github.com/gin-gonic/gin"
)

// SessionCookie names the cookie carrying the session id
const SessionCookie = "ceai_session"

const sessionKey = "ceai.session"

// Sessions resolves the request's session from its cookie, creating one when
// the cookie is missing or expired. The cookie is re-issued on every request.
func Sessions(store *session.Store, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Cookie(SessionCookie)

		sess, _ := store.GetOrCreate(raw)
		// Max-Age slides with the server-side idle expiry
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, sess.ID.String(), int(ttl.Seconds()), "/", "", c.Request.TLS != nil, true)

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// Session returns the session attached by Sessions
func Session(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if sess, ok := v.(*session.Session); ok {
			return sess
		}
	}
	return nil
}
