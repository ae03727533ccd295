package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/newsgpt/session"
)

const (
	sessionCookie = "newsgpt_session"
	sessionKey    = "session"
)

// withSession attaches the caller's session, creating one (and the cookie)
// on first contact or after expiry.
func withSession(store session.Store, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var id string
			if ck, err := c.Cookie(sessionCookie); err == nil {
				id = ck.Value
			}
			sess, err := store.EnsureSession(id, ttl)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
			if sess.ID() != id {
				c.SetCookie(&http.Cookie{
					Name:     sessionCookie,
					Value:    sess.ID(),
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					MaxAge:   int(ttl / time.Second),
				})
			}
			c.Set(sessionKey, sess)
			return next(c)
		}
	}
}

func currentSession(c echo.Context) session.Session {
	return c.Get(sessionKey).(session.Session)
}
