package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/newsgpt/models"
	"github.com/mohammad-safakhou/newsgpt/news"
	"github.com/mohammad-safakhou/newsgpt/provider"
	"github.com/mohammad-safakhou/newsgpt/session"
)

type ChatHandler struct {
	Assistant *news.Assistant
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
	g.GET("/history", h.history)
	g.DELETE("/session", h.reset)
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}

	reply, err := h.Assistant.Turn(c.Request().Context(), currentSession(c), req.Message)
	if err != nil {
		return echo.NewHTTPError(statusFor(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"reply": reply})
}

func (h *ChatHandler) history(c echo.Context) error {
	sess := currentSession(c)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"history":       sess.History(),
		"last_response": sess.LastResponse(),
	})
}

// reset holds the turn lock so a running turn cannot write into the cleared session.
func (h *ChatHandler) reset(c echo.Context) error {
	sess := currentSession(c)
	if !sess.BeginTurn() {
		return echo.NewHTTPError(http.StatusConflict, session.ErrTurnInProgress.Error())
	}
	defer sess.EndTurn()
	if err := sess.Reset(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// statusFor maps turn failures onto HTTP statuses; the message is the status text.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, models.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, provider.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrNetwork), errors.Is(err, models.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
