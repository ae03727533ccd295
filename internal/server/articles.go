package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type ArticlesHandler struct{}

func (h *ArticlesHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/search", h.search)
}

func (h *ArticlesHandler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"articles": currentSession(c).Articles()})
}

// search filters the last fetched articles; k defaults to all of them.
func (h *ArticlesHandler) search(c echo.Context) error {
	k := 0
	if raw := c.QueryParam("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "k must be a non-negative integer")
		}
		k = n
	}
	hits, err := currentSession(c).SearchArticles(c.QueryParam("q"), k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"hits": hits})
}
