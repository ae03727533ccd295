package server

import (
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/newsgpt/export"
)

type ExportHandler struct {
	Writer *export.Writer
}

func (h *ExportHandler) Register(g *echo.Group) {
	g.GET("/articles", h.articles)
	g.GET("/response", h.response)
}

func (h *ExportHandler) articles(c echo.Context) error {
	path, err := h.Writer.Articles(currentSession(c).Articles())
	return h.serve(c, path, err)
}

func (h *ExportHandler) response(c echo.Context) error {
	path, err := h.Writer.Response(currentSession(c).LastResponse())
	return h.serve(c, path, err)
}

// serve sends the written file as a download, or 204 when nothing was written.
func (h *ExportHandler) serve(c echo.Context, path string, err error) error {
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if path == "" {
		return c.NoContent(http.StatusNoContent)
	}
	return c.Attachment(path, filepath.Base(path))
}
