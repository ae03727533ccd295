package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/newsgpt/notify"
	"github.com/mohammad-safakhou/newsgpt/recipients"
)

const maxUploadBytes = 1 << 20

type MailHandler struct {
	Sender *notify.Sender
}

func (h *MailHandler) Register(g *echo.Group) {
	g.POST("/recipients", h.recipients)
	g.POST("/email", h.email)
}

func (h *MailHandler) recipients(c echo.Context) error {
	list, err := extractRecipients(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"recipients": list, "count": len(list)})
}

// email mails the last answer. The send outcome is reported in the body,
// not through the HTTP status.
func (h *MailHandler) email(c echo.Context) error {
	list, err := extractRecipients(c)
	if err != nil {
		return err
	}
	st := h.Sender.SendLastResponse(c.Request().Context(), currentSession(c), c.FormValue("subject"), list)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":         st.OK(),
		"status":     st.String(),
		"recipients": list,
	})
}

func extractRecipients(c echo.Context) ([]string, error) {
	upload, err := readUpload(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return recipients.Extract(upload, c.FormValue("emails")), nil
}

// readUpload returns nil when the request carries no file.
func readUpload(c echo.Context) (*recipients.Upload, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("upload larger than %d bytes", maxUploadBytes)
	}
	return &recipients.Upload{Name: fh.Filename, Data: data}, nil
}
