package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/newsgpt/config"
	"github.com/mohammad-safakhou/newsgpt/export"
	"github.com/mohammad-safakhou/newsgpt/news"
	"github.com/mohammad-safakhou/newsgpt/news/newsapi"
	"github.com/mohammad-safakhou/newsgpt/notify"
	"github.com/mohammad-safakhou/newsgpt/provider"
	"github.com/mohammad-safakhou/newsgpt/session"
	"github.com/mohammad-safakhou/newsgpt/session/inmemory"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the components the HTTP surface drives.
type Deps struct {
	Sessions   session.Store
	Assistant  *news.Assistant
	Exporter   *export.Writer
	Mailer     *notify.Sender
	SessionTTL time.Duration
	Logger     *log.Logger
}

// BuildDeps wires every component from configuration. Missing credentials
// only disable the feature that needs them.
func BuildDeps(cfg *config.Config) Deps {
	llm, err := provider.NewProvider(cfg.LLM, log.New(log.Writer(), "[LLM] ", log.LstdFlags))
	if err != nil {
		log.Printf("chat disabled: %v", err)
		llm = provider.Unavailable{Err: err}
	}
	fetcher := newsapi.New(cfg.NewsAPI.APIKey, cfg.NewsAPI.Endpoint, cfg.NewsAPI.Timeout, nil)
	if cfg.NewsAPI.APIKey == "" {
		log.Printf("news search disabled: NEWS_API_KEY not set")
	}
	if missing := cfg.SMTP.Missing(); len(missing) > 0 {
		log.Printf("email disabled until smtp settings are provided: %v", missing)
	}

	return Deps{
		Sessions:   inmemory.NewInMemorySessionStore(nil),
		Assistant:  news.NewAssistant(llm, fetcher, cfg.Conversation.MaxHistory, nil),
		Exporter:   export.NewWriter(cfg.Export.Dir, nil),
		Mailer:     notify.NewSender(cfg.SMTP, nil),
		SessionTTL: cfg.General.SessionTTL,
	}
}

// New builds the echo instance with every route registered.
func New(deps Deps) *echo.Echo {
	if deps.Logger == nil {
		deps.Logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 12 * time.Hour
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := deps.Logger
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	registerUI(e)

	api := e.Group("/api")
	api.Use(withSession(deps.Sessions, deps.SessionTTL))

	ch := &ChatHandler{Assistant: deps.Assistant}
	ch.Register(api)

	ah := &ArticlesHandler{}
	ah.Register(api.Group("/articles"))

	xh := &ExportHandler{Writer: deps.Exporter}
	xh.Register(api.Group("/export"))

	mh := &MailHandler{Sender: deps.Mailer}
	mh.Register(api)

	return e
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config, addr string) error {
	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && !strings.Contains(addr, ":") {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":10001"
		}
	}

	e := New(BuildDeps(cfg))

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Printf("shutting down")
		return e.Shutdown(shutdownCtx)
	}
}
