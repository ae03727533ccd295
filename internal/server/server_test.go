package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/newsgpt/config"
	"github.com/mohammad-safakhou/newsgpt/export"
	"github.com/mohammad-safakhou/newsgpt/models"
	"github.com/mohammad-safakhou/newsgpt/news"
	"github.com/mohammad-safakhou/newsgpt/news/newsapi"
	"github.com/mohammad-safakhou/newsgpt/notify"
	"github.com/mohammad-safakhou/newsgpt/session/inmemory"
	"github.com/wneessen/go-mail"
)

type stubLLM struct {
	reply   models.Completion
	tool    *models.ToolCall
	err     error
	started chan struct{}
	block   chan struct{}
	once    sync.Once
}

func (s *stubLLM) Complete(ctx context.Context, turns []models.Turn, tools []models.ToolSpec) (models.Completion, error) {
	if s.block != nil {
		s.once.Do(func() { close(s.started) })
		<-s.block
	}
	if s.err != nil {
		return models.Completion{}, s.err
	}
	if s.tool != nil && tools != nil {
		return models.Completion{
			FinishReason: models.FinishToolCalls,
			Message:      models.Turn{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{*s.tool}},
		}, nil
	}
	return s.reply, nil
}

type stubFetcher struct{ articles []models.Article }

func (s stubFetcher) Fetch(context.Context, models.SearchQuery) (newsapi.Result, error) {
	return newsapi.Result{StatusCode: 200, Articles: s.articles, Raw: json.RawMessage(`{"status":"ok"}`)}, nil
}

type harness struct {
	e      *echo.Echo
	cookie *http.Cookie
	sent   []*mail.Msg
}

func newHarness(t *testing.T, llm *stubLLM, articles []models.Article) *harness {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	h := &harness{}
	smtp := config.SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u@example.com", Password: "p"}
	mailer := notify.NewSender(smtp, quiet).WithDeliverer(func(_ context.Context, _ config.SMTPConfig, m *mail.Msg) error {
		h.sent = append(h.sent, m)
		return nil
	})
	h.e = New(Deps{
		Sessions:   inmemory.NewInMemorySessionStore(quiet),
		Assistant:  news.NewAssistant(llm, stubFetcher{articles: articles}, 5, quiet),
		Exporter:   export.NewWriter(t.TempDir(), quiet),
		Mailer:     mailer,
		SessionTTL: time.Hour,
		Logger:     quiet,
	})
	return h
}

func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			h.cookie = ck
		}
	}
	return rec
}

func (h *harness) chat(t *testing.T, msg string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"`+msg+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return h.do(t, req)
}

func textCompletion(s string) models.Completion {
	return models.Completion{FinishReason: "stop", Message: models.Turn{Role: models.RoleAssistant, Content: s}}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, &stubLLM{}, nil)
	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz %d %q", rec.Code, rec.Body.String())
	}
}

func TestIndexServesUI(t *testing.T) {
	h := newHarness(t, &stubLLM{}, nil)
	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "NewsGPT") {
		t.Fatalf("expected UI page, got %d", rec.Code)
	}
}

func TestChatStoresHistoryPerSession(t *testing.T) {
	h := newHarness(t, &stubLLM{reply: textCompletion("Here is the news")}, nil)

	rec := h.chat(t, "hello")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["reply"] != "Here is the news" {
		t.Fatalf("unexpected reply %+v", body)
	}
	if h.cookie == nil {
		t.Fatalf("session cookie not set")
	}

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	var hist struct {
		History      []models.Turn `json:"history"`
		LastResponse string        `json:"last_response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hist.History) != 2 || hist.LastResponse != "Here is the news" {
		t.Fatalf("unexpected history %+v", hist)
	}

	h.cookie = nil
	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	_ = json.Unmarshal(rec.Body.Bytes(), &hist)
	if len(hist.History) != 0 {
		t.Fatalf("a new visitor must get an empty session")
	}
}

func TestChatRequiresMessage(t *testing.T) {
	h := newHarness(t, &stubLLM{}, nil)
	if rec := h.chat(t, "  "); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestChatSurfacesUpstreamFailure(t *testing.T) {
	h := newHarness(t, &stubLLM{err: models.ErrNetwork}, nil)
	rec := h.chat(t, "hi")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "network error") {
		t.Fatalf("error text missing: %s", rec.Body.String())
	}
}

func TestChatRejectsOverlappingTurn(t *testing.T) {
	llm := &stubLLM{reply: textCompletion("slow"), started: make(chan struct{}), block: make(chan struct{})}
	h := newHarness(t, llm, nil)
	h.do(t, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	cookie := h.cookie

	done := make(chan int)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"first"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		h.e.ServeHTTP(rec, req)
		done <- rec.Code
	}()

	select {
	case <-llm.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first turn never reached the model")
	}
	if rec := h.chat(t, "second"); rec.Code != http.StatusConflict {
		close(llm.block)
		t.Fatalf("expected 409 while a turn is running, got %d", rec.Code)
	}
	close(llm.block)
	if code := <-done; code != http.StatusOK {
		t.Fatalf("first turn should finish, got %d", code)
	}
}

func TestResetRejectedWhileTurnRuns(t *testing.T) {
	llm := &stubLLM{reply: textCompletion("slow"), started: make(chan struct{}), block: make(chan struct{})}
	h := newHarness(t, llm, nil)
	h.do(t, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	cookie := h.cookie

	done := make(chan int)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"first"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		h.e.ServeHTTP(rec, req)
		done <- rec.Code
	}()

	select {
	case <-llm.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first turn never reached the model")
	}
	if rec := h.do(t, httptest.NewRequest(http.MethodDelete, "/api/session", nil)); rec.Code != http.StatusConflict {
		close(llm.block)
		t.Fatalf("expected 409 for reset during a turn, got %d", rec.Code)
	}
	close(llm.block)
	if code := <-done; code != http.StatusOK {
		t.Fatalf("first turn should finish, got %d", code)
	}

	if rec := h.do(t, httptest.NewRequest(http.MethodDelete, "/api/session", nil)); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 once idle, got %d", rec.Code)
	}
	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	var hist struct {
		History []models.Turn `json:"history"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &hist)
	if len(hist.History) != 0 {
		t.Fatalf("history should be cleared, got %d turns", len(hist.History))
	}
}

func TestArticlesAndExports(t *testing.T) {
	llm := &stubLLM{
		tool:  &models.ToolCall{ID: "c1", Name: news.NewsToolName, Arguments: `{"query":"mars"}`},
		reply: textCompletion("Mars roundup"),
	}
	articles := []models.Article{
		{Title: "Rover finds water on Mars", SourceName: "NASA", URL: "http://a"},
		{Title: "Stock markets rally", SourceName: "FT", URL: "http://b"},
	}
	h := newHarness(t, llm, articles)

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/export/articles", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 before any search, got %d", rec.Code)
	}
	if rec := h.chat(t, "mars news"); rec.Code != http.StatusOK {
		t.Fatalf("chat failed %d: %s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/articles", nil))
	var list struct {
		Articles []models.Article `json:"articles"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Articles) != 2 {
		t.Fatalf("expected 2 articles, got %+v", list)
	}

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/articles/search?q=rover&k=5", nil))
	var found struct {
		Hits []struct {
			Article models.Article `json:"article"`
		} `json:"hits"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &found)
	if len(found.Hits) != 1 || found.Hits[0].Article.Title != "Rover finds water on Mars" {
		t.Fatalf("unexpected search hits %s", rec.Body.String())
	}

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/export/articles", nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "# Today's News") {
		t.Fatalf("unexpected article export %d", rec.Code)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "News_") {
		t.Fatalf("unexpected disposition %q", cd)
	}

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/export/response", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Mars roundup") {
		t.Fatalf("unexpected response export %d", rec.Code)
	}

	rec = h.do(t, httptest.NewRequest(http.MethodDelete, "/api/session", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on reset, got %d", rec.Code)
	}
	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/export/response", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 after reset, got %d", rec.Code)
	}
}

func multipartRequest(t *testing.T, path, fileName, fileBody string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if fileName != "" {
		fw, err := w.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = fw.Write([]byte(fileBody))
	}
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestRecipientsEndpoint(t *testing.T) {
	h := newHarness(t, &stubLLM{}, nil)
	req := multipartRequest(t, "/api/recipients", "team.csv", "name,email\nAnn,ann@example.com\n", map[string]string{"emails": "bob@example.com; ANN@example.com"})
	rec := h.do(t, req)
	var body struct {
		Recipients []string `json:"recipients"`
		Count      int      `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || body.Recipients[0] != "ann@example.com" || body.Recipients[1] != "bob@example.com" {
		t.Fatalf("unexpected recipients %+v", body)
	}
}

func TestEmailEndpointReportsStatus(t *testing.T) {
	h := newHarness(t, &stubLLM{reply: textCompletion("Daily digest\nItems")}, nil)

	rec := h.do(t, multipartRequest(t, "/api/email", "", "", map[string]string{"emails": "a@example.com"}))
	var body struct {
		OK     bool   `json:"ok"`
		Status string `json:"status"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusOK || body.OK || !strings.Contains(body.Status, "No AI output yet") {
		t.Fatalf("expected nothing-to-send status, got %d %+v", rec.Code, body)
	}

	h.chat(t, "digest please")
	rec = h.do(t, multipartRequest(t, "/api/email", "list.txt", "a@example.com\nb@example.com", nil))
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.OK || body.Status != "✅ Sent to 2 recipient(s)." {
		t.Fatalf("unexpected status %+v", body)
	}
	if len(h.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(h.sent))
	}

	rec = h.do(t, multipartRequest(t, "/api/email", "", "", map[string]string{"emails": "nobody"}))
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.OK || body.Status != "❌ No valid email addresses." {
		t.Fatalf("unexpected status %+v", body)
	}
}

func TestMetricsExposed(t *testing.T) {
	h := newHarness(t, &stubLLM{reply: textCompletion("x")}, nil)
	h.chat(t, "hi")
	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "newsgpt_llm_requests_total") {
		t.Fatalf("metrics missing newsgpt counters")
	}
}
