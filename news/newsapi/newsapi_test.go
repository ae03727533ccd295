package newsapi

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/mohammad-safakhou/newsgpt/models"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestFetchRejectsMissingFiltersWithoutNetwork(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	client := New("key", srv.URL, 0, quietLogger())
	_, err := client.Fetch(context.Background(), models.SearchQuery{Language: "de", PageSize: 3})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if hits != 0 {
		t.Fatalf("expected no request, got %d", hits)
	}
}

func TestFetchMapsParamsAndDecodesArticles(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":2,"articles":[
			{"source":{"id":null,"name":"BBC News"},"title":"First","url":"https://a","publishedAt":"2025-01-02T10:00:00Z","description":"one"},
			{"source":{"name":"CNN"},"title":"Second","url":"https://b","publishedAt":"2025-01-03T10:00:00Z","description":null}]}`))
	}))
	defer srv.Close()

	client := New("secret", srv.URL, 0, quietLogger())
	res, err := client.Fetch(context.Background(), models.SearchQuery{
		Query:          "elections",
		ExcludeDomains: "foxnews.com",
		FromDate:       "2025-01-01",
		PageSize:       250,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Header.Get("X-Api-Key") != "secret" {
		t.Fatalf("missing api key header")
	}
	q := got.URL.Query()
	want := map[string]string{
		"q":              "elections",
		"excludeDomains": "foxnews.com",
		"from":           "2025-01-01",
		"language":       "en",
		"sortBy":         "publishedAt",
		"pageSize":       "100",
		"page":           "1",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Fatalf("param %s: expected %q, got %q", k, v, q.Get(k))
		}
	}
	for _, k := range []string{"qInTitle", "sources", "domains", "to"} {
		if _, ok := q[k]; ok {
			t.Fatalf("unset param %s must not be sent", k)
		}
	}
	if len(res.Articles) != 2 || res.Articles[0].SourceName != "BBC News" || res.Articles[1].Title != "Second" {
		t.Fatalf("unexpected articles %+v", res.Articles)
	}
	if res.TotalResults != 2 || len(res.Raw) == 0 {
		t.Fatalf("expected raw body and total, got %+v", res)
	}
}

func TestFetchPageSizeNeverExceedsLimit(t *testing.T) {
	var sizes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sizes = append(sizes, r.URL.Query().Get("pageSize"))
		_, _ = w.Write([]byte(`{"status":"ok","articles":[]}`))
	}))
	defer srv.Close()

	client := New("k", srv.URL, 0, quietLogger())
	inputs := []int{1, 7, 99, 100, 101, 1000}
	for _, in := range inputs {
		if _, err := client.Fetch(context.Background(), models.SearchQuery{Title: "x", PageSize: models.FlexInt(in)}); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	for i, in := range inputs {
		want := in
		if want > 100 {
			want = 100
		}
		if sizes[i] != strconv.Itoa(want) {
			t.Fatalf("input %d: expected pageSize %d, got %s", in, want, sizes[i])
		}
	}
}

func TestFetchPassesAPIErrorsThrough(t *testing.T) {
	body := `{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	res, err := New("bad", srv.URL, 0, quietLogger()).Fetch(context.Background(), models.SearchQuery{Domains: "bbc.co.uk"})
	if err != nil {
		t.Fatalf("expected pass-through, got %v", err)
	}
	if string(res.Raw) != body {
		t.Fatalf("raw body altered: %s", res.Raw)
	}
	if res.Code != "apiKeyInvalid" || res.StatusCode != http.StatusUnauthorized || len(res.Articles) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestFetchNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	_, err := New("k", endpoint, 0, quietLogger()).Fetch(context.Background(), models.SearchQuery{Query: "x"})
	if !errors.Is(err, models.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestFetchWithoutKeyIsReported(t *testing.T) {
	_, err := New("", "http://127.0.0.1:1", 0, quietLogger()).Fetch(context.Background(), models.SearchQuery{Query: "x"})
	if !errors.Is(err, models.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}
