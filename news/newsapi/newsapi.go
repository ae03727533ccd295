package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/newsgpt/internal/metrics"
	"github.com/mohammad-safakhou/newsgpt/models"
)

const DefaultEndpoint = "https://newsapi.org/v2/everything"

type article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

type response struct {
	Status       string    `json:"status"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	TotalResults int       `json:"totalResults"`
	Articles     []article `json:"articles"`
}

// Result carries the body exactly as NewsAPI returned it plus the decoded articles.
// API-reported errors are not interpreted here.
type Result struct {
	StatusCode   int
	Status       string
	Code         string
	Message      string
	TotalResults int
	Articles     []models.Article
	Raw          json.RawMessage
}

type NewsAPI struct {
	APIKey   string
	Endpoint string
	HTTP     *http.Client
	Logger   *log.Logger
}

func New(apiKey, endpoint string, timeout time.Duration, logger *log.Logger) *NewsAPI {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[NEWSAPI] ", log.LstdFlags)
	}
	return &NewsAPI{
		APIKey:   apiKey,
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: timeout},
		Logger:   logger,
	}
}

// buildParams maps the query onto NewsAPI parameter names, skipping unset fields.
func buildParams(q models.SearchQuery) url.Values {
	params := url.Values{}
	set := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			params.Set(key, v)
		}
	}
	set("q", q.Query)
	set("qInTitle", q.Title)
	set("sources", q.Sources)
	set("domains", q.Domains)
	set("excludeDomains", q.ExcludeDomains)
	set("from", q.FromDate) // format: YYYY-MM-DD
	set("to", q.ToDate)
	set("language", q.Language)
	set("sortBy", q.SortBy) // options: relevancy, popularity, publishedAt
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(int(q.PageSize)))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(int(q.Page)))
	}
	return params
}

// Fetch runs one search. Validation happens before any network traffic.
func (n *NewsAPI) Fetch(ctx context.Context, q models.SearchQuery) (Result, error) {
	if err := q.Validate(); err != nil {
		metrics.NewsAPIRequests.WithLabelValues("invalid").Inc()
		return Result{}, err
	}
	if n.APIKey == "" {
		metrics.NewsAPIRequests.WithLabelValues("unconfigured").Inc()
		return Result{}, fmt.Errorf("%w: news api key not configured", models.ErrNetwork)
	}
	q = q.Normalize()

	reqURL := fmt.Sprintf("%s?%s", n.Endpoint, buildParams(q).Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: failed to create request: %v", models.ErrNetwork, err)
	}
	req.Header.Set("X-Api-Key", n.APIKey)

	client := n.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		metrics.NewsAPIRequests.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: failed to fetch news: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.NewsAPIRequests.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: failed to read response: %v", models.ErrNetwork, err)
	}

	res := Result{StatusCode: resp.StatusCode, Articles: []models.Article{}}
	var decoded response
	if json.Valid(body) {
		res.Raw = json.RawMessage(body)
		if err := json.Unmarshal(body, &decoded); err != nil {
			n.Logger.Printf("unexpected response shape (%s): %v", resp.Status, err)
		}
	} else {
		// keep non-JSON bodies visible to the model as a string
		res.Raw, _ = json.Marshal(string(body))
		n.Logger.Printf("non-JSON response (%s)", resp.Status)
	}

	res.Status = decoded.Status
	res.Code = decoded.Code
	res.Message = decoded.Message
	res.TotalResults = decoded.TotalResults
	for _, a := range decoded.Articles {
		res.Articles = append(res.Articles, models.Article{
			Title:       a.Title,
			SourceName:  a.Source.Name,
			PublishedAt: a.PublishedAt,
			URL:         a.URL,
			Description: a.Description,
		})
	}

	outcome := "ok"
	if resp.StatusCode != http.StatusOK || decoded.Status == "error" {
		outcome = "api_error"
		n.Logger.Printf("newsapi reported %s: %s %s", resp.Status, decoded.Code, decoded.Message)
	}
	metrics.NewsAPIRequests.WithLabelValues(outcome).Inc()
	return res, nil
}
