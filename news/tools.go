package news

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/newsgpt/internal/metrics"
	"github.com/mohammad-safakhou/newsgpt/models"
	"github.com/mohammad-safakhou/newsgpt/news/newsapi"
	"github.com/mohammad-safakhou/newsgpt/session"
)

const NewsToolName = "news_total"

// NewsTool is the only tool advertised to the model.
var NewsTool = models.ToolSpec{
	Name:        NewsToolName,
	Description: "Fetches news articles from NewsAPI's 'everything' endpoint. Use this function when the user asks for general news or specific topics. At least one of query, title, sources, or domains must be provided. You can also filter by date range, language, sort order, and page size.",
	Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Keyword or phrase to search in all article fields."},
    "title": {"type": "string", "description": "Keyword or phrase to search only in article titles."},
    "sources": {"type": "string", "description": "Comma-separated list of source IDs (e.g., 'bbc-news,cnn')."},
    "domains": {"type": "string", "description": "Comma-separated list of domains to restrict search (e.g., 'bbc.co.uk,techcrunch.com')."},
    "exclude_domains": {"type": "string", "description": "Comma-separated list of domains to exclude from results."},
    "from_date": {"type": "string", "description": "Oldest article date in YYYY-MM-DD format."},
    "to_date": {"type": "string", "description": "Newest article date in YYYY-MM-DD format."},
    "language": {"type": "string", "description": "Language of the articles (default 'en')."},
    "sort_by": {"type": "string", "enum": ["relevancy", "popularity", "publishedAt"], "description": "Order to sort the results."},
    "page_size": {"type": "integer", "description": "Number of results per page (default 5, max 100)."},
    "page": {"type": "integer", "description": "Page number of results to fetch (default 1)."}
  },
  "required": []
}`),
}

// Fetcher runs a news search.
type Fetcher interface {
	Fetch(ctx context.Context, q models.SearchQuery) (newsapi.Result, error)
}

// toolCall is the closed set of calls the assistant knows how to run.
type toolCall interface {
	run(ctx context.Context, fetcher Fetcher, state session.State) (json.RawMessage, error)
	name() string
}

type newsSearchCall struct {
	query models.SearchQuery
}

type unknownToolCall struct {
	toolName string
}

func (c newsSearchCall) name() string  { return NewsToolName }
func (c unknownToolCall) name() string { return c.toolName }

// run fetches and replaces the session's article list with whatever came back.
func (c newsSearchCall) run(ctx context.Context, fetcher Fetcher, state session.State) (json.RawMessage, error) {
	res, err := fetcher.Fetch(ctx, c.query)
	if err != nil {
		return nil, err
	}
	if err := state.SetArticles(res.Articles); err != nil {
		return nil, fmt.Errorf("store articles: %w", err)
	}
	if len(res.Raw) == 0 {
		return json.RawMessage("null"), nil
	}
	return res.Raw, nil
}

func (c unknownToolCall) run(context.Context, Fetcher, session.State) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"error": fmt.Sprintf("Unknown tool %s", c.toolName)})
}

// decodeToolCall parses the model-supplied arguments. Empty arguments mean {}.
// toolLabel keeps model-supplied names out of metric labels.
func toolLabel(name string) string {
	if name == NewsToolName {
		return name
	}
	return "unknown"
}

func decodeToolCall(tc models.ToolCall) (toolCall, map[string]any, error) {
	raw := strings.TrimSpace(tc.Arguments)
	if raw == "" {
		raw = "{}"
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, nil, fmt.Errorf("%w: tool %q arguments are not a JSON object: %v", models.ErrValidation, tc.Name, err)
	}

	switch tc.Name {
	case NewsToolName:
		var q models.SearchQuery
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, nil, fmt.Errorf("%w: tool %q arguments: %v", models.ErrValidation, tc.Name, err)
		}
		return newsSearchCall{query: q}, args, nil
	default:
		return unknownToolCall{toolName: tc.Name}, args, nil
	}
}

type toolContent struct {
	Args   map[string]any  `json:"args"`
	Result json.RawMessage `json:"result"`
}

// runToolCalls executes calls in order and returns one tool turn per call.
// The first fetch failure aborts the whole turn.
func (a *Assistant) runToolCalls(ctx context.Context, state session.State, calls []models.ToolCall) ([]models.Turn, error) {
	turns := make([]models.Turn, 0, len(calls))
	for _, tc := range calls {
		call, args, err := decodeToolCall(tc)
		if err != nil {
			metrics.ToolCalls.WithLabelValues(toolLabel(tc.Name), "invalid").Inc()
			return nil, err
		}

		result, err := call.run(ctx, a.News, state)
		if err != nil {
			metrics.ToolCalls.WithLabelValues(toolLabel(call.name()), "error").Inc()
			a.Logger.Printf("tool %s failed: %v", call.name(), err)
			return nil, err
		}
		outcome := "ok"
		if _, unknown := call.(unknownToolCall); unknown {
			outcome = "unknown"
			a.Logger.Printf("model asked for %v: %s", models.ErrUnknownTool, tc.Name)
		}
		metrics.ToolCalls.WithLabelValues(toolLabel(call.name()), outcome).Inc()

		content, err := json.Marshal(toolContent{Args: args, Result: result})
		if err != nil {
			return nil, fmt.Errorf("encode tool result: %w", err)
		}
		turns = append(turns, models.Turn{
			Role:       models.RoleTool,
			Content:    string(content),
			ToolCallID: tc.ID,
		})
	}
	return turns, nil
}
