package news

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/newsgpt/internal/metrics"
	"github.com/mohammad-safakhou/newsgpt/models"
	"github.com/mohammad-safakhou/newsgpt/provider"
	"github.com/mohammad-safakhou/newsgpt/session"
)

const (
	DefaultMaxHistory = 5
	fallbackReply     = "Done"
)

const SystemPrompt = `You are a helpful news assistant that retrieves and summarizes current events.

- When a user asks for news, always use the ` + "`news_total`" + ` function to fetch articles.
- At least one search filter must be provided:
  • ` + "`query`" + ` for general keyword searches,
  • ` + "`title`" + ` for keywords that must appear in article titles,
  • ` + "`sources`" + ` for specific outlets (e.g. "bbc-news"),
  • ` + "`domains`" + ` for specific websites (e.g. "bbc.co.uk").
- Use optional filters when the user specifies:
  • ` + "`from_date`" + ` and ` + "`to_date`" + ` for date ranges,
  • ` + "`language`" + ` to restrict the language,
  • ` + "`sort_by`" + ` for ordering results (relevancy, popularity, publishedAt),
  • ` + "`page_size`" + ` to control how many articles to return (default 5).
- If the user is vague (e.g. "show me the news"), default to ` + "`query=\"news\"`" + `, ` + "`language=\"en\"`" + `, and ` + "`sort_by=\"publishedAt\"`" + `.
- After calling the function, present the headlines clearly, listing title, source, and URL. Summarize briefly rather than dumping raw JSON.
- If no results are returned, apologize and suggest trying a broader search term or another source/country.
- Always keep responses concise, neutral, and focused on the news content.`

// Assistant answers chat messages, calling the news search when the model asks.
type Assistant struct {
	LLM        provider.Provider
	News       Fetcher
	MaxHistory int
	Logger     *log.Logger
}

func NewAssistant(llm provider.Provider, fetcher Fetcher, maxHistory int, logger *log.Logger) *Assistant {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ASSISTANT] ", log.LstdFlags)
	}
	return &Assistant{LLM: llm, News: fetcher, MaxHistory: maxHistory, Logger: logger}
}

// trimHistory keeps the newest user/assistant turns that carry text.
func trimHistory(history []models.Turn, max int) []models.Turn {
	kept := make([]models.Turn, 0, len(history))
	for _, t := range history {
		if (t.Role == models.RoleUser || t.Role == models.RoleAssistant) && t.Content != "" {
			kept = append(kept, models.Turn{Role: t.Role, Content: t.Content})
		}
	}
	if len(kept) > max {
		kept = kept[len(kept)-max:]
	}
	return kept
}

// Respond runs one conversation turn and records the reply as the last response.
func (a *Assistant) Respond(ctx context.Context, state session.State, userMessage string, history []models.Turn) (string, error) {
	turns := []models.Turn{{Role: models.RoleSystem, Content: SystemPrompt}}
	turns = append(turns, trimHistory(history, a.MaxHistory)...)
	turns = append(turns, models.Turn{Role: models.RoleUser, Content: userMessage})

	metrics.LLMRequests.WithLabelValues("initial").Inc()
	completion, err := a.LLM.Complete(ctx, turns, []models.ToolSpec{NewsTool})
	if err != nil {
		return "", fmt.Errorf("model call: %w", err)
	}

	if completion.FinishReason == models.FinishToolCalls {
		a.Logger.Printf("model requested %d tool call(s)", len(completion.Message.ToolCalls))
		toolTurns, err := a.runToolCalls(ctx, state, completion.Message.ToolCalls)
		if err != nil {
			return "", err
		}
		request := completion.Message
		request.Role = models.RoleAssistant
		turns = append(turns, request)
		turns = append(turns, toolTurns...)

		metrics.LLMRequests.WithLabelValues("followup").Inc()
		completion, err = a.LLM.Complete(ctx, turns, nil)
		if err != nil {
			return "", fmt.Errorf("model follow-up call: %w", err)
		}
	}

	reply := completion.Message.Content
	if reply == "" {
		reply = fallbackReply
	}
	state.SetLastResponse(reply)
	return reply, nil
}

// Turn runs Respond against a session and appends the exchange to its history.
// It refuses to start while another turn on the same session is running.
func (a *Assistant) Turn(ctx context.Context, sess session.Session, userMessage string) (string, error) {
	if !sess.BeginTurn() {
		return "", session.ErrTurnInProgress
	}
	defer sess.EndTurn()

	start := time.Now()
	defer func() { metrics.TurnDuration.Observe(time.Since(start).Seconds()) }()

	reply, err := a.Respond(ctx, sess, userMessage, sess.History())
	if err != nil {
		a.Logger.Printf("session %s turn failed: %v", sess.ID(), err)
		return "", err
	}
	sess.AppendTurns(
		models.Turn{Role: models.RoleUser, Content: userMessage},
		models.Turn{Role: models.RoleAssistant, Content: reply},
	)
	return reply, nil
}
