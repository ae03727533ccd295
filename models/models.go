package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrValidation marks malformed or underspecified caller input.
	ErrValidation = errors.New("validation error")
	// ErrNetwork marks an outbound call that could not complete.
	ErrNetwork = errors.New("network error")
	// ErrUpstream marks a response whose shape we could not use.
	ErrUpstream = errors.New("upstream data error")
	// ErrUnknownTool is reported back to the model, never returned from a turn.
	ErrUnknownTool = errors.New("unknown tool")
)

const (
	MaxPageSize     = 100
	DefaultPageSize = 5
	DefaultLanguage = "en"
	DefaultSortBy   = "publishedAt"
)

// SortBy values accepted by the news search.
var SortOptions = []string{"relevancy", "popularity", "publishedAt"}

// SearchQuery is the argument set of the news search tool.
type SearchQuery struct {
	Query          string  `json:"query,omitempty"`
	Title          string  `json:"title,omitempty"`
	Sources        string  `json:"sources,omitempty"`
	Domains        string  `json:"domains,omitempty"`
	ExcludeDomains string  `json:"exclude_domains,omitempty"`
	FromDate       string  `json:"from_date,omitempty"`
	ToDate         string  `json:"to_date,omitempty"`
	Language       string  `json:"language,omitempty"`
	SortBy         string  `json:"sort_by,omitempty"`
	PageSize       FlexInt `json:"page_size,omitempty"`
	Page           FlexInt `json:"page,omitempty"`
}

// Validate requires at least one of query, title, sources or domains.
func (q SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" &&
		strings.TrimSpace(q.Title) == "" &&
		strings.TrimSpace(q.Sources) == "" &&
		strings.TrimSpace(q.Domains) == "" {
		return fmt.Errorf("%w: provide at least one of query, title, sources, or domains", ErrValidation)
	}
	return nil
}

// Normalize fills defaults and clamps paging.
func (q SearchQuery) Normalize() SearchQuery {
	if q.Language == "" {
		q.Language = DefaultLanguage
	}
	if q.SortBy == "" {
		q.SortBy = DefaultSortBy
	}
	switch {
	case q.PageSize == 0:
		q.PageSize = DefaultPageSize
	case q.PageSize < 1:
		q.PageSize = 1
	case q.PageSize > MaxPageSize:
		q.PageSize = MaxPageSize
	}
	if q.Page < 1 {
		q.Page = 1
	}
	return q
}

// FlexInt decodes from a JSON number or a numeric string.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("%w: not an integer: %s", ErrValidation, string(b))
	}
	// saturate so oversized values still clamp to the upper bound
	switch {
	case n > math.MaxInt32:
		n = math.MaxInt32
	case n < math.MinInt32:
		n = math.MinInt32
	}
	*f = FlexInt(int(n))
	return nil
}

// Article is one search hit as stored in session state.
type Article struct {
	Title       string `json:"title"`
	SourceName  string `json:"source_name"`
	PublishedAt string `json:"published_at"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one message of a conversation.
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model request to run a named tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec advertises a tool to the model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

const FinishToolCalls = "tool_calls"

// Completion is a single model answer.
type Completion struct {
	FinishReason     string
	Message          Turn
	PromptTokens     int64
	CompletionTokens int64
}
