package session_models

import "github.com/mohammad-safakhou/newsgpt/models"

// ArticleDoc is what gets indexed for each stored article.
type ArticleDoc struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

func NewArticleDoc(a models.Article) ArticleDoc {
	return ArticleDoc{Title: a.Title, Description: a.Description, Source: a.SourceName}
}

type SearchHit struct {
	Position int            `json:"position"` // index into the stored article list
	Article  models.Article `json:"article"`
	Score    float64        `json:"score"`
	Rank     int            `json:"rank"`
}
