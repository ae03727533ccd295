package session_object

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/mohammad-safakhou/newsgpt/models"
	"github.com/mohammad-safakhou/newsgpt/session/session_models"
)

type Session struct {
	id           string
	expiresAt    time.Time
	bleve        bleve.Index
	articles     []models.Article
	lastResponse string
	history      []models.Turn
	mu           sync.RWMutex
	turn         sync.Mutex
}

func NewSession(id string, ttl time.Duration) (*Session, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Session{
		id:        id,
		expiresAt: time.Now().Add(ttl),
		bleve:     index,
		articles:  []models.Article{},
	}, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Expire(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresAt = time.Now().Add(ttl)
}

func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.After(s.expiresAt)
}

func (s *Session) History() []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Turn, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) AppendTurns(turns ...models.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turns...)
}

// SetArticles replaces the stored list and rebuilds the search index over it.
func (s *Session) SetArticles(articles []models.Article) error {
	stored := make([]models.Article, len(articles))
	copy(stored, articles)

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return err
	}
	batch := index.NewBatch()
	for i, a := range stored {
		if err := batch.Index(strconv.Itoa(i), session_models.NewArticleDoc(a)); err != nil {
			_ = index.Close()
			return err
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return err
	}

	s.mu.Lock()
	old := s.bleve
	s.articles = stored
	s.bleve = index
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (s *Session) Articles() []models.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Article, len(s.articles))
	copy(out, s.articles)
	return out
}

func (s *Session) SetLastResponse(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResponse = text
}

func (s *Session) LastResponse() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResponse
}

// Reset drops history and both pieces of state.
func (s *Session) Reset() error {
	if err := s.SetArticles(nil); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.lastResponse = ""
	return nil
}

// SearchArticles runs a match query over the last fetched articles.
// An empty query lists them all in stored order.
func (s *Session) SearchArticles(q string, k int) ([]session_models.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || k > len(s.articles) {
		k = len(s.articles)
	}
	if k == 0 {
		return []session_models.SearchHit{}, nil
	}
	if strings.TrimSpace(q) == "" {
		out := make([]session_models.SearchHit, 0, k)
		for i := 0; i < k; i++ {
			out = append(out, session_models.SearchHit{Position: i, Article: s.articles[i], Rank: i + 1})
		}
		return out, nil
	}

	if s.bleve == nil {
		return []session_models.SearchHit{}, nil
	}
	searchReq := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), k, 0, false)
	res, err := s.bleve.Search(searchReq)
	if err != nil {
		return nil, err
	}
	out := make([]session_models.SearchHit, 0, len(res.Hits))
	for i, hit := range res.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil || pos < 0 || pos >= len(s.articles) {
			continue
		}
		out = append(out, session_models.SearchHit{
			Position: pos,
			Article:  s.articles[pos],
			Score:    hit.Score,
			Rank:     i + 1,
		})
	}
	return out, nil
}

// Close releases the search index.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bleve == nil {
		return nil
	}
	err := s.bleve.Close()
	s.bleve = nil
	return err
}

func (s *Session) BeginTurn() bool { return s.turn.TryLock() }

func (s *Session) EndTurn() { s.turn.Unlock() }
