package export

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mohammad-safakhou/newsgpt/internal/metrics"
	"github.com/mohammad-safakhou/newsgpt/models"
	"github.com/mohammad-safakhou/newsgpt/utils"
)

const dateLayout = "2006-01-02"

// Writer renders session content into Markdown files under Dir.
type Writer struct {
	Dir    string
	Now    func() time.Time
	Logger *log.Logger
}

func NewWriter(dir string, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.New(log.Writer(), "[EXPORT] ", log.LstdFlags)
	}
	return &Writer{Dir: dir, Now: time.Now, Logger: logger}
}

// Articles writes the article list and returns the file path.
// An empty list yields "" and no error.
func (w *Writer) Articles(articles []models.Article) (string, error) {
	if len(articles) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("# Today's News\n\n")
	for _, a := range articles {
		title := utils.PlainText(a.Title)
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "## %s\n", title)
		fmt.Fprintf(&b, "**Source:** %s\n", a.SourceName)
		fmt.Fprintf(&b, "**Date:** %s\n", a.PublishedAt)
		fmt.Fprintf(&b, "**URL:** %s\n", a.URL)
		if desc := utils.PlainText(a.Description); desc != "" {
			fmt.Fprintf(&b, "**Description:** %s\n", desc)
		}
		b.WriteString("\n---\n\n")
	}
	return w.write("articles", "News_"+w.today()+"*.md", b.String())
}

// Response writes the last assistant answer. Blank text yields "" and no error.
func (w *Writer) Response(text string) (string, error) {
	if text == "" {
		return "", nil
	}
	today := w.today()
	var b strings.Builder
	b.WriteString("# AI Response Export\n\n")
	fmt.Fprintf(&b, "**Exported on:** %s\n\n", today)
	b.WriteString("---\n\n")
	b.WriteString(text)
	b.WriteString("\n\n")
	return w.write("response", "AI_Response_"+today+"_*.md", b.String())
}

func (w *Writer) today() string {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	return now().Format(dateLayout)
}

func (w *Writer) write(kind, pattern, content string) (string, error) {
	f, err := os.CreateTemp(w.Dir, pattern)
	if err != nil {
		metrics.Exports.WithLabelValues(kind, "error").Inc()
		w.Logger.Printf("create %s export: %v", kind, err)
		return "", fmt.Errorf("create %s export: %w", kind, err)
	}
	path := f.Name()
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		metrics.Exports.WithLabelValues(kind, "error").Inc()
		w.Logger.Printf("write %s export: %v", kind, err)
		return "", fmt.Errorf("write %s export: %w", kind, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		metrics.Exports.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("close %s export: %w", kind, err)
	}
	metrics.Exports.WithLabelValues(kind, "ok").Inc()
	w.Logger.Printf("%s exported to %s", kind, path)
	return path, nil
}
