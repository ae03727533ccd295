// Package recipients turns uploaded address lists and pasted text into a
// deduplicated set of e-mail addresses.
package recipients

import (
	"bytes"
	"encoding/csv"
	"io"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	separators   = regexp.MustCompile(`[,\n;]+`)
)

// Upload is a user-supplied file; Name is only used as a format hint.
type Upload struct {
	Name string
	Data []byte
}

// Valid reports whether addr has the local@domain.tld shape.
func Valid(addr string) bool {
	return emailPattern.MatchString(addr)
}

// Extract collects addresses from the file (if any) and then the pasted text.
// The result keeps first-seen order and is unique ignoring case.
func Extract(file *Upload, pasted string) []string {
	var candidates []string
	if file != nil && len(file.Data) > 0 {
		text := strings.ToValidUTF8(string(file.Data), "")
		if isTabular(file.Name) {
			candidates = append(candidates, fromCSV(text)...)
		} else {
			candidates = append(candidates, fromText(text)...)
		}
	}
	if pasted != "" {
		candidates = append(candidates, fromText(pasted)...)
	}
	return normalize(candidates)
}

func isTabular(name string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".csv")
}

func fromText(text string) []string {
	var out []string
	for _, tok := range separators.Split(text, -1) {
		if Valid(strings.TrimSpace(tok)) {
			out = append(out, tok)
		}
	}
	return out
}

// fromCSV prefers an "email" column; without one every cell is scanned.
// Unparseable input falls back to plain splitting.
func fromCSV(text string) []string {
	records, err := readCSV(text)
	if err != nil || len(records) == 0 {
		return fromText(text)
	}

	header := records[0]
	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")), "email") {
			col = i
			break
		}
	}

	var out []string
	if col >= 0 {
		for _, row := range records[1:] {
			if col < len(row) {
				out = append(out, row[col])
			}
		}
		return out
	}
	for _, row := range records {
		for _, cell := range row {
			if Valid(strings.TrimSpace(cell)) {
				out = append(out, cell)
			}
		}
	}
	return out
}

func readCSV(text string) ([][]string, error) {
	r := csv.NewReader(bytes.NewBufferString(text))
	r.FieldsPerRecord = -1
	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

func normalize(items []string) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(items))
	for _, raw := range items {
		e := strings.Trim(strings.TrimSpace(raw), ",;")
		if e == "" || !Valid(e) {
			continue
		}
		key := strings.ToLower(e)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
