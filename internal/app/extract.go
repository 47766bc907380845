package app

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

var timestampPattern = regexp.MustCompile(`\d{1,2}:\d{2}:\d{2}`)

// extractText converts an uploaded transcript file into plain text based on
// its extension. CSV files are treated as Teams meeting exports: the first
// column holds timestamps, the remaining columns hold speaker and speech.
func extractText(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return extractPlainText(data)
	case ".csv":
		return extractTeamsCSV(data)
	case ".pdf":
		return extractPDF(data)
	case ".html", ".htm":
		return extractHTML(data)
	default:
		return "", fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
}

func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid UTF-8 text")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("file contains no text")
	}
	return text, nil
}

// extractTeamsCSV drops the header row, joins each row's non-timestamp
// columns, and strips inline HH:MM:SS timestamps. Rows without speech are
// skipped.
func extractTeamsCSV(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid UTF-8 text")
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse transcript csv: %w", err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("file contains no text")
	}
	var lines []string
	for _, row := range records[1:] {
		if len(row) < 2 {
			continue
		}
		text := strings.TrimSpace(strings.Join(row[1:], " "))
		if text == "" {
			continue
		}
		cleaned := strings.TrimSpace(timestampPattern.ReplaceAllString(text, ""))
		if cleaned != "" {
			lines = append(lines, cleaned)
		}
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("file contains no text")
	}
	return strings.Join(lines, "\n"), nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely
			continue
		}
		text = normalizeText(text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text extracted from pdf")
	}
	return strings.Join(parts, "\n"), nil
}

func extractHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	text := normalizeText(collectHTMLText(doc))
	if text == "" {
		return "", fmt.Errorf("file contains no text")
	}
	return text, nil
}

func collectHTMLText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteString(" ")
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if node.Type == html.ElementNode && (node.Data == "p" || node.Data == "br" || node.Data == "div" || node.Data == "li") {
			buf.WriteString(" ")
		}
	}
	walk(n)
	return buf.String()
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
