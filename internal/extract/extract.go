// Package extract turns source files into the plain text the pipeline
// evaluates. PDFs are validated in relaxed mode and their page content
// streams scraped for text; plain-text formats pass through.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document is the extracted input for a pipeline run.
type Document struct {
	Name  string
	Text  string
	Pages int
}

// FromFile loads and extracts a source document by extension.
func FromFile(path string) (Document, error) {
	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return fromPDF(path, name)
	case ".txt", ".md":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Document{}, err
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			return Document{}, fmt.Errorf("extract %s: document is empty", name)
		}
		return Document{Name: name, Text: text, Pages: 1}, nil
	default:
		return Document{}, fmt.Errorf("extract %s: unsupported format %q", name, filepath.Ext(path))
	}
}

func fromPDF(path, name string) (Document, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ValidateFile(path, conf); err != nil {
		return Document{}, fmt.Errorf("extract %s: invalid pdf: %w", name, err)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("extract %s: page count: %w", name, err)
	}
	if pages == 0 {
		return Document{}, fmt.Errorf("extract %s: pdf has no pages", name)
	}

	tmpDir, err := os.MkdirTemp("", "extract-*")
	if err != nil {
		return Document{}, err
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractContentFile(path, tmpDir, nil, conf); err != nil {
		return Document{}, fmt.Errorf("extract %s: content: %w", name, err)
	}

	var sb strings.Builder
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return Document{}, err
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(tmpDir, ent.Name()))
		if err != nil {
			continue
		}
		if text := scrapeContentText(raw); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Document{}, fmt.Errorf("extract %s: no text content found", name)
	}
	return Document{Name: name, Text: text, Pages: pages}, nil
}

// scrapeContentText collects literal strings from a PDF content stream. It
// handles escape sequences and nested parentheses; positioning operators and
// font encodings are ignored, so the result is rough but sufficient as LLM
// input.
func scrapeContentText(content []byte) string {
	var sb strings.Builder
	depth := 0
	escaped := false
	for i := 0; i < len(content); i++ {
		c := content[i]
		if depth == 0 {
			if c == '(' {
				depth = 1
			}
			continue
		}
		if escaped {
			switch c {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r', 'b', 'f':
				sb.WriteByte(' ')
			case '(', ')', '\\':
				sb.WriteByte(c)
			}
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '(':
			depth++
			sb.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				sb.WriteByte(' ')
			} else {
				sb.WriteByte(c)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
