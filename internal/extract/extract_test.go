package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFromFile_PlainText(t *testing.T) {
	path := writeFile(t, "report.txt", "  a market report about robotics  ")
	doc, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if doc.Text != "a market report about robotics" {
		t.Fatalf("text: %q", doc.Text)
	}
	if doc.Name != "report.txt" || doc.Pages != 1 {
		t.Fatalf("metadata: %+v", doc)
	}
}

func TestFromFile_EmptyDocumentFails(t *testing.T) {
	path := writeFile(t, "empty.md", "   \n ")
	if _, err := FromFile(path); err == nil {
		t.Fatal("empty document must fail extraction")
	}
}

func TestFromFile_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "report.docx", "binary")
	if _, err := FromFile(path); err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("error: %v", err)
	}
}

func TestFromFile_MalformedPDFFails(t *testing.T) {
	path := writeFile(t, "broken.pdf", "this is not a pdf")
	if _, err := FromFile(path); err == nil {
		t.Fatal("malformed pdf must fail extraction")
	}
}

func TestScrapeContentText(t *testing.T) {
	content := []byte(`BT /F1 12 Tf 72 712 Td (Market report) Tj ET
BT (with \(nested\) text) Tj (and a line\nbreak) Tj ET`)
	got := scrapeContentText(content)
	want := "Market report with (nested) text and a line break"
	if got != want {
		t.Fatalf("scraped: got=%q want=%q", got, want)
	}
}

func TestScrapeContentText_NoText(t *testing.T) {
	if got := scrapeContentText([]byte("q 1 0 0 1 0 0 cm Q")); got != "" {
		t.Fatalf("scraped: got=%q want empty", got)
	}
}
