package render

import (
	"strings"
	"testing"
)

func TestMarkdown_HTML(t *testing.T) {
	m := NewMarkdown()

	got := string(m.HTML("**bold** and `code`"))
	if !strings.Contains(got, "<strong>bold</strong>") || !strings.Contains(got, "<code>code</code>") {
		t.Fatalf("unexpected html %q", got)
	}

	got = string(m.HTML("hi <script>alert(1)</script> [x](javascript:alert(1))"))
	if strings.Contains(got, "<script") || strings.Contains(got, "javascript:") {
		t.Fatalf("unsafe html survived: %q", got)
	}

	got = string(m.HTML("| a | b |\n|---|---|\n| 1 | 2 |"))
	if !strings.Contains(got, "<table>") {
		t.Fatalf("expected a table, got %q", got)
	}
}
