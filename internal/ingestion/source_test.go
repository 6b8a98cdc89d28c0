package ingestion

import (
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestURLSources(t *testing.T) {
	t.Parallel()
	got, err := URLSources([]string{" https://python.langchain.com/docs/ "})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Location != "https://python.langchain.com/docs/" {
		t.Errorf("Location = %q", got[0].Location)
	}
	if _, err := URLSources([]string{"ftp://example.com/x"}); err == nil {
		t.Error("expected error for non-http URL")
	}
	if _, err := URLSources([]string{"docs/readme.md"}); err == nil {
		t.Error("expected error for a path")
	}
}

func TestExpandPaths(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "a")
	writeFile(t, dir, "nested/b.mdx", "b")
	writeFile(t, dir, "nested/c.rst", "c")
	writeFile(t, dir, "nested/skip.go", "package x")
	writeFile(t, dir, ".git/d.md", "hidden")
	single := writeFile(t, t.TempDir(), "e.txt", "e")

	got, err := ExpandPaths([]string{dir, single})
	if err != nil {
		t.Fatalf("ExpandPaths: %v", err)
	}
	var names []string
	for _, s := range got {
		if !filepath.IsAbs(s.Location) {
			t.Errorf("location %q not absolute", s.Location)
		}
		names = append(names, filepath.Base(s.Location))
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "a.md,b.mdx,c.rst,e.txt" {
		t.Errorf("files = %v", names)
	}
}

func TestExpandPaths_Errors(t *testing.T) {
	t.Parallel()
	if _, err := ExpandPaths([]string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected error for missing path")
	}
	bad := writeFile(t, t.TempDir(), "main.go", "package main")
	if _, err := ExpandPaths([]string{bad}); err == nil {
		t.Error("expected error for unsupported file")
	}
}

func TestHTMLText(t *testing.T) {
	t.Parallel()
	doc := `<html><head><style>p{}</style></head><body>
<header>Site header</header>
<h1>Retrievers</h1>
<p>A   retriever
returns documents.</p>
<pre>retriever.invoke("q")
  # indented</pre>
<footer>Footer</footer>
</body></html>`

	got, err := htmlText(doc)
	if err != nil {
		t.Fatal(err)
	}
	want := "Retrievers\n\nA retriever returns documents.\n\nretriever.invoke(\"q\")\n  # indented"
	if got != want {
		t.Errorf("htmlText =\n%q\nwant\n%q", got, want)
	}

	if _, err := htmlText("<html><body><script>x()</script></body></html>"); err == nil {
		t.Error("expected error for page with no text")
	}
}
