package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// maxFetchBytes caps one fetched page.
const maxFetchBytes = 10 << 20

// SupportedExtensions lists the local file types ingest accepts.
var SupportedExtensions = []string{".md", ".mdx", ".txt", ".rst"}

// Source describes one documentation source to be ingested.
type Source struct {
	// Location is an http(s) URL or an absolute local file path. It is also
	// the Source recorded on every stored chunk.
	Location string

	// Section overrides the section inferred from Location when set.
	Section string

	// DocType overrides the doc type inferred from Location when set.
	DocType string
}

// IsURL reports whether the source is fetched over HTTP.
func (s Source) IsURL() bool {
	u, err := url.Parse(s.Location)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// metadata returns the inferred metadata with explicit overrides applied.
func (s Source) metadata() map[string]string {
	m := InferMetadata(s.Location)
	if s.Section != "" {
		m.Section = s.Section
	}
	if s.DocType != "" {
		m.DocType = s.DocType
	}
	out := map[string]string{
		"product":  m.Product,
		"section":  m.Section,
		"doc_type": m.DocType,
	}
	if m.Language != "" {
		out["language"] = m.Language
	}
	return out
}

// URLSources turns raw URLs into sources, rejecting anything that is not http(s).
func URLSources(urls []string) ([]Source, error) {
	out := make([]Source, 0, len(urls))
	for _, raw := range urls {
		src := Source{Location: strings.TrimSpace(raw)}
		if !src.IsURL() {
			return nil, fmt.Errorf("ingestion: %q is not an http(s) URL", raw)
		}
		out = append(out, src)
	}
	return out, nil
}

// ExpandPaths turns files and directories into file sources. Directories are
// walked recursively and only files with a supported extension are kept.
// Locations are absolute so watch events map onto the same source keys.
func ExpandPaths(paths []string) ([]Source, error) {
	var out []Source
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("ingestion: resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("ingestion: %w", err)
		}
		if !info.IsDir() {
			if !Supported(abs) {
				return nil, fmt.Errorf("ingestion: unsupported file type %q (want one of %v)", filepath.Ext(abs), SupportedExtensions)
			}
			out = append(out, Source{Location: abs})
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != abs && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if Supported(path) {
				out = append(out, Source{Location: path})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("ingestion: walk %s: %w", abs, err)
		}
	}
	return out, nil
}

// Supported reports whether path has an ingestible extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// load returns the plain text of a source.
func (p *Pipeline) load(ctx context.Context, src Source) (string, error) {
	if src.IsURL() {
		return p.fetch(ctx, src.Location)
	}
	b, err := os.ReadFile(src.Location)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(b), nil
}

// fetch retrieves a URL and returns its text. HTML pages are reduced to
// their visible text.
func (p *Pipeline) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/html, text/plain, text/markdown")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return htmlText(string(body))
	}
	return string(body), nil
}

// skippedElements carry no documentation text.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true,
	"nav": true, "header": true, "footer": true, "aside": true, "head": true,
}

// blockElements end a paragraph in the extracted text.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "pre": true, "blockquote": true, "tr": true, "table": true,
	"ul": true, "ol": true, "br": true,
}

// htmlText extracts visible text from an HTML document. Block elements are
// separated by blank lines; whitespace is collapsed except inside <pre>.
func htmlText(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node, pre bool)
	walk = func(n *html.Node, pre bool) {
		switch n.Type {
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "pre" {
				pre = true
			}
		case html.TextNode:
			text := n.Data
			if !pre {
				text = strings.Join(strings.Fields(text), " ")
				if text == "" {
					return
				}
				if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(text)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, pre)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n\n") {
			sb.WriteString("\n\n")
		}
	}
	walk(root, false)

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("page has no visible text")
	}
	return text, nil
}
