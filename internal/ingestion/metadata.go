package ingestion

import (
	"net/url"
	"path/filepath"
	"strings"
)

// InferredMetadata holds the product, language, section, and doc type
// inferred from a documentation URL or file path. Explicit Source fields
// take precedence over inferred values.
type InferredMetadata struct {
	// Product is the documented project (langchain, langgraph, langsmith).
	Product string
	// Language is the SDK language (python, js). Empty when unknown.
	Language string
	// Section is the top-level docs section (tutorials, how_to, concepts, ...).
	Section string
	// DocType classifies the documentation kind (tutorial, how-to, concept,
	// integration, reference, guide).
	DocType string
}

// sectionDocTypes maps docs section names to a doc type.
var sectionDocTypes = map[string]string{
	"tutorials":     "tutorial",
	"tutorial":      "tutorial",
	"get_started":   "tutorial",
	"quickstart":    "tutorial",
	"how_to":        "how-to",
	"how-to":        "how-to",
	"how-tos":       "how-to",
	"concepts":      "concept",
	"conceptual":    "concept",
	"integrations":  "integration",
	"api":           "reference",
	"api_reference": "reference",
	"how_to_guides": "how-to",
	"reference":     "reference",
}

// versionSegment matches path prefixes such as "v0.2" or "v03".
func versionSegment(s string) bool {
	return len(s) > 1 && s[0] == 'v' && strings.Trim(s[1:], "0123456789.") == ""
}

// InferMetadata inspects a documentation URL or file path and returns
// best-effort metadata. Unknown locations get product "langchain" and doc
// type "guide".
//
// Supported URL patterns:
//
//	python.langchain.com/docs/{section}/...
//	js.langchain.com/docs/{section}/...
//	api.python.langchain.com/...        (reference)
//	docs.smith.langchain.com/...        (langsmith)
//	langchain-ai.github.io/langgraph/...
//	docs.langchain.com/{oss|langsmith}/...
func InferMetadata(location string) InferredMetadata {
	m := InferredMetadata{Product: "langchain", DocType: "guide"}

	parsed, err := url.Parse(location)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		inferPath(location, &m)
		return m
	}

	host := strings.ToLower(parsed.Hostname())
	segments := trimSegments(strings.ToLower(parsed.Path))

	switch {
	case strings.HasPrefix(host, "api.python.langchain.com"):
		m.Language = "python"
		m.Section = "api"
		m.DocType = "reference"
		return m
	case strings.HasSuffix(host, "api.js.langchain.com"):
		m.Language = "js"
		m.Section = "api"
		m.DocType = "reference"
		return m
	case host == "python.langchain.com":
		m.Language = "python"
	case host == "js.langchain.com":
		m.Language = "js"
	case host == "docs.smith.langchain.com":
		m.Product = "langsmith"
	case host == "langchain-ai.github.io":
		segments = inferGitHubPages(segments, &m)
	case host == "docs.langchain.com":
		segments = inferUnifiedDocs(segments, &m)
	}

	inferSection(segments, &m)
	return m
}

// inferGitHubPages handles langchain-ai.github.io/{langgraph|langgraphjs}/...
// and returns the remaining segments.
func inferGitHubPages(segments []string, m *InferredMetadata) []string {
	if len(segments) == 0 {
		return segments
	}
	switch segments[0] {
	case "langgraph":
		m.Product = "langgraph"
		m.Language = "python"
	case "langgraphjs":
		m.Product = "langgraph"
		m.Language = "js"
	default:
		return segments
	}
	return segments[1:]
}

// inferUnifiedDocs handles docs.langchain.com/{oss|langsmith}/{python|javascript}/...
// and returns the remaining segments.
func inferUnifiedDocs(segments []string, m *InferredMetadata) []string {
	if len(segments) > 0 && segments[0] == "langsmith" {
		m.Product = "langsmith"
		segments = segments[1:]
	} else if len(segments) > 0 && segments[0] == "oss" {
		segments = segments[1:]
	}
	if len(segments) > 0 {
		switch segments[0] {
		case "python":
			m.Language = "python"
			segments = segments[1:]
		case "javascript", "js":
			m.Language = "js"
			segments = segments[1:]
		}
	}
	if len(segments) > 0 && segments[0] == "langgraph" {
		m.Product = "langgraph"
		segments = segments[1:]
	}
	return segments
}

// inferSection sets Section and DocType from the first meaningful segment
// after an optional "docs" and version prefix.
func inferSection(segments []string, m *InferredMetadata) {
	for len(segments) > 0 && (segments[0] == "docs" || versionSegment(segments[0])) {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return
	}
	m.Section = segments[0]
	if dt, ok := sectionDocTypes[segments[0]]; ok {
		m.DocType = dt
	}
}

// inferPath handles local files, typically a checkout of the docs tree such
// as langchain/docs/docs/how_to/streaming.mdx. The deepest known section
// directory wins.
func inferPath(path string, m *InferredMetadata) {
	segments := trimSegments(strings.ToLower(filepath.ToSlash(path)))
	if len(segments) > 0 {
		segments = segments[:len(segments)-1]
	}
	for _, seg := range segments {
		switch {
		case strings.Contains(seg, "langgraph"):
			m.Product = "langgraph"
		case strings.Contains(seg, "langsmith"):
			m.Product = "langsmith"
		}
	}
	for i := len(segments) - 1; i >= 0; i-- {
		if dt, ok := sectionDocTypes[segments[i]]; ok {
			m.Section = segments[i]
			m.DocType = dt
			return
		}
	}
}

// trimSegments splits a URL path into non-empty segments.
func trimSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
