package ingestion

import "testing"

func TestInferMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		location string
		want     InferredMetadata
	}{
		{
			name:     "python tutorial",
			location: "https://python.langchain.com/docs/tutorials/rag/",
			want:     InferredMetadata{Product: "langchain", Language: "python", Section: "tutorials", DocType: "tutorial"},
		},
		{
			name:     "versioned python how-to",
			location: "https://python.langchain.com/v0.2/docs/how_to/streaming/",
			want:     InferredMetadata{Product: "langchain", Language: "python", Section: "how_to", DocType: "how-to"},
		},
		{
			name:     "python concepts",
			location: "https://python.langchain.com/docs/concepts/retrievers/",
			want:     InferredMetadata{Product: "langchain", Language: "python", Section: "concepts", DocType: "concept"},
		},
		{
			name:     "js integration",
			location: "https://js.langchain.com/docs/integrations/chat/openai",
			want:     InferredMetadata{Product: "langchain", Language: "js", Section: "integrations", DocType: "integration"},
		},
		{
			name:     "python api reference",
			location: "https://api.python.langchain.com/en/latest/langchain_api_reference.html",
			want:     InferredMetadata{Product: "langchain", Language: "python", Section: "api", DocType: "reference"},
		},
		{
			name:     "js api reference",
			location: "https://v03.api.js.langchain.com/classes/langchain_core.runnables.Runnable.html",
			want:     InferredMetadata{Product: "langchain", Language: "js", Section: "api", DocType: "reference"},
		},
		{
			name:     "langsmith how-to",
			location: "https://docs.smith.langchain.com/how_to_guides/tracing/trace_with_langchain",
			want:     InferredMetadata{Product: "langsmith", Section: "how_to_guides", DocType: "how-to"},
		},
		{
			name:     "langgraph python concepts",
			location: "https://langchain-ai.github.io/langgraph/concepts/low_level/",
			want:     InferredMetadata{Product: "langgraph", Language: "python", Section: "concepts", DocType: "concept"},
		},
		{
			name:     "langgraph js tutorial",
			location: "https://langchain-ai.github.io/langgraphjs/tutorials/quickstart/",
			want:     InferredMetadata{Product: "langgraph", Language: "js", Section: "tutorials", DocType: "tutorial"},
		},
		{
			name:     "unified docs langgraph",
			location: "https://docs.langchain.com/oss/python/langgraph/overview",
			want:     InferredMetadata{Product: "langgraph", Language: "python", Section: "overview", DocType: "guide"},
		},
		{
			name:     "unknown host",
			location: "https://example.com/blog/post",
			want:     InferredMetadata{Product: "langchain", Section: "blog", DocType: "guide"},
		},
		{
			name:     "local docs checkout",
			location: "/src/langchain/docs/docs/how_to/streaming.mdx",
			want:     InferredMetadata{Product: "langchain", Section: "how_to", DocType: "how-to"},
		},
		{
			name:     "local langgraph checkout",
			location: "/src/langgraph/docs/docs/concepts/persistence.md",
			want:     InferredMetadata{Product: "langgraph", Section: "concepts", DocType: "concept"},
		},
		{
			name:     "plain local file",
			location: "/tmp/notes.md",
			want:     InferredMetadata{Product: "langchain", DocType: "guide"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := InferMetadata(tt.location); got != tt.want {
				t.Errorf("InferMetadata(%q)\n got  %+v\n want %+v", tt.location, got, tt.want)
			}
		})
	}
}

func TestSourceMetadata_Overrides(t *testing.T) {
	t.Parallel()
	src := Source{
		Location: "https://python.langchain.com/docs/tutorials/rag/",
		Section:  "rag",
		DocType:  "guide",
	}
	md := src.metadata()
	if md["section"] != "rag" || md["doc_type"] != "guide" {
		t.Errorf("overrides not applied: %v", md)
	}
	if md["language"] != "python" || md["product"] != "langchain" {
		t.Errorf("inferred fields lost: %v", md)
	}
}

func TestVersionSegment(t *testing.T) {
	t.Parallel()
	for s, want := range map[string]bool{"v0.2": true, "v03": true, "v": false, "vectorstores": false, "docs": false} {
		if got := versionSegment(s); got != want {
			t.Errorf("versionSegment(%q) = %v, want %v", s, got, want)
		}
	}
}
