package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/infohub-go/internal/logging"
	"github.com/54b3r/infohub-go/internal/rag"
)

// runRoot executes the root command with args and returns its stdout.
// HOME points at a temp dir so no user config or secrets leak in.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("INFOHUB_CONFIG", "")
	t.Setenv("INFOHUB_SECRETS", "")
	t.Setenv("INFOHUB_BACKEND_URL", "")

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// fakeQueryService answers invoke, batch, and stream with "A:" + question.
func fakeQueryService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/invoke", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{"output": "A:" + req.Input})
	})
	mux.HandleFunc("POST /chat/batch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs []string `json:"inputs"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		out := make([]string, len(req.Inputs))
		for i, q := range req.Inputs {
			out[i] = "A:" + q
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"output": out})
	})
	mux.HandleFunc("POST /chat/stream", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: metadata\ndata: {\"run_id\":\"x\"}\n\n")
		fmt.Fprint(w, "event: data\ndata: \"Lang\"\n\n")
		fmt.Fprint(w, "event: data\ndata: \"Chain\"\n\n")
		fmt.Fprint(w, "event: end\n\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{"serve", "chat", "ask", "ingest", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runRoot(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "infohub dev") {
		t.Errorf("output = %q, want prefix %q", out, "infohub dev")
	}
}

func TestAskCmd(t *testing.T) {
	srv := fakeQueryService(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "single question uses invoke",
			args: []string{"ask", "--url", srv.URL, "What is LCEL?"},
			want: []string{"A:What is LCEL?"},
		},
		{
			name: "several questions use batch",
			args: []string{"ask", "--url", srv.URL, "one", "two"},
			want: []string{"Q1: one", "A:one", "Q2: two", "A:two"},
		},
		{
			name: "stream prints fragments",
			args: []string{"ask", "--stream", "--url", srv.URL, "q"},
			want: []string{"LangChain\n"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runRoot(t, tt.args...)
			if err != nil {
				t.Fatalf("ask: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output %q missing %q", out, w)
				}
			}
		})
	}
}

func TestAskCmd_StreamRejectsSeveralQuestions(t *testing.T) {
	srv := fakeQueryService(t)
	if _, err := runRoot(t, "ask", "--stream", "--url", srv.URL, "a", "b"); err == nil {
		t.Fatal("expected error for --stream with two questions")
	}
}

func TestAskCmd_UsesEnvBackend(t *testing.T) {
	srv := fakeQueryService(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("INFOHUB_SECRETS", "")
	t.Setenv("INFOHUB_BACKEND_URL", srv.URL)

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"ask", "hi"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(out.String(), "A:hi") {
		t.Errorf("output = %q", out.String())
	}
}

func TestIngestCmd_RequiresSource(t *testing.T) {
	_, err := runRoot(t, "ingest")
	if err == nil || !strings.Contains(err.Error(), "at least one") {
		t.Fatalf("err = %v, want missing source error", err)
	}
}

func TestBackendURL_FlagWins(t *testing.T) {
	t.Setenv("INFOHUB_BACKEND_URL", "http://env:8000")
	got, source, err := backendURL("http://flag:9000")
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://flag:9000" || source != "flag" {
		t.Errorf("got (%q, %q), want flag URL", got, source)
	}
}

func TestOpenStore(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		t.Setenv("VECTOR_STORE", "sqlite")
		t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "index.db"))

		store, err := openStore(context.Background(), logging.Discard())
		if err != nil {
			t.Fatalf("openStore: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*rag.SQLiteStore); !ok {
			t.Errorf("store = %T, want *rag.SQLiteStore", store)
		}
		if err := store.Ping(context.Background()); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		t.Setenv("VECTOR_STORE", "chroma")
		if _, err := openStore(context.Background(), logging.Discard()); err == nil {
			t.Fatal("expected error for unknown store")
		}
	})
}

func TestChatLogPath(t *testing.T) {
	t.Setenv("INFOHUB_CHAT_LOG", "/tmp/custom.log")
	got, err := chatLogPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/custom.log" {
		t.Errorf("path = %q", got)
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("INFOHUB_CHAT_LOG", "")
	got, err = chatLogPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".infohub", "chat.log"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}
