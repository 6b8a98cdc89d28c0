package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSecrets(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "secrets.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestResolveBackendURL_SecretsWin(t *testing.T) {
	p := writeSecrets(t, "backend_url: https://infohub.example.com/\n")
	t.Setenv("INFOHUB_BACKEND_URL", "http://from-env:8000")

	got, src, err := ResolveBackendURL(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://infohub.example.com" || src != SourceSecrets {
		t.Errorf("got %q (%s), want https://infohub.example.com (secrets)", got, src)
	}
}

func TestResolveBackendURL_EnvWhenSecretsLackKey(t *testing.T) {
	p := writeSecrets(t, "other: value\n")
	t.Setenv("INFOHUB_BACKEND_URL", "http://from-env:8000")

	got, src, err := ResolveBackendURL(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "http://from-env:8000" || src != SourceEnv {
		t.Errorf("got %q (%s), want env value", got, src)
	}
}

func TestResolveBackendURL_Default(t *testing.T) {
	t.Setenv("INFOHUB_BACKEND_URL", "")

	got, src, err := ResolveBackendURL(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != DefaultBackendURL || src != SourceDefault {
		t.Errorf("got %q (%s), want default", got, src)
	}
}

func TestResolveBackendURL_MalformedSecrets(t *testing.T) {
	p := writeSecrets(t, "{{not yaml")

	if _, _, err := ResolveBackendURL(p); err == nil {
		t.Fatal("expected error for malformed secrets file")
	}
}
