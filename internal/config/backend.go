package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultBackendURL is the Query Service address used when neither the
// secrets file nor the environment names one.
const DefaultBackendURL = "http://localhost:8000"

// BackendSource records where the chat client's backend address came from.
type BackendSource string

const (
	// SourceSecrets means the address came from the deployment secrets file.
	SourceSecrets BackendSource = "secrets"
	// SourceEnv means the address came from INFOHUB_BACKEND_URL.
	SourceEnv BackendSource = "env"
	// SourceDefault means the hardcoded local default was used.
	SourceDefault BackendSource = "default"
)

// secretsFile is the subset of the deployment secrets file the client reads.
type secretsFile struct {
	BackendURL string `yaml:"backend_url"`
}

// ResolveBackendURL returns the Query Service base address using, in order:
// the secrets file, the INFOHUB_BACKEND_URL env var, then [DefaultBackendURL].
//
// The secrets file is explicitPath if set, else INFOHUB_SECRETS, else
// ~/.infohub/secrets.yaml. A missing secrets file is not an error; an
// unreadable or malformed one is.
func ResolveBackendURL(explicitPath string) (string, BackendSource, error) {
	path := explicitPath
	if path == "" {
		path = os.Getenv("INFOHUB_SECRETS")
	}
	if path == "" {
		if dir, err := HomeDir(); err == nil {
			path = filepath.Join(dir, "secrets.yaml")
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var s secretsFile
			if err := yaml.Unmarshal(data, &s); err != nil {
				return "", "", fmt.Errorf("config: failed to parse secrets %s: %w", path, err)
			}
			if u := strings.TrimSpace(s.BackendURL); u != "" {
				return strings.TrimRight(u, "/"), SourceSecrets, nil
			}
		case !os.IsNotExist(err):
			return "", "", fmt.Errorf("config: failed to read secrets %s: %w", path, err)
		}
	}

	if u := strings.TrimSpace(os.Getenv("INFOHUB_BACKEND_URL")); u != "" {
		return strings.TrimRight(u, "/"), SourceEnv, nil
	}

	return DefaultBackendURL, SourceDefault, nil
}
