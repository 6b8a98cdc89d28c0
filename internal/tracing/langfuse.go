// Package tracing wires optional Langfuse tracing into the answer pipeline.
// Tracing is enabled only when both Langfuse keys are configured.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost is the self-hosted Langfuse address used when LANGFUSE_HOST is unset.
const defaultHost = "http://localhost:3000"

// configFromEnv reads the Langfuse settings. ok is false when either key is missing.
func configFromEnv() (cfg *langfuse.Config, ok bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return nil, false
	}
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}
	return &langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
	}, true
}

// Setup returns the Langfuse callback handler for pipeline.Config.Handlers
// and a flush function that must run before process exit so buffered
// traces are sent. When Langfuse is not configured it returns nil, a no-op
// flush, and false.
func Setup() (callbacks.Handler, func(), bool) {
	cfg, ok := configFromEnv()
	if !ok {
		return nil, func() {}, false
	}
	handler, flusher := langfuse.NewLangfuseHandler(cfg)
	return handler, flusher, true
}
