// Command infohub answers questions about the LangChain documentation with
// retrieval-augmented generation. It runs the HTTP query service, the
// terminal chat client, one-shot queries, and the documentation ingester.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/infohub-go/cmd/infohub/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
