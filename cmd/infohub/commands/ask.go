package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/infohub-go/internal/client"
)

// NewAskCmd constructs the `infohub ask` command, which sends one or more
// questions to a running query service and prints the answers.
func NewAskCmd() *cobra.Command {
	var backend string
	var stream bool

	cmd := &cobra.Command{
		Use:   "ask [question]...",
		Short: "Ask the query service one or more questions",
		Long: `Ask a running InfoHub query service about LangChain.

One question calls /chat/invoke. Several questions are sent together to
/chat/batch and answered in order. With --stream, a single question is
answered through /chat/stream and printed as it is generated.

The backend address is resolved the same way as for 'infohub chat'.

Examples:
  infohub ask "What is LangChain?"
  infohub ask --stream "How do I build a retriever?"
  infohub ask "What is LCEL?" "What is LangGraph?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			baseURL, _, err := backendURL(backend)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			c := client.New(baseURL)

			switch {
			case stream:
				if len(args) > 1 {
					return fmt.Errorf("ask: --stream takes exactly one question")
				}
				err := c.Stream(ctx, args[0], func(fragment string) error {
					_, werr := io.WriteString(out, fragment)
					return werr
				})
				fmt.Fprintln(out)
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				return nil

			case len(args) == 1:
				answer, err := c.Invoke(ctx, args[0])
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				fmt.Fprintln(out, answer)
				return nil

			default:
				answers, err := c.Batch(ctx, args)
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				printBatch(out, args, answers)
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&backend, "url", "", "Query service base URL (overrides secrets file and INFOHUB_BACKEND_URL)")
	cmd.Flags().BoolVarP(&stream, "stream", "s", false, "Print the answer as it is generated")

	return cmd
}

// printBatch writes each question as a coloured heading followed by its answer.
func printBatch(w io.Writer, questions, answers []string) {
	heading := color.New(color.FgCyan, color.Bold)
	for i, q := range questions {
		if i > 0 {
			fmt.Fprintln(w)
		}
		heading.Fprintf(w, "Q%d: %s\n", i+1, q)
		fmt.Fprintln(w, answers[i])
	}
}
