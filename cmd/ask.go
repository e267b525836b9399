package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
)

var (
	askThreadID   string
	askNewThread  bool
	askQueries    int
	askMaxLoops   int
	askJSONOutput bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Research a question and print a cited answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		req := model.ResearchRequest{
			ThreadID: askThreadID,
			Messages: []*schema.Message{schema.UserMessage(strings.Join(args, " "))},
		}
		if askNewThread {
			req.ThreadID = uuid.NewString()
		}
		if req.ThreadID != "" && !a.threads.Enabled() {
			return fmt.Errorf("--thread requires REDIS_URL to be set")
		}
		if cmd.Flags().Changed("queries") {
			req.InitialSearchQueryCount = &askQueries
		}
		if cmd.Flags().Changed("max-loops") {
			req.MaxResearchLoops = &askMaxLoops
		}

		out, err := a.runner.Run(ctx, req)
		if err != nil {
			return err
		}

		if askJSONOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		fmt.Println(out.Answer())
		if len(out.SourcesGathered) > 0 {
			fmt.Println("\nSources:")
			for _, src := range out.SourcesGathered {
				fmt.Printf("  [%s] %s\n", src.ShortURL, src.Value)
			}
		}
		if out.ThreadID != "" {
			fmt.Fprintf(os.Stderr, "\nthread: %s\n", out.ThreadID)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askThreadID, "thread", "", "continue the given conversation thread (requires Redis)")
	askCmd.Flags().BoolVar(&askNewThread, "new-thread", false, "start a new conversation thread with a generated id")
	askCmd.Flags().IntVar(&askQueries, "queries", 0, "number of initial search queries for this run")
	askCmd.Flags().IntVar(&askMaxLoops, "max-loops", 0, "maximum research loops for this run")
	askCmd.Flags().BoolVar(&askJSONOutput, "json", false, "print the full research result as JSON")
	askCmd.MarkFlagsMutuallyExclusive("thread", "new-thread")

	rootCmd.AddCommand(askCmd)
}
