package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	envFile   string
	quietMode bool
	overrides map[string]string
)

var rootCmd = &cobra.Command{
	Use:   "researcher",
	Short: "Iterative web research agent",
	Long: `researcher answers a question by generating search queries, summarizing web
results, reflecting on knowledge gaps and looping until the research is
sufficient, then writing a cited answer.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "only log warnings and errors")
	rootCmd.PersistentFlags().StringToStringVar(&overrides, "set", nil,
		"research setting overrides, e.g. --set answer_model=qwen2.5-14b (environment variables win)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
