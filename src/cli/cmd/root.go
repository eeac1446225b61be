package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/huggingface/publish-to-the-kernel-hub-action/src/output"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "kernel-hub-publish",
	Short: "Build a kernel and publish it to the Hugging Face Hub",
	Long:  "kernel-hub-publish builds a kernel with kernel-builder inside CI, packages the result, and uploads it as a CI artifact and/or a Hub model entry.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Local runs take inputs from a .env file; the Actions runner
		// injects INPUT_* directly.
		if !output.IsGitHubActions() {
			_ = godotenv.Load()
		}
		return nil
	},
	RunE:          runPipeline,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
