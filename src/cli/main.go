package main

import (
	"os"

	"github.com/huggingface/publish-to-the-kernel-hub-action/src/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
