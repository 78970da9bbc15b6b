package main

import (
	"fmt"
	"os"

	"github.com/astgrep-tools/astgrep-mcp/internal/eval/commands"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	rootCmd := commands.RootCmd()
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
