// Package main provides the learnpath binary: a CLI that generates a
// structured learning path for a topic by driving the generation engine
// against real LLM and web-search providers.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/c360studio/learnpath/llm/providers"

	// Register search providers via init()
	_ "github.com/c360studio/learnpath/search/providers"
)

const (
	// Version is the CLI version.
	Version = "0.1.0"
	// BuildTime is stamped by the build.
	BuildTime = "dev"

	appName = "learnpath"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Learning path generator",
		Long: `Learnpath researches a topic through batched web searches, plans a
module outline, and authors content for every submodule with an LLM.

Progress streams to the terminal while the run executes; the finished
path is written as JSON or markdown.`,
	}

	cmd.AddCommand(generateCmd())
	cmd.AddCommand(configCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}
